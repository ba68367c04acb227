package app

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whatslukewarm/feedgen/pkg/bsky"
	"github.com/whatslukewarm/feedgen/pkg/config"
)

type fakeLookup struct {
	profiles     map[string]*bsky.Profile
	posts        map[string]bsky.PostView
	profileCalls int
	err          error
}

func (f *fakeLookup) GetProfile(did string) (*bsky.Profile, error) {
	f.profileCalls++
	if f.err != nil {
		return nil, f.err
	}
	profile, ok := f.profiles[did]
	if !ok {
		return nil, errors.New("profile not found")
	}
	return profile, nil
}

func (f *fakeLookup) GetPosts(uris []string) ([]bsky.PostView, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := []bsky.PostView{}
	for _, uri := range uris {
		if post, ok := f.posts[uri]; ok {
			result = append(result, post)
		}
	}
	return result, nil
}

func engineConfig() config.Config {
	return config.Config{
		Profile:             config.ProfileStrict,
		MinThreshold:        3,
		MaxThreshold:        10,
		MinPostAge:          5 * time.Minute,
		MaxPostAge:          24 * time.Hour,
		MaxFollowersAllowed: 10000,
		MinAuthorPosts:      4,
	}
}

func newTestEngine(t *testing.T, lookup Lookup) (*Engine, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 2, 5, 0, 0, 0, time.UTC))
	return NewEngine(engineConfig(), lookup, clock), clock
}

func createBatch(op CreateOp) OpBatch {
	return OpBatch{Posts: Ops{Creates: []CreateOp{op}}}
}

func likeBatch(subject string, count int) OpBatch {
	likes := make([]CreateOp, count)
	for i := range likes {
		likes[i] = CreateOp{
			URI:    "at://did:plc:liker/app.bsky.feed.like/abc",
			Author: "did:plc:liker",
			Record: Record{
				Type:    CollectionLike,
				Subject: Content{URI: subject},
			},
		}
	}
	return OpBatch{Likes: Ops{Creates: likes}}
}

func deleteBatch(uri string) OpBatch {
	return OpBatch{Posts: Ops{Deletes: []DeleteOp{{URI: uri}}}}
}

func TestPromotion(t *testing.T) {
	engine, clock := newTestEngine(t, nil)
	post := postOp("a lovely afternoon", validDID)

	diff := engine.Apply(createBatch(post))
	assert.Empty(t, diff.ToInsert)
	assert.Empty(t, diff.ToDelete)

	clock.Advance(10 * time.Minute)

	diff = engine.Apply(likeBatch(post.URI, 5))
	require.Len(t, diff.ToInsert, 1)
	assert.Empty(t, diff.ToDelete)

	row := diff.ToInsert[0]
	assert.Equal(t, post.URI, row.URI)
	assert.Equal(t, post.CID, row.CID)
	assert.Nil(t, row.ReplyParent)
	assert.Nil(t, row.ReplyRoot)
	assert.Equal(t, clock.Now().UTC().Format(time.RFC3339), row.IndexedAt)
}

func TestPromotionFiresAtMostOnce(t *testing.T) {
	engine, clock := newTestEngine(t, nil)
	post := postOp("a lovely afternoon", validDID)

	engine.Apply(createBatch(post))
	clock.Advance(10 * time.Minute)

	diff := engine.Apply(likeBatch(post.URI, 4))
	require.Len(t, diff.ToInsert, 1)

	// More likes below the upper bound change nothing.
	diff = engine.Apply(likeBatch(post.URI, 4))
	assert.Empty(t, diff.ToInsert)
	assert.Empty(t, diff.ToDelete)
}

func TestEvictionAboveMaxThreshold(t *testing.T) {
	engine, clock := newTestEngine(t, nil)
	post := postOp("a lovely afternoon", validDID)

	engine.Apply(createBatch(post))
	clock.Advance(10 * time.Minute)

	diff := engine.Apply(likeBatch(post.URI, 5))
	require.Len(t, diff.ToInsert, 1)

	// Likes past the upper bound evict the promoted post.
	diff = engine.Apply(likeBatch(post.URI, 6))
	assert.Empty(t, diff.ToInsert)
	require.Len(t, diff.ToDelete, 1)
	assert.Equal(t, post.URI, diff.ToDelete[0])
	assert.Equal(t, 0, engine.TrackedCount())

	// The post is forgotten; further likes are ignored.
	diff = engine.Apply(likeBatch(post.URI, 1))
	assert.Empty(t, diff.ToInsert)
	assert.Empty(t, diff.ToDelete)
}

func TestPromoteAndEvictInOneBatchCancelsOut(t *testing.T) {
	engine, clock := newTestEngine(t, nil)
	post := postOp("a lovely afternoon", validDID)

	engine.Apply(createBatch(post))
	clock.Advance(10 * time.Minute)

	// Enough likes in one batch to cross both bounds: the pending insert is
	// retracted rather than paired with a deletion.
	diff := engine.Apply(likeBatch(post.URI, 11))
	assert.Empty(t, diff.ToInsert)
	assert.Empty(t, diff.ToDelete)
	assert.Equal(t, 0, engine.TrackedCount())
}

func TestPromotionRespectsMinimumAge(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	post := postOp("a lovely afternoon", validDID)

	engine.Apply(createBatch(post))

	// Likes arriving before the minimum age never promote.
	diff := engine.Apply(likeBatch(post.URI, 5))
	assert.Empty(t, diff.ToInsert)
}

func TestCreateReplayDoesNotResetState(t *testing.T) {
	engine, clock := newTestEngine(t, nil)
	post := postOp("a lovely afternoon", validDID)

	engine.Apply(createBatch(post))
	clock.Advance(10 * time.Minute)
	engine.Apply(likeBatch(post.URI, 2))

	// Replaying the create must not reset the like count or first-seen time.
	engine.Apply(createBatch(post))

	diff := engine.Apply(likeBatch(post.URI, 2))
	require.Len(t, diff.ToInsert, 1, "like count should have survived the replay")
}

func TestHighFollowerAuthorSkipsFutureLookups(t *testing.T) {
	lookup := &fakeLookup{
		profiles: map[string]*bsky.Profile{
			validDID: {FollowersCount: 50000, PostsCount: 200},
		},
	}
	engine, _ := newTestEngine(t, lookup)

	engine.Apply(createBatch(postOp("first post", validDID)))
	assert.Equal(t, 0, engine.TrackedCount())
	assert.Equal(t, 1, lookup.profileCalls)

	// The author is in the registry now; no second profile lookup.
	engine.Apply(createBatch(postOp("second post", validDID)))
	assert.Equal(t, 0, engine.TrackedCount())
	assert.Equal(t, 1, lookup.profileCalls)
}

func TestLookupFailureFallsBackToKeep(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("appview unavailable")}
	engine, _ := newTestEngine(t, lookup)

	engine.Apply(createBatch(postOp("a lovely afternoon", validDID)))
	assert.Equal(t, 1, engine.TrackedCount())
}

func TestLabeledPostIsNotPromoted(t *testing.T) {
	post := postOp("a lovely afternoon", validDID)
	lookup := &fakeLookup{
		profiles: map[string]*bsky.Profile{
			validDID: {FollowersCount: 50, PostsCount: 200},
		},
		posts: map[string]bsky.PostView{
			post.URI: {
				URI:    post.URI,
				Author: bsky.Author{DID: validDID},
				Labels: []bsky.Label{{Val: "porn"}},
			},
		},
	}
	engine, clock := newTestEngine(t, lookup)

	engine.Apply(createBatch(post))
	clock.Advance(10 * time.Minute)

	diff := engine.Apply(likeBatch(post.URI, 5))
	assert.Empty(t, diff.ToInsert)
	assert.Empty(t, diff.ToDelete)
	assert.Equal(t, 0, engine.TrackedCount())

	// The label check bans the author.
	assert.True(t, engine.Registry().Banned(validDID))
}

func TestExplicitDelete(t *testing.T) {
	engine, clock := newTestEngine(t, nil)
	post := postOp("a lovely afternoon", validDID)

	// Deleting an unpromoted post is a silent forget.
	engine.Apply(createBatch(post))
	diff := engine.Apply(deleteBatch(post.URI))
	assert.Empty(t, diff.ToDelete)
	assert.Equal(t, 0, engine.TrackedCount())

	// Deleting a promoted post emits a feed index deletion.
	engine.Apply(createBatch(post))
	clock.Advance(10 * time.Minute)
	engine.Apply(likeBatch(post.URI, 5))
	diff = engine.Apply(deleteBatch(post.URI))
	require.Len(t, diff.ToDelete, 1)
	assert.Equal(t, post.URI, diff.ToDelete[0])
}

func TestSweepForgetsStalePosts(t *testing.T) {
	engine, clock := newTestEngine(t, nil)
	post := postOp("a lovely afternoon", validDID)

	engine.Apply(createBatch(post))

	// Unpromoted and older than 23 hours: gone silently on the next rotation.
	clock.Advance(23*time.Hour + 30*time.Minute)
	diff := engine.Apply(OpBatch{})
	assert.True(t, diff.Rotated)
	assert.Empty(t, diff.ToInsert)
	assert.Empty(t, diff.ToDelete)
	assert.Equal(t, 0, engine.TrackedCount())
}

func TestSweepDeletesStalePromotedPosts(t *testing.T) {
	engine, clock := newTestEngine(t, nil)
	post := postOp("a lovely afternoon", validDID)

	engine.Apply(createBatch(post))
	clock.Advance(10 * time.Minute)
	engine.Apply(likeBatch(post.URI, 5))

	// Promoted and stale: the feed index row goes with the table entry.
	clock.Advance(23*time.Hour + 30*time.Minute)
	diff := engine.Apply(OpBatch{})
	assert.True(t, diff.Rotated)
	assert.Contains(t, diff.ToDelete, post.URI)
	assert.Equal(t, 0, engine.TrackedCount())
}

func TestRotationFollowsWallClockHour(t *testing.T) {
	engine, clock := newTestEngine(t, nil)

	clock.Advance(30 * time.Minute)
	diff := engine.Apply(OpBatch{})
	assert.False(t, diff.Rotated)

	clock.Advance(31 * time.Minute)
	diff = engine.Apply(OpBatch{})
	assert.True(t, diff.Rotated)
}
