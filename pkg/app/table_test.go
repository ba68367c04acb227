package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordNewPostIsIdempotent(t *testing.T) {
	table := newPostTable(5)
	now := time.Date(2026, 1, 2, 5, 0, 0, 0, time.UTC)
	post := postOp("hi", validDID)

	require.True(t, table.recordNewPost(post, now))
	table.recordLike(post.URI)
	table.recordLike(post.URI)

	// Replay keeps the existing entry intact.
	assert.False(t, table.recordNewPost(post, now.Add(time.Hour)))
	tracked := table.recordLike(post.URI)
	require.NotNil(t, tracked)
	assert.Equal(t, 3, tracked.likes)
	assert.Equal(t, now, tracked.firstSeenAt)
}

func TestRecordLikeOnUnknownPost(t *testing.T) {
	table := newPostTable(5)
	assert.Nil(t, table.recordLike("at://did:plc:x/app.bsky.feed.post/unknown"))
}

func TestMarkPromotedJoinsOneBucket(t *testing.T) {
	table := newPostTable(5)
	now := time.Date(2026, 1, 2, 5, 0, 0, 0, time.UTC)
	post := postOp("hi", validDID)

	table.recordNewPost(post, now)
	table.markPromoted(post.URI)
	table.markPromoted(post.URI) // no double entry

	assert.Equal(t, []string{post.URI}, table.byHour[5])
	total := 0
	for _, bucket := range table.byHour {
		total += len(bucket)
	}
	assert.Equal(t, 1, total)
}

func TestRotateHourFlushesRecycledBucket(t *testing.T) {
	table := newPostTable(5)

	// Leftovers from the previous cycle of hour 6.
	table.byHour[6] = []string{"at://a", "at://b"}

	flushed, rotated := table.rotateHourIfNeeded(time.Date(2026, 1, 2, 6, 0, 1, 0, time.UTC))
	require.True(t, rotated)
	assert.Equal(t, []string{"at://a", "at://b"}, flushed)
	assert.Empty(t, table.byHour[6])
	assert.Equal(t, 6, table.currentHour)

	// Same hour again: no rotation.
	flushed, rotated = table.rotateHourIfNeeded(time.Date(2026, 1, 2, 6, 59, 0, 0, time.UTC))
	assert.False(t, rotated)
	assert.Empty(t, flushed)
}

func TestSweepOlderThan(t *testing.T) {
	table := newPostTable(5)
	now := time.Date(2026, 1, 2, 5, 0, 0, 0, time.UTC)

	stale := postOp("old", "did:plc:one")
	stale.URI = "at://did:plc:one/app.bsky.feed.post/old"
	stalePromoted := postOp("old promoted", "did:plc:two")
	stalePromoted.URI = "at://did:plc:two/app.bsky.feed.post/oldp"
	fresh := postOp("fresh", "did:plc:three")
	fresh.URI = "at://did:plc:three/app.bsky.feed.post/new"

	table.recordNewPost(stale, now.Add(-24*time.Hour))
	table.recordNewPost(stalePromoted, now.Add(-24*time.Hour))
	table.markPromoted(stalePromoted.URI)
	table.recordNewPost(fresh, now.Add(-time.Hour))

	promoted := table.sweepOlderThan(23*time.Hour, now)

	// Only stale promoted posts are reported; unpromoted ones vanish quietly.
	assert.Equal(t, []string{stalePromoted.URI}, promoted)
	assert.Equal(t, 1, table.size())
	assert.NotNil(t, table.recordLike(fresh.URI))
}
