package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) SQLite {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func row(n int) PostRow {
	return PostRow{
		URI:       fmt.Sprintf("at://did:plc:author/app.bsky.feed.post/%03d", n),
		CID:       fmt.Sprintf("cid%03d", n),
		IndexedAt: fmt.Sprintf("2026-01-02T05:%02d:00Z", n),
	}
}

func TestSaveAndReadFeed(t *testing.T) {
	s := newTestStore(t)

	parent := "at://did:plc:other/app.bsky.feed.post/parent"
	root := "at://did:plc:other/app.bsky.feed.post/root"
	reply := row(1)
	reply.ReplyParent = &parent
	reply.ReplyRoot = &root

	require.NoError(t, s.SavePosts([]PostRow{reply, row(2)}))

	posts, cursor, err := s.ReadFeed(10, "")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Empty(t, cursor)

	// Newest first.
	assert.Equal(t, row(2).URI, posts[0].URI)
	assert.Nil(t, posts[0].ReplyParent)
	require.NotNil(t, posts[1].ReplyParent)
	assert.Equal(t, parent, *posts[1].ReplyParent)
	assert.Equal(t, root, *posts[1].ReplyRoot)
}

func TestSavePostsIgnoresConflicts(t *testing.T) {
	s := newTestStore(t)

	first := row(1)
	require.NoError(t, s.SavePosts([]PostRow{first}))

	// A replay with a different CID must not error or overwrite.
	replay := row(1)
	replay.CID = "other-cid"
	require.NoError(t, s.SavePosts([]PostRow{replay}))

	posts, _, err := s.ReadFeed(10, "")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, first.CID, posts[0].CID)
}

func TestDeletePosts(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SavePosts([]PostRow{row(1), row(2), row(3)}))
	require.NoError(t, s.DeletePosts([]string{row(1).URI, row(3).URI, "at://unknown"}))

	count, err := s.CountPosts()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Empty input is a no-op.
	require.NoError(t, s.DeletePosts(nil))
}

func TestReadFeedPagination(t *testing.T) {
	s := newTestStore(t)

	rows := make([]PostRow, 5)
	for i := range rows {
		rows[i] = row(i + 1)
	}
	require.NoError(t, s.SavePosts(rows))

	page1, cursor, err := s.ReadFeed(2, "")
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotEmpty(t, cursor)
	assert.Equal(t, row(5).URI, page1[0].URI)
	assert.Equal(t, row(4).URI, page1[1].URI)

	page2, cursor, err := s.ReadFeed(2, cursor)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, row(3).URI, page2[0].URI)
	assert.Equal(t, row(2).URI, page2[1].URI)

	page3, cursor, err := s.ReadFeed(2, cursor)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, row(1).URI, page3[0].URI)
	assert.Empty(t, cursor)
}

func TestReadFeedMalformedCursor(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.ReadFeed(10, "not-a-cursor")
	assert.Error(t, err)
}
