package app

import (
	"time"
)

// trackedPost is the working state of a post still under consideration.
type trackedPost struct {
	post        CreateOp
	likes       int
	added       bool
	firstSeenAt time.Time
}

// postTable is the in-memory working set of the curation engine: a mapping
// from post URI to tracked state, plus a fixed 24-slot index of which posts
// were promoted during each hour of the day. The hour-of-day key means each
// slot is recycled every 24 hours.
type postTable struct {
	posts       map[string]*trackedPost
	byHour      [24][]string
	currentHour int
}

func newPostTable(hour int) *postTable {
	return &postTable{
		posts:       make(map[string]*trackedPost),
		currentHour: hour,
	}
}

// recordNewPost starts tracking a post. If the post is already tracked, its
// state is left untouched so replays never reset like counts.
func (t *postTable) recordNewPost(post CreateOp, now time.Time) bool {
	if _, ok := t.posts[post.URI]; ok {
		return false
	}
	t.posts[post.URI] = &trackedPost{
		post:        post,
		firstSeenAt: now,
	}
	return true
}

// recordLike increments the like count of a tracked post and returns its
// state, or nil if the post is not tracked.
func (t *postTable) recordLike(uri string) *trackedPost {
	tracked, ok := t.posts[uri]
	if !ok {
		return nil
	}
	tracked.likes++
	return tracked
}

// evict forgets a post. Returns whether the post existed and whether it had
// been promoted into the feed.
func (t *postTable) evict(uri string) (existed, promoted bool) {
	tracked, ok := t.posts[uri]
	if !ok {
		return false, false
	}
	delete(t.posts, uri)
	return true, tracked.added
}

// markPromoted flips a tracked post to promoted and records it in the
// current hour's bucket. A post belongs to at most one bucket.
func (t *postTable) markPromoted(uri string) {
	tracked, ok := t.posts[uri]
	if !ok || tracked.added {
		return
	}
	tracked.added = true
	t.byHour[t.currentHour] = append(t.byHour[t.currentHour], uri)
}

// rotateHourIfNeeded compares the wall-clock hour with the current slot. On
// a change it returns the URIs left in the new hour's bucket from ~24h ago
// (due for eviction from the feed index), clears that bucket, and makes it
// current.
func (t *postTable) rotateHourIfNeeded(now time.Time) (flushed []string, rotated bool) {
	hour := now.Hour()
	if hour == t.currentHour {
		return nil, false
	}
	flushed = t.byHour[hour]
	t.byHour[hour] = nil
	t.currentHour = hour
	return flushed, true
}

// sweepOlderThan forgets every tracked post older than the retention window,
// regardless of promotion state. Promoted posts are returned so their feed
// index rows can be deleted too; unpromoted posts are forgotten silently.
func (t *postTable) sweepOlderThan(retention time.Duration, now time.Time) (promoted []string) {
	cutoff := now.Add(-retention)
	for uri, tracked := range t.posts {
		if tracked.firstSeenAt.Before(cutoff) {
			if tracked.added {
				promoted = append(promoted, uri)
			}
			delete(t.posts, uri)
		}
	}
	return promoted
}

func (t *postTable) size() int {
	return len(t.posts)
}
