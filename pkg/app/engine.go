package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/whatslukewarm/feedgen/pkg/bsky"
	"github.com/whatslukewarm/feedgen/pkg/config"
	"github.com/whatslukewarm/feedgen/pkg/store"
	"github.com/whatslukewarm/feedgen/pkg/util"
)

// Tracked posts older than this are dropped from the working table on every
// hour rotation, whatever their state.
const retentionWindow = 23 * time.Hour

// Diff is the engine's output for one batch: rows to insert into the feed
// index and URIs to delete from it. Rotated signals that the wall-clock hour
// changed while processing, so the caller can run its periodic work.
type Diff struct {
	ToInsert []store.PostRow
	ToDelete []string
	Rotated  bool
}

// retractInsert removes a pending insertion for the given URI, returning
// whether one was found. A post promoted and evicted within the same batch
// must not reach the feed index at all.
func (d *Diff) retractInsert(uri string) bool {
	for i, row := range d.ToInsert {
		if row.URI == uri {
			d.ToInsert = append(d.ToInsert[:i], d.ToInsert[i+1:]...)
			return true
		}
	}
	return false
}

// Engine applies operation batches to the working table and decides which
// posts enter and leave the feed. All state is owned by the engine instance;
// Apply serializes callers, so at most one batch is in flight.
type Engine struct {
	mu       sync.Mutex
	table    *postTable
	filter   *Filter
	registry *Registry
	lookup   Lookup
	cfg      config.Config
	clock    clockwork.Clock
}

// NewEngine creates an engine with an empty table and registry. The lookup
// client may be nil, in which case author-based rejection and the promotion
// label check are skipped.
func NewEngine(cfg config.Config, lookup Lookup, clock clockwork.Clock) *Engine {
	registry := NewRegistry()
	return &Engine{
		table:    newPostTable(clock.Now().Hour()),
		filter:   NewFilter(cfg, registry),
		registry: registry,
		lookup:   lookup,
		cfg:      cfg,
		clock:    clock,
	}
}

// Registry exposes the rejected-author registry for snapshotting.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// TrackedCount returns the current size of the working table.
func (e *Engine) TrackedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.size()
}

// Apply processes one operation batch: explicit deletes first, then the
// hourly rotation, then post creates, then likes. Returns the resulting feed
// index diff for the caller to persist.
func (e *Engine) Apply(batch OpBatch) Diff {
	e.mu.Lock()
	defer e.mu.Unlock()

	diff := Diff{}
	now := e.clock.Now()

	// Resolve explicit post deletes against the table. Only posts that made
	// it into the feed produce a deletion; the rest are just forgotten.
	for _, del := range batch.Posts.Deletes {
		existed, promoted := e.table.evict(del.URI)
		if existed && promoted {
			diff.ToDelete = append(diff.ToDelete, del.URI)
		}
	}

	// Hour rotation: flush the bucket recycled from ~24h ago, then sweep the
	// whole table for stale entries. Promoted posts dropped by the sweep take
	// their feed index row with them.
	if flushed, rotated := e.table.rotateHourIfNeeded(now); rotated {
		diff.Rotated = true
		if len(flushed) > 0 {
			slog.Info("flushing hourly bucket", "hour", now.Hour(), "posts", len(flushed))
			diff.ToDelete = append(diff.ToDelete, flushed...)
		}
		swept := e.table.sweepOlderThan(retentionWindow, now)
		if len(swept) > 0 {
			slog.Info("sweeping stale promoted posts", "posts", len(swept))
			diff.ToDelete = append(diff.ToDelete, swept...)
		}
	}

	for _, post := range batch.Posts.Creates {
		e.applyCreate(post, now)
	}

	for _, like := range batch.Likes.Creates {
		e.applyLike(like, now, &diff)
	}

	return diff
}

func (e *Engine) applyCreate(post CreateOp, now time.Time) {
	// A banned author never costs a profile lookup.
	if e.registry.Banned(post.Author) {
		return
	}

	author := e.fetchProfile(post.Author)
	if reason := e.filter.Evaluate(post, author); reason != "" {
		slog.Debug("rejected post", "uri", post.URI, "reason", reason)
		return
	}

	e.table.recordNewPost(post, now)
}

func (e *Engine) applyLike(like CreateOp, now time.Time, diff *Diff) {
	subject := like.Record.Subject.URI
	tracked := e.table.recordLike(subject)
	if tracked == nil {
		return
	}

	if exceedsThreshold(tracked, e.cfg.MaxThreshold) {
		e.table.evict(subject)
		if !diff.retractInsert(subject) {
			diff.ToDelete = append(diff.ToDelete, subject)
		}
		return
	}

	if !entersThreshold(tracked, e.cfg.MinThreshold, e.cfg.MaxThreshold, e.cfg.MinPostAge, e.cfg.MaxPostAge, now) {
		return
	}

	// Promotion: re-validate against moderation labels fetched fresh from
	// the AppView. A labeled post bans its author and is dropped instead.
	if !e.passesLabelCheck(subject) {
		slog.Debug("post failed label check", "uri", subject)
		e.registry.Ban(tracked.post.Author)
		e.table.evict(subject)
		return
	}

	e.table.markPromoted(subject)
	diff.ToInsert = append(diff.ToInsert, projectRow(tracked.post, now))
	slog.Debug("promoted post", "uri", subject, "likes", tracked.likes)
}

// fetchProfile looks up the author profile, treating any failure as missing
// data rather than aborting the batch.
func (e *Engine) fetchProfile(did string) *bsky.Profile {
	if e.lookup == nil {
		return nil
	}
	profile, err := e.lookup.GetProfile(did)
	if err != nil {
		slog.Warn(util.WrapErr("failed to get profile", err).Error(), "did", did)
		return nil
	}
	return profile
}

func (e *Engine) passesLabelCheck(uri string) bool {
	if e.lookup == nil {
		return true
	}
	posts, err := e.lookup.GetPosts([]string{uri})
	if err != nil || len(posts) == 0 {
		// Insufficient data falls back to the no-lookup policy.
		slog.Warn("failed to fetch post for label check", "uri", uri, "error", err)
		return true
	}
	return PassesLabelCheck(posts[0])
}

// projectRow shapes an accepted post into its persisted form.
func projectRow(post CreateOp, now time.Time) store.PostRow {
	row := store.PostRow{
		URI:       post.URI,
		CID:       post.CID,
		IndexedAt: now.UTC().Format(time.RFC3339),
	}
	if post.Record.Reply != nil {
		parent := post.Record.Reply.Parent.URI
		root := post.Record.Reply.Root.URI
		row.ReplyParent = &parent
		row.ReplyRoot = &root
	}
	return row
}
