package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/whatslukewarm/feedgen/pkg/util"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS post (
	uri          TEXT PRIMARY KEY,
	cid          TEXT NOT NULL,
	reply_parent TEXT,
	reply_root   TEXT,
	indexed_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_post_indexed_at ON post (indexed_at DESC, uri DESC);
`

// PostRow is the minimal persisted shape of a promoted post.
type PostRow struct {
	URI         string
	CID         string
	ReplyParent *string
	ReplyRoot   *string
	IndexedAt   string
}

// SQLite wraps the feed index database.
type SQLite struct {
	db *sql.DB
}

// New opens (or creates) the feed index at the given path. Use ':memory:'
// for an ephemeral database.
func New(path string) (SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return SQLite{}, util.WrapErr("failed to open sqlite database", err)
	}

	// An in-memory database exists per connection; keep the pool at one so
	// every statement sees the same database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return SQLite{}, util.WrapErr("failed to set pragma", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return SQLite{}, util.WrapErr("failed to migrate schema", err)
	}

	return SQLite{db: db}, nil
}

// SavePosts bulk-inserts post rows. Rows whose URI already exists are
// silently dropped, so replays never error.
func (s SQLite) SavePosts(rows []PostRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return util.WrapErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO post (uri, cid, reply_parent, reply_root, indexed_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return util.WrapErr("failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(row.URI, row.CID, row.ReplyParent, row.ReplyRoot, row.IndexedAt); err != nil {
			return util.WrapErr(fmt.Sprintf("failed to insert post %s", row.URI), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return util.WrapErr("failed to commit transaction", err)
	}
	return nil
}

// DeletePosts bulk-deletes post rows by URI. Unknown URIs are a no-op.
func (s SQLite) DeletePosts(uris []string) error {
	if len(uris) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(uris)), ",")
	args := make([]any, len(uris))
	for i, uri := range uris {
		args[i] = uri
	}

	query := fmt.Sprintf("DELETE FROM post WHERE uri IN (%s)", placeholders)
	if _, err := s.db.Exec(query, args...); err != nil {
		return util.WrapErr("failed to delete posts", err)
	}
	return nil
}

// ReadFeed returns up to 'limit' rows ordered by indexed time descending,
// starting after the given cursor. The cursor is 'indexedAt|uri' of the last
// row returned; an empty cursor starts from the top. The returned cursor is
// empty when the feed is exhausted.
func (s SQLite) ReadFeed(limit int, cursor string) ([]PostRow, string, error) {
	query := "SELECT uri, cid, reply_parent, reply_root, indexed_at FROM post"
	args := []any{}

	if cursor != "" {
		indexedAt, uri, found := strings.Cut(cursor, "|")
		if !found {
			return nil, "", fmt.Errorf("malformed cursor: %s", cursor)
		}
		query += " WHERE (indexed_at < ?) OR (indexed_at = ? AND uri < ?)"
		args = append(args, indexedAt, indexedAt, uri)
	}

	query += " ORDER BY indexed_at DESC, uri DESC LIMIT ?"
	args = append(args, limit)

	dbRows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, "", util.WrapErr("failed to query feed", err)
	}
	defer dbRows.Close()

	result := make([]PostRow, 0, limit)
	for dbRows.Next() {
		var row PostRow
		if err := dbRows.Scan(&row.URI, &row.CID, &row.ReplyParent, &row.ReplyRoot, &row.IndexedAt); err != nil {
			return nil, "", util.WrapErr("failed to scan row", err)
		}
		result = append(result, row)
	}
	if err := dbRows.Err(); err != nil {
		return nil, "", util.WrapErr("failed to iterate rows", err)
	}

	next := ""
	if len(result) == limit {
		last := result[len(result)-1]
		next = last.IndexedAt + "|" + last.URI
	}
	return result, next, nil
}

// CountPosts returns the number of rows in the feed index.
func (s SQLite) CountPosts() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM post").Scan(&count); err != nil {
		return 0, util.WrapErr("failed to count posts", err)
	}
	return count, nil
}

func (s SQLite) Close() {
	s.db.Close()
}
