package app

import (
	"github.com/whatslukewarm/feedgen/pkg/bsky"
	"github.com/whatslukewarm/feedgen/pkg/store"
)

type Cache interface {
	SaveCursor(cursor int64) error
	ReadCursor() (int64, error)
	SaveRejections(dids []string) error
	ReadRejections() ([]string, error)
	Close()
}

type Store interface {
	SavePosts(rows []store.PostRow) error
	DeletePosts(uris []string) error
	ReadFeed(limit int, cursor string) ([]store.PostRow, string, error)
	CountPosts() (int, error)
	Close()
}

// Lookup is the profile/content collaborator consulted during filtering and
// promotion. Implementations may be unavailable; callers treat errors as
// missing data.
type Lookup interface {
	GetProfile(did string) (*bsky.Profile, error)
	GetPosts(uris []string) ([]bsky.PostView, error)
}
