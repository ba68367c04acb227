package app

import (
	"fmt"
)

const (
	CollectionPost   = "app.bsky.feed.post"
	CollectionRepost = "app.bsky.feed.repost"
	CollectionLike   = "app.bsky.feed.like"
	CollectionFollow = "app.bsky.graph.follow"
)

// StreamEvent (and subtypes) represent a message from the Jetstream.
// Fields for posts and likes are included; other collections are ignored.
type StreamEvent struct {
	DID    string `json:"did"`
	TimeUS int64  `json:"time_us"`
	Kind   string `json:"kind"`
	Commit Commit `json:"commit"`
}

type Commit struct {
	Operation  string `json:"operation"`
	Collection string `json:"collection"`
	Record     Record `json:"record"`
	RKey       string `json:"rkey"`
	CID        string `json:"cid"`
}

type Record struct {
	Type      string   `json:"$type"`
	Text      string   `json:"text"`
	Languages []string `json:"langs"`
	Subject   Content  `json:"subject"`
	Reply     *Reply   `json:"reply"`
}

type Reply struct {
	Parent Content `json:"parent"`
	Root   Content `json:"root"`
}

type Content struct {
	CID string `json:"cid"`
	URI string `json:"uri"`
}

// Valid determines whether a stream event should be processed by our application.
func (s *StreamEvent) Valid() bool {
	if s.Kind != "commit" {
		return false
	}
	if s.Commit.Operation != "create" && s.Commit.Operation != "delete" {
		return false
	}
	return s.IsPost() || s.IsLike()
}

func (s *StreamEvent) IsPost() bool {
	return s.Commit.Collection == CollectionPost
}

func (s *StreamEvent) IsLike() bool {
	return s.Commit.Collection == CollectionLike
}

func (s *StreamEvent) IsCreate() bool {
	return s.Commit.Operation == "create"
}

func (s *StreamEvent) IsDelete() bool {
	return s.Commit.Operation == "delete"
}

func (s *StreamEvent) IsReplyPost() bool {
	if !s.IsPost() || s.Commit.Record.Reply == nil {
		return false
	}
	return s.Commit.Record.Reply.Parent.URI != ""
}

// URI returns the AT URI of the record the event describes.
func (s *StreamEvent) URI() string {
	return fmt.Sprintf("at://%s/%s/%s", s.DID, s.Commit.Collection, s.Commit.RKey)
}
