package app

// CreateOp is a single record creation, carrying the decoded record.
type CreateOp struct {
	URI    string
	CID    string
	Author string
	Record Record
}

// DeleteOp carries only the identifier of the deleted record.
type DeleteOp struct {
	URI string
}

type Ops struct {
	Creates []CreateOp
	Deletes []DeleteOp
}

// OpBatch is the unit of work handed to the curation engine: the post and
// like operations extracted from one stream event. Like deletes are carried
// but never acted on; likes are not un-counted.
type OpBatch struct {
	Posts Ops
	Likes Ops
}

func (b OpBatch) Empty() bool {
	return len(b.Posts.Creates) == 0 && len(b.Posts.Deletes) == 0 &&
		len(b.Likes.Creates) == 0 && len(b.Likes.Deletes) == 0
}

// batchFromEvent sorts a stream event into the engine's operation groups.
// Events that are not valid post/like commits produce an empty batch.
func batchFromEvent(event StreamEvent) OpBatch {
	batch := OpBatch{}
	if !event.Valid() {
		return batch
	}

	switch {
	case event.IsPost() && event.IsCreate():
		batch.Posts.Creates = append(batch.Posts.Creates, CreateOp{
			URI:    event.URI(),
			CID:    event.Commit.CID,
			Author: event.DID,
			Record: event.Commit.Record,
		})
	case event.IsPost() && event.IsDelete():
		batch.Posts.Deletes = append(batch.Posts.Deletes, DeleteOp{URI: event.URI()})
	case event.IsLike() && event.IsCreate():
		batch.Likes.Creates = append(batch.Likes.Creates, CreateOp{
			URI:    event.URI(),
			CID:    event.Commit.CID,
			Author: event.DID,
			Record: event.Commit.Record,
		})
	case event.IsLike() && event.IsDelete():
		batch.Likes.Deletes = append(batch.Likes.Deletes, DeleteOp{URI: event.URI()})
	}

	return batch
}
