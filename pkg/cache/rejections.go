package cache

import (
	"context"

	"github.com/valkey-io/valkey-go"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/whatslukewarm/feedgen/pkg/util"
)

const rejectionsKey = "rejections"

// SaveRejections snapshots the set of rejected author DIDs to the cache, so
// a restart does not re-run profile lookups for authors already judged.
func (v Valkey) SaveRejections(dids []string) error {
	bytes, err := msgpack.Marshal(dids)
	if err != nil {
		return util.WrapErr("failed to marshal rejections", err)
	}

	cmd := v.client.B().Set().Key(rejectionsKey).Value(string(bytes)).Build()
	err = v.client.Do(context.Background(), cmd).Error()
	if err != nil {
		return util.WrapErr("failed to save rejections", err)
	}

	return nil
}

// ReadRejections reads the rejected-author snapshot. If no snapshot exists,
// return an empty list.
func (v Valkey) ReadRejections() ([]string, error) {
	cmd := v.client.B().Get().Key(rejectionsKey).Build()
	resp := v.client.Do(context.Background(), cmd)
	if err := resp.Error(); err != nil {
		if err == valkey.Nil {
			return nil, nil
		}
		return nil, util.WrapErr("failed to execute get command", err)
	}

	bytes, err := resp.AsBytes()
	if err != nil {
		return nil, util.WrapErr("failed to convert response to bytes", err)
	}

	var dids []string
	if err := msgpack.Unmarshal(bytes, &dids); err != nil {
		return nil, util.WrapErr("failed to unmarshal rejections", err)
	}

	return dids, nil
}
