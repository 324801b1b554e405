package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Block timestamps are immutable once a block is final; the TTL only bounds
// memory for blocks the indexer will never revisit.
const timestampTTL = 24 * time.Hour

// TimestampCache caches block-number to block-timestamp lookups so repeated
// ranges over the same blocks avoid redundant RPC header fetches. Misses and
// Redis errors are both reported as cache misses; the caller falls back to
// the chain.
//
// Key schema (under the shared namespace):
//
//	polyidx:block:ts:{number} - unix seconds of the block timestamp
type TimestampCache struct {
	rdb *redis.Client
}

// NewTimestampCache creates a TimestampCache backed by the given Client.
func NewTimestampCache(c *Client) *TimestampCache {
	return &TimestampCache{rdb: c.rdb}
}

func timestampKey(blockNumber uint64) string {
	return key("block", "ts", strconv.FormatUint(blockNumber, 10))
}

// Get returns the cached timestamp for a block, or false on a miss.
func (tc *TimestampCache) Get(ctx context.Context, blockNumber uint64) (time.Time, bool) {
	unix, err := tc.rdb.Get(ctx, timestampKey(blockNumber)).Int64()
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(unix, 0).UTC(), true
}

// Set stores a block timestamp. Failures are ignored: the cache is an
// optimization, not a source of truth.
func (tc *TimestampCache) Set(ctx context.Context, blockNumber uint64, ts time.Time) {
	tc.rdb.Set(ctx, timestampKey(blockNumber), ts.Unix(), timestampTTL)
}
