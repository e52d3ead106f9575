package bucket

import (
	"context"
	"time"

	"pollster/internal/ratelimit/models"
	psync "pollster/pkg/platform/sync"
)

// InMemoryBucketStore keeps fixed-window counters in a sharded map.
// Each Consume runs under its key's shard lock, so concurrent requests for
// the same client never double-count.
type InMemoryBucketStore struct {
	buckets *psync.ShardedMap[models.Bucket]
}

func NewInMemoryBucketStore() *InMemoryBucketStore {
	return &InMemoryBucketStore{buckets: psync.NewShardedMap[models.Bucket]()}
}

// Consume applies one request to the bucket at key and returns the bucket
// state after the decision.
func (s *InMemoryBucketStore) Consume(_ context.Context, key string, limit models.Limit, now time.Time) (models.Bucket, bool, error) {
	var allowed bool
	b, _ := s.buckets.Update(key, func(cur models.Bucket, exists bool) (models.Bucket, bool) {
		var next models.Bucket
		next, allowed = cur.Consume(exists, limit, now)
		return next, true
	})
	return b, allowed, nil
}

// Get returns the bucket at key, if any.
func (s *InMemoryBucketStore) Get(_ context.Context, key string) (models.Bucket, bool, error) {
	b, ok := s.buckets.Get(key)
	return b, ok, nil
}

// Sweep deletes buckets whose window has elapsed.
func (s *InMemoryBucketStore) Sweep(_ context.Context, now time.Time) (int, error) {
	return s.buckets.DeleteFunc(func(_ string, b models.Bucket) bool {
		return b.Expired(now)
	}), nil
}

// Len returns the number of live buckets.
func (s *InMemoryBucketStore) Len() int {
	return s.buckets.Len()
}
