package token

import (
	"context"
	"time"

	"pollster/internal/csrf/models"
	psync "pollster/pkg/platform/sync"
)

// InMemoryTokenStore keeps token records in a sharded map keyed by token
// digest. Verification and eviction happen under one shard lock, so a
// record cannot be used after another request has proven it invalid.
type InMemoryTokenStore struct {
	records *psync.ShardedMap[models.Record]
}

func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{records: psync.NewShardedMap[models.Record]()}
}

func (s *InMemoryTokenStore) Save(_ context.Context, digest string, rec models.Record) error {
	s.records.Set(digest, rec)
	return nil
}

// Verify checks the record at digest for ownerID. Absent records are
// invalid; mismatched or expired records are evicted.
func (s *InMemoryTokenStore) Verify(_ context.Context, digest, ownerID string, now time.Time) error {
	var verr error
	s.records.Update(digest, func(cur models.Record, exists bool) (models.Record, bool) {
		if !exists {
			verr = models.ErrTokenInvalid
			return cur, false
		}
		verr = cur.Verify(ownerID, now)
		return cur, verr == nil
	})
	return verr
}

// Get returns the record at digest without verifying it.
func (s *InMemoryTokenStore) Get(_ context.Context, digest string) (models.Record, bool, error) {
	rec, ok := s.records.Get(digest)
	return rec, ok, nil
}

// RevokeForOwner deletes every record issued to ownerID.
func (s *InMemoryTokenStore) RevokeForOwner(_ context.Context, ownerID string) (int, error) {
	return s.records.DeleteFunc(func(_ string, rec models.Record) bool {
		return rec.OwnerID == ownerID
	}), nil
}

// Sweep deletes expired records.
func (s *InMemoryTokenStore) Sweep(_ context.Context, now time.Time) (int, error) {
	return s.records.DeleteFunc(func(_ string, rec models.Record) bool {
		return rec.Expired(now)
	}), nil
}

func (s *InMemoryTokenStore) Len() int {
	return s.records.Len()
}
