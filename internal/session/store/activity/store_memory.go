package activity

import (
	"context"
	"fmt"
	"time"

	"pollster/internal/session/models"
	psync "pollster/pkg/platform/sync"
	"pollster/pkg/platform/sentinel"
)

// InMemoryActivityStore keeps session activity in a sharded map keyed by
// user id. Touch and MarkWarned run under the key's shard lock.
type InMemoryActivityStore struct {
	records *psync.ShardedMap[models.Activity]
}

func NewInMemoryActivityStore() *InMemoryActivityStore {
	return &InMemoryActivityStore{records: psync.NewShardedMap[models.Activity]()}
}

// Touch records activity at now, keeping the session start of an existing
// record and clearing its warning flag.
func (s *InMemoryActivityStore) Touch(_ context.Context, userID string, now time.Time, device string) (models.Activity, error) {
	a, _ := s.records.Update(userID, func(cur models.Activity, exists bool) (models.Activity, bool) {
		return cur.Touched(exists, now, device), true
	})
	return a, nil
}

// Restart replaces any existing record with a new session starting at now.
func (s *InMemoryActivityStore) Restart(_ context.Context, userID string, now time.Time, device string) (models.Activity, error) {
	a := models.Activity{}.Touched(false, now, device)
	s.records.Set(userID, a)
	return a, nil
}

func (s *InMemoryActivityStore) Get(_ context.Context, userID string) (models.Activity, error) {
	a, ok := s.records.Get(userID)
	if !ok {
		return models.Activity{}, fmt.Errorf("session activity: %w", sentinel.ErrNotFound)
	}
	return a, nil
}

// MarkWarned sets the warning flag if the warning is due at now and reports
// whether this call set it. At most one caller per session observes true.
func (s *InMemoryActivityStore) MarkWarned(_ context.Context, userID string, now time.Time, inactivity, lead time.Duration) (bool, error) {
	var found, warned bool
	s.records.Update(userID, func(cur models.Activity, exists bool) (models.Activity, bool) {
		if !exists {
			return cur, false
		}
		found = true
		if cur.WarnDue(now, inactivity, lead) {
			cur.WarningIssued = true
			warned = true
		}
		return cur, true
	})
	if !found {
		return false, fmt.Errorf("session activity: %w", sentinel.ErrNotFound)
	}
	return warned, nil
}

func (s *InMemoryActivityStore) Delete(_ context.Context, userID string) (bool, error) {
	return s.records.Delete(userID), nil
}

// Sweep deletes records whose last activity is before cutoff.
func (s *InMemoryActivityStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	return s.records.DeleteFunc(func(_ string, a models.Activity) bool {
		return a.LastActivityAt.Before(cutoff)
	}), nil
}

func (s *InMemoryActivityStore) Count(context.Context) (int, error) {
	return s.records.Len(), nil
}
