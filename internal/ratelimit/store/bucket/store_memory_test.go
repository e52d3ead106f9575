package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"pollster/internal/ratelimit/models"
	"pollster/pkg/testutil"
)

// InMemoryBucketStoreSuite tests the fixed-window counter store.
//
// Justification: the check-then-increment sequence must be atomic per key;
// a race here lets a client exceed its quota.
type InMemoryBucketStoreSuite struct {
	suite.Suite
	store *InMemoryBucketStore
	ctx   context.Context
}

func TestInMemoryBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryBucketStoreSuite))
}

func (s *InMemoryBucketStoreSuite) SetupTest() {
	s.store = NewInMemoryBucketStore()
	s.ctx = context.Background()
}

func (s *InMemoryBucketStoreSuite) TestFixedWindow() {
	limit := models.Limit{MaxRequests: 3, Window: time.Minute}
	t0 := testutil.T0

	s.Run("allows up to max then rejects", func() {
		for i := 1; i <= 3; i++ {
			b, allowed, err := s.store.Consume(s.ctx, "k1", limit, t0.Add(time.Duration(i)*time.Second))
			s.Require().NoError(err)
			s.True(allowed)
			s.Equal(i, b.Count)
			s.Equal(t0.Add(time.Second+time.Minute), b.WindowResetAt, "window anchored at first request")
		}

		b, allowed, err := s.store.Consume(s.ctx, "k1", limit, t0.Add(10*time.Second))
		s.Require().NoError(err)
		s.False(allowed)
		s.Equal(3, b.Count)
	})

	s.Run("new window after reset", func() {
		b, allowed, err := s.store.Consume(s.ctx, "k1", limit, t0.Add(2*time.Minute))
		s.Require().NoError(err)
		s.True(allowed)
		s.Equal(1, b.Count)
	})

	s.Run("keys are independent", func() {
		b, allowed, err := s.store.Consume(s.ctx, "k2", limit, t0)
		s.Require().NoError(err)
		s.True(allowed)
		s.Equal(1, b.Count)
	})
}

func (s *InMemoryBucketStoreSuite) TestConcurrentConsumeNeverExceedsMax() {
	limit := models.Limit{MaxRequests: 25, Window: time.Minute}

	allowed := testutil.RunConcurrentCount(200, func(int) bool {
		_, ok, err := s.store.Consume(s.ctx, "hot", limit, testutil.T0)
		return err == nil && ok
	})

	s.Equal(int32(25), allowed)
	b, _, _ := s.store.Get(s.ctx, "hot")
	s.Equal(25, b.Count)
}

func (s *InMemoryBucketStoreSuite) TestSweep() {
	short := models.Limit{MaxRequests: 5, Window: time.Minute}
	long := models.Limit{MaxRequests: 5, Window: time.Hour}
	t0 := testutil.T0

	_, _, _ = s.store.Consume(s.ctx, "short", short, t0)
	_, _, _ = s.store.Consume(s.ctx, "long", long, t0)

	removed, err := s.store.Sweep(s.ctx, t0.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(0, removed, "bucket is live at its reset instant")

	removed, err = s.store.Sweep(s.ctx, t0.Add(2*time.Minute))
	s.Require().NoError(err)
	s.Equal(1, removed)
	s.Equal(1, s.store.Len())

	_, ok, _ := s.store.Get(s.ctx, "short")
	s.False(ok)
}
