package token

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"pollster/internal/csrf/models"
	tu "pollster/pkg/testutil"
)

// Justification: lookup-then-evict must be atomic so a token proven invalid
// or expired can never be accepted by a concurrent request.
type InMemoryTokenStoreSuite struct {
	suite.Suite
	store *InMemoryTokenStore
	ctx   context.Context
}

func TestInMemoryTokenStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryTokenStoreSuite))
}

func (s *InMemoryTokenStoreSuite) SetupTest() {
	s.store = NewInMemoryTokenStore()
	s.ctx = context.Background()
}

func (s *InMemoryTokenStoreSuite) TestVerify() {
	s.Require().NoError(s.store.Save(s.ctx, "d1", models.NewRecord("alice", tu.T0, 24*time.Hour)))

	s.Run("valid token verifies repeatedly", func() {
		for range 3 {
			s.NoError(s.store.Verify(s.ctx, "d1", "alice", tu.T0.Add(time.Hour)))
		}
		s.Equal(1, s.store.Len())
	})

	s.Run("unknown digest is invalid", func() {
		s.ErrorIs(s.store.Verify(s.ctx, "nope", "alice", tu.T0), models.ErrTokenInvalid)
		s.Equal(1, s.store.Len(), "no record created")
	})

	s.Run("owner mismatch evicts", func() {
		s.ErrorIs(s.store.Verify(s.ctx, "d1", "mallory", tu.T0), models.ErrTokenInvalid)
		_, ok, _ := s.store.Get(s.ctx, "d1")
		s.False(ok)
	})
}

func (s *InMemoryTokenStoreSuite) TestExpiredIsEvicted() {
	s.Require().NoError(s.store.Save(s.ctx, "d1", models.NewRecord("alice", tu.T0, 24*time.Hour)))

	s.NoError(s.store.Verify(s.ctx, "d1", "alice", tu.T0.Add(23*time.Hour+59*time.Minute)))
	s.ErrorIs(s.store.Verify(s.ctx, "d1", "alice", tu.T0.Add(24*time.Hour+time.Minute)), models.ErrTokenExpired)

	_, ok, err := s.store.Get(s.ctx, "d1")
	s.Require().NoError(err)
	s.False(ok)
	s.ErrorIs(s.store.Verify(s.ctx, "d1", "alice", tu.T0.Add(24*time.Hour+time.Minute)), models.ErrTokenInvalid)
}

func (s *InMemoryTokenStoreSuite) TestRevokeForOwner() {
	for i := range 3 {
		s.Require().NoError(s.store.Save(s.ctx, fmt.Sprintf("a%d", i), models.NewRecord("alice", tu.T0, time.Hour)))
	}
	s.Require().NoError(s.store.Save(s.ctx, "b0", models.NewRecord("bob", tu.T0, time.Hour)))

	removed, err := s.store.RevokeForOwner(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(3, removed)
	s.Equal(1, s.store.Len())
}

func (s *InMemoryTokenStoreSuite) TestSweep() {
	s.Require().NoError(s.store.Save(s.ctx, "old", models.NewRecord("alice", tu.T0, time.Hour)))
	s.Require().NoError(s.store.Save(s.ctx, "new", models.NewRecord("alice", tu.T0.Add(time.Hour), time.Hour)))

	removed, err := s.store.Sweep(s.ctx, tu.T0.Add(90*time.Minute))
	s.Require().NoError(err)
	s.Equal(1, removed)
	_, ok, _ := s.store.Get(s.ctx, "new")
	s.True(ok)
}

func (s *InMemoryTokenStoreSuite) TestMismatchInvalidatesForEveryone() {
	s.Require().NoError(s.store.Save(s.ctx, "d1", models.NewRecord("alice", tu.T0, time.Hour)))

	// Once any mismatch evicts the record, no later verification succeeds.
	invalidated := false
	for i := range 20 {
		owner := "alice"
		if i == 10 {
			owner = "mallory"
		}
		err := s.store.Verify(s.ctx, "d1", owner, tu.T0)
		if invalidated {
			s.Error(err)
		}
		if err != nil {
			invalidated = true
		}
	}
	s.True(invalidated)
}
