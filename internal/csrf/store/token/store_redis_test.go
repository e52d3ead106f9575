package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"pollster/internal/csrf/models"
	tu "pollster/pkg/testutil"
)

// Justification: with several instances the Redis store is the source of
// truth; its verify script must evict exactly like the memory store.
type RedisTokenStoreSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	store  *RedisTokenStore
	ctx    context.Context
}

func TestRedisTokenStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisTokenStoreSuite))
}

func (s *RedisTokenStoreSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.store = NewRedisTokenStore(s.client)
	s.ctx = context.Background()
}

func (s *RedisTokenStoreSuite) TearDownTest() {
	_ = s.client.Close()
}

func (s *RedisTokenStoreSuite) TestSaveAndGet() {
	rec := models.NewRecord("alice", tu.T0, 24*time.Hour)
	s.Require().NoError(s.store.Save(s.ctx, "d1", rec))

	got, ok, err := s.store.Get(s.ctx, "d1")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal("alice", got.OwnerID)
	s.True(rec.IssuedAt.Equal(got.IssuedAt))
	s.True(rec.ExpiresAt.Equal(got.ExpiresAt))
	s.Equal(24*time.Hour, s.mr.TTL(recordKeyPrefix+"d1"))
}

func (s *RedisTokenStoreSuite) TestExpiryScenario() {
	s.Require().NoError(s.store.Save(s.ctx, "d1", models.NewRecord("alice", tu.T0, 24*time.Hour)))

	s.NoError(s.store.Verify(s.ctx, "d1", "alice", tu.T0.Add(23*time.Hour+59*time.Minute)))
	s.NoError(s.store.Verify(s.ctx, "d1", "alice", tu.T0.Add(23*time.Hour+59*time.Minute)))

	err := s.store.Verify(s.ctx, "d1", "alice", tu.T0.Add(24*time.Hour+time.Minute))
	s.ErrorIs(err, models.ErrTokenExpired)

	_, ok, err := s.store.Get(s.ctx, "d1")
	s.Require().NoError(err)
	s.False(ok)
	s.False(s.mr.Exists(recordKeyPrefix + "d1"))
}

func (s *RedisTokenStoreSuite) TestOwnerMismatchEvicts() {
	s.Require().NoError(s.store.Save(s.ctx, "d1", models.NewRecord("alice", tu.T0, time.Hour)))

	s.ErrorIs(s.store.Verify(s.ctx, "d1", "bob", tu.T0), models.ErrTokenInvalid)
	s.ErrorIs(s.store.Verify(s.ctx, "d1", "alice", tu.T0), models.ErrTokenInvalid)

	members, err := s.mr.Members(ownerKeyPrefix + "alice")
	if err == nil {
		s.Empty(members)
	}
}

func (s *RedisTokenStoreSuite) TestUnknownDigest() {
	s.ErrorIs(s.store.Verify(s.ctx, "missing", "alice", tu.T0), models.ErrTokenInvalid)
}

func (s *RedisTokenStoreSuite) TestRevokeForOwner() {
	s.Require().NoError(s.store.Save(s.ctx, "a1", models.NewRecord("alice", tu.T0, time.Hour)))
	s.Require().NoError(s.store.Save(s.ctx, "a2", models.NewRecord("alice", tu.T0, time.Hour)))
	s.Require().NoError(s.store.Save(s.ctx, "b1", models.NewRecord("bob", tu.T0, time.Hour)))

	removed, err := s.store.RevokeForOwner(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(2, removed)

	_, ok, _ := s.store.Get(s.ctx, "a1")
	s.False(ok)
	_, ok, _ = s.store.Get(s.ctx, "b1")
	s.True(ok)

	removed, err = s.store.RevokeForOwner(s.ctx, "alice")
	s.Require().NoError(err)
	s.Zero(removed)
}

func (s *RedisTokenStoreSuite) TestKeyTTLExpiry() {
	s.Require().NoError(s.store.Save(s.ctx, "d1", models.NewRecord("alice", tu.T0, time.Hour)))
	s.mr.FastForward(time.Hour + time.Second)

	_, ok, err := s.store.Get(s.ctx, "d1")
	s.Require().NoError(err)
	s.False(ok)
}
