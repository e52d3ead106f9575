package token

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"pollster/internal/csrf/models"
)

const (
	recordKeyPrefix = "csrf:token:"
	ownerKeyPrefix  = "csrf:owner:"
)

//go:embed verify.lua
var verifySource string

var verifyScript = redis.NewScript(verifySource)

// RedisTokenStore keeps token records as Redis hashes that expire with the
// token. Each owner has a set of its record keys for sign-out revocation.
type RedisTokenStore struct {
	client redis.Cmdable
}

func NewRedisTokenStore(client redis.Cmdable) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) Save(ctx context.Context, digest string, rec models.Record) error {
	key := recordKeyPrefix + digest
	ownerKey := ownerKeyPrefix + rec.OwnerID
	ttl := rec.ExpiresAt.Sub(rec.IssuedAt)
	if ttl <= 0 {
		return fmt.Errorf("save csrf record: non-positive ttl %s", ttl)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"owner", rec.OwnerID,
			"issued_at", rec.IssuedAt.UnixMilli(),
			"expires_at", rec.ExpiresAt.UnixMilli(),
		)
		pipe.PExpire(ctx, key, ttl)
		pipe.SAdd(ctx, ownerKey, key)
		pipe.PExpire(ctx, ownerKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save csrf record: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Verify(ctx context.Context, digest, ownerID string, now time.Time) error {
	res, err := verifyScript.Run(ctx, s.client,
		[]string{recordKeyPrefix + digest},
		ownerID, now.UnixMilli(), ownerKeyPrefix,
	).Int()
	if err != nil {
		return fmt.Errorf("verify csrf record: %w", err)
	}
	switch res {
	case 0:
		return nil
	case 2:
		return models.ErrTokenExpired
	default:
		return models.ErrTokenInvalid
	}
}

func (s *RedisTokenStore) Get(ctx context.Context, digest string) (models.Record, bool, error) {
	vals, err := s.client.HGetAll(ctx, recordKeyPrefix+digest).Result()
	if err != nil {
		return models.Record{}, false, fmt.Errorf("get csrf record: %w", err)
	}
	if len(vals) == 0 {
		return models.Record{}, false, nil
	}
	issued, errIssued := strconv.ParseInt(vals["issued_at"], 10, 64)
	expires, errExpires := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err := errors.Join(errIssued, errExpires); err != nil {
		return models.Record{}, false, fmt.Errorf("decode csrf record: %w", err)
	}
	return models.Record{
		OwnerID:   vals["owner"],
		IssuedAt:  time.UnixMilli(issued).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
	}, true, nil
}

func (s *RedisTokenStore) RevokeForOwner(ctx context.Context, ownerID string) (int, error) {
	ownerKey := ownerKeyPrefix + ownerID
	keys, err := s.client.SMembers(ctx, ownerKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list csrf records for owner: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	removed, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("revoke csrf records: %w", err)
	}
	if err := s.client.Del(ctx, ownerKey).Err(); err != nil {
		return int(removed), fmt.Errorf("delete csrf owner set: %w", err)
	}
	return int(removed), nil
}

// Sweep is a no-op: records expire with their key TTL.
func (s *RedisTokenStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
