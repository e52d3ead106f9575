package activity

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"pollster/internal/session/models"
	"pollster/pkg/platform/sentinel"
)

const keyPrefix = "session:activity:"

var (
	//go:embed touch.lua
	touchSource string
	//go:embed warn.lua
	warnSource string

	touchScript = redis.NewScript(touchSource)
	warnScript  = redis.NewScript(warnSource)
)

// RedisActivityStore keeps session activity as Redis hashes. Each touch
// resets the key TTL, so idle records expire without a sweep.
type RedisActivityStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisActivityStore creates the store. ttl should exceed the inactivity
// timeout so an idle session still reports "inactivity" before it expires.
func NewRedisActivityStore(client redis.Cmdable, ttl time.Duration) *RedisActivityStore {
	return &RedisActivityStore{client: client, ttl: ttl}
}

func (s *RedisActivityStore) Touch(ctx context.Context, userID string, now time.Time, device string) (models.Activity, error) {
	return s.touch(ctx, userID, now, device, false)
}

func (s *RedisActivityStore) Restart(ctx context.Context, userID string, now time.Time, device string) (models.Activity, error) {
	return s.touch(ctx, userID, now, device, true)
}

func (s *RedisActivityStore) touch(ctx context.Context, userID string, now time.Time, device string, restart bool) (models.Activity, error) {
	restartArg := "0"
	if restart {
		restartArg = "1"
	}
	res, err := touchScript.Run(ctx, s.client,
		[]string{keyPrefix + userID},
		now.UnixMilli(), device, s.ttl.Milliseconds(), restartArg,
	).StringSlice()
	if err != nil {
		return models.Activity{}, fmt.Errorf("touch session activity: %w", err)
	}
	if len(res) != 2 {
		return models.Activity{}, fmt.Errorf("touch session activity: unexpected reply length %d", len(res))
	}
	start, err := strconv.ParseInt(res[0], 10, 64)
	if err != nil {
		return models.Activity{}, fmt.Errorf("decode session start: %w", err)
	}
	return models.Activity{
		LastActivityAt: now,
		SessionStartAt: time.UnixMilli(start).UTC(),
		Device:         res[1],
	}, nil
}

func (s *RedisActivityStore) Get(ctx context.Context, userID string) (models.Activity, error) {
	vals, err := s.client.HGetAll(ctx, keyPrefix+userID).Result()
	if err != nil {
		return models.Activity{}, fmt.Errorf("get session activity: %w", err)
	}
	if len(vals) == 0 {
		return models.Activity{}, fmt.Errorf("session activity: %w", sentinel.ErrNotFound)
	}
	last, errLast := strconv.ParseInt(vals["last"], 10, 64)
	start, errStart := strconv.ParseInt(vals["start"], 10, 64)
	if err := errors.Join(errLast, errStart); err != nil {
		return models.Activity{}, fmt.Errorf("decode session activity: %w", err)
	}
	return models.Activity{
		LastActivityAt: time.UnixMilli(last).UTC(),
		SessionStartAt: time.UnixMilli(start).UTC(),
		WarningIssued:  vals["warned"] == "1",
		Device:         vals["device"],
	}, nil
}

func (s *RedisActivityStore) MarkWarned(ctx context.Context, userID string, now time.Time, inactivity, lead time.Duration) (bool, error) {
	res, err := warnScript.Run(ctx, s.client,
		[]string{keyPrefix + userID},
		now.UnixMilli(), inactivity.Milliseconds(), lead.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("mark session warned: %w", err)
	}
	if res < 0 {
		return false, fmt.Errorf("session activity: %w", sentinel.ErrNotFound)
	}
	return res == 1, nil
}

func (s *RedisActivityStore) Delete(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Del(ctx, keyPrefix+userID).Result()
	if err != nil {
		return false, fmt.Errorf("delete session activity: %w", err)
	}
	return n > 0, nil
}

// Sweep is a no-op: records expire with their key TTL.
func (s *RedisActivityStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

// Count scans the activity keyspace. It is used for the active-session
// gauge after sweeps, not on the request path.
func (s *RedisActivityStore) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 500).Result()
		if err != nil {
			return 0, fmt.Errorf("count session activity: %w", err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}
