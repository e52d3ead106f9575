package bucket

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pollster/internal/ratelimit/models"
)

//go:embed consume.lua
var consumeSource string

var consumeScript = redis.NewScript(consumeSource)

// RedisBucketStore keeps counters in Redis so every instance shares one
// quota. The window is the key's TTL; Redis evicts expired buckets itself.
type RedisBucketStore struct {
	client redis.Scripter
	prefix string
}

func NewRedisBucketStore(client redis.Scripter) *RedisBucketStore {
	return &RedisBucketStore{client: client, prefix: "ratelimit:"}
}

// Consume runs the fixed-window check atomically on the server. The reset
// instant is derived from the key's remaining TTL relative to now.
func (s *RedisBucketStore) Consume(ctx context.Context, key string, limit models.Limit, now time.Time) (models.Bucket, bool, error) {
	res, err := consumeScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		limit.MaxRequests, limit.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return models.Bucket{}, false, fmt.Errorf("consume rate limit bucket: %w", err)
	}
	if len(res) != 3 {
		return models.Bucket{}, false, fmt.Errorf("consume rate limit bucket: unexpected reply length %d", len(res))
	}

	return models.Bucket{
		Count:         int(res[0]),
		WindowResetAt: now.Add(time.Duration(res[1]) * time.Millisecond),
	}, res[2] == 1, nil
}

// Sweep is a no-op: bucket keys carry their window as a TTL.
func (s *RedisBucketStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
