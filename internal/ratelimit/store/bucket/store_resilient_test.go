package bucket

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollster/internal/ratelimit/models"
	"pollster/pkg/platform/circuit"
	"pollster/pkg/testutil"
)

type failingStore struct {
	err   error
	calls int
}

func (f *failingStore) Consume(context.Context, string, models.Limit, time.Time) (models.Bucket, bool, error) {
	f.calls++
	return models.Bucket{}, false, f.err
}

func (f *failingStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func TestResilientBucketStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limit := models.Limit{MaxRequests: 1, Window: time.Minute}
	ctx := context.Background()

	primary := &failingStore{err: errors.New("redis down")}
	fallback := NewInMemoryBucketStore()
	breaker := circuit.New("ratelimit_redis", circuit.WithFailureThreshold(2), circuit.WithProbeInterval(time.Hour))
	store := NewResilientBucketStore(primary, fallback, breaker, logger)

	_, _, err := store.Consume(ctx, "k", limit, testutil.T0)
	require.Error(t, err, "errors surface while the circuit is closed")

	b, allowed, err := store.Consume(ctx, "k", limit, testutil.T0)
	require.NoError(t, err, "the failure that opens the circuit is served by the fallback")
	assert.True(t, allowed)
	assert.Equal(t, 1, b.Count)

	_, allowed, err = store.Consume(ctx, "k", limit, testutil.T0)
	require.NoError(t, err)
	assert.False(t, allowed, "fallback enforces the quota")
	assert.Equal(t, 2, primary.calls, "open circuit skips the primary until a probe is due")
}

func TestResilientBucketStorePassThrough(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	primary := NewInMemoryBucketStore()
	fallback := NewInMemoryBucketStore()
	store := NewResilientBucketStore(primary, fallback, circuit.New("ratelimit_redis"), logger)

	_, allowed, err := store.Consume(context.Background(), "k", models.Limit{MaxRequests: 1, Window: time.Minute}, testutil.T0)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, primary.Len())
	assert.Equal(t, 0, fallback.Len())
}
