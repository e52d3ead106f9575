package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollster/internal/platform/config"
)

func TestNew(t *testing.T) {
	t.Run("empty URL disables redis", func(t *testing.T) {
		c, err := New(context.Background(), config.RedisConfig{}, prometheus.NewRegistry())
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("connects and reports healthy", func(t *testing.T) {
		mr := miniredis.RunT(t)
		c, err := New(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr(), PoolSize: 2}, prometheus.NewRegistry())
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })

		assert.NoError(t, c.Health(context.Background()))
	})

	t.Run("invalid URL is an error", func(t *testing.T) {
		_, err := New(context.Background(), config.RedisConfig{URL: "://nope"}, prometheus.NewRegistry())
		assert.Error(t, err)
	})
}

func TestRecordPoolStats(t *testing.T) {
	mr := miniredis.RunT(t)
	c := Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), prometheus.NewRegistry())
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Set(context.Background(), "k", "v", 0).Err())
	c.RecordPoolStats()
	first := testutil.ToFloat64(c.metrics.hits) + testutil.ToFloat64(c.metrics.misses)

	require.NoError(t, c.Get(context.Background(), "k").Err())
	c.RecordPoolStats()
	second := testutil.ToFloat64(c.metrics.hits) + testutil.ToFloat64(c.metrics.misses)

	assert.Greater(t, second, first)
	assert.GreaterOrEqual(t, testutil.ToFloat64(c.metrics.totalConns), float64(1))
}
