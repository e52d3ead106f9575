package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestBucketConsume(t *testing.T) {
	limit := Limit{MaxRequests: 2, Window: time.Minute}

	t.Run("first request opens a window", func(t *testing.T) {
		b, allowed := Bucket{}.Consume(false, limit, t0)
		assert.True(t, allowed)
		assert.Equal(t, Bucket{Count: 1, WindowResetAt: t0.Add(time.Minute)}, b)
	})

	t.Run("increments within the window then rejects at max", func(t *testing.T) {
		b, _ := Bucket{}.Consume(false, limit, t0)
		b, allowed := b.Consume(true, limit, t0.Add(time.Second))
		require.True(t, allowed)
		assert.Equal(t, 2, b.Count)

		after, allowed := b.Consume(true, limit, t0.Add(2*time.Second))
		assert.False(t, allowed)
		assert.Equal(t, b, after, "rejection does not mutate the bucket")
	})

	t.Run("reset instant still belongs to the old window", func(t *testing.T) {
		full := Bucket{Count: 2, WindowResetAt: t0.Add(time.Minute)}
		_, allowed := full.Consume(true, limit, t0.Add(time.Minute))
		assert.False(t, allowed)

		b, allowed := full.Consume(true, limit, t0.Add(time.Minute+time.Millisecond))
		assert.True(t, allowed)
		assert.Equal(t, 1, b.Count)
	})
}

func TestNewResult(t *testing.T) {
	limit := Limit{MaxRequests: 10, Window: time.Hour}

	t.Run("allowed reports remaining after increment", func(t *testing.T) {
		r := NewResult(Bucket{Count: 3, WindowResetAt: t0.Add(time.Hour)}, true, limit, t0)
		assert.Equal(t, &Result{Allowed: true, Limit: 10, Remaining: 7, ResetAt: t0.Add(time.Hour)}, r)
	})

	t.Run("rejected rounds retry-after up", func(t *testing.T) {
		r := NewResult(Bucket{Count: 10, WindowResetAt: t0.Add(90*time.Second + time.Millisecond)}, false, limit, t0)
		assert.False(t, r.Allowed)
		assert.Equal(t, 0, r.Remaining)
		assert.Equal(t, 91, r.RetryAfter)
	})
}

func TestRetryAfterSecondsFloor(t *testing.T) {
	assert.Equal(t, 1, RetryAfterSeconds(t0, t0))
	assert.Equal(t, 1, RetryAfterSeconds(t0.Add(time.Millisecond), t0))
	assert.Equal(t, 3600, RetryAfterSeconds(t0.Add(time.Hour), t0))
}

func TestParseLimitClass(t *testing.T) {
	c, err := ParseLimitClass("create_poll")
	require.NoError(t, err)
	assert.Equal(t, ClassCreatePoll, c)

	c, err = ParseLimitClass("voting")
	require.NoError(t, err)
	assert.Equal(t, ClassVoting, c)

	_, err = ParseLimitClass("admin")
	assert.Error(t, err)
}
