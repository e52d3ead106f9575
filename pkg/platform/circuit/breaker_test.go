package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAndCloses(t *testing.T) {
	var transitions []State
	b := New("redis",
		WithFailureThreshold(2),
		WithSuccessThreshold(2),
		WithStateHook(func(_ string, s State) { transitions = append(transitions, s) }),
	)

	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())

	require.Equal(t, []State{StateOpen, StateClosed}, transitions)
}

func TestBreakerFailureBeforeThresholdResetsOnSuccess(t *testing.T) {
	b := New("redis", WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	useFallback, _ := b.RecordFailure()

	assert.False(t, useFallback)
	assert.False(t, b.IsOpen())
}

func TestBreakerAllowPrimaryProbes(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("redis",
		WithFailureThreshold(1),
		WithProbeInterval(time.Second),
		WithClock(func() time.Time { return now }),
	)

	assert.True(t, b.AllowPrimary())
	b.RecordFailure()
	require.True(t, b.IsOpen())

	assert.False(t, b.AllowPrimary(), "no probe inside the interval")

	now = now.Add(time.Second)
	assert.True(t, b.AllowPrimary(), "one probe after the interval")
	assert.False(t, b.AllowPrimary(), "only one probe per interval")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closed", StateClosed.String())
}
