package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	tu "pollster/pkg/testutil"
)

const (
	inactivity  = 2 * time.Hour
	warningLead = 5 * time.Minute
	maxDuration = 8 * time.Hour
)

func TestTouched(t *testing.T) {
	t.Run("new record starts now", func(t *testing.T) {
		a := Activity{}.Touched(false, tu.T0, "Firefox on Linux")
		assert.Equal(t, tu.T0, a.SessionStartAt)
		assert.Equal(t, tu.T0, a.LastActivityAt)
		assert.Equal(t, "Firefox on Linux", a.Device)
	})

	t.Run("existing record keeps start and device, clears warning", func(t *testing.T) {
		cur := Activity{LastActivityAt: tu.T0, SessionStartAt: tu.T0, WarningIssued: true, Device: "Chrome on macOS"}
		a := cur.Touched(true, tu.T0.Add(time.Hour), "")
		assert.Equal(t, tu.T0, a.SessionStartAt)
		assert.Equal(t, tu.T0.Add(time.Hour), a.LastActivityAt)
		assert.False(t, a.WarningIssued)
		assert.Equal(t, "Chrome on macOS", a.Device)
	})
}

func TestTerminationReason(t *testing.T) {
	a := Activity{LastActivityAt: tu.T0, SessionStartAt: tu.T0}

	assert.Empty(t, a.TerminationReason(tu.T0.Add(119*time.Minute), inactivity, maxDuration))
	assert.Equal(t, ReasonInactivity, a.TerminationReason(tu.T0.Add(120*time.Minute), inactivity, maxDuration))

	active := Activity{LastActivityAt: tu.T0.Add(8*time.Hour - time.Minute), SessionStartAt: tu.T0}
	assert.Empty(t, active.TerminationReason(tu.T0.Add(8*time.Hour-time.Second), inactivity, maxDuration))
	assert.Equal(t, ReasonMaxDuration, active.TerminationReason(tu.T0.Add(8*time.Hour+time.Second), inactivity, maxDuration),
		"recently active sessions still hit the cap")
}

func TestWarnDue(t *testing.T) {
	a := Activity{LastActivityAt: tu.T0, SessionStartAt: tu.T0}

	assert.False(t, a.WarnDue(tu.T0.Add(114*time.Minute), inactivity, warningLead))
	assert.True(t, a.WarnDue(tu.T0.Add(115*time.Minute), inactivity, warningLead))
	assert.False(t, a.WarnDue(tu.T0.Add(120*time.Minute), inactivity, warningLead), "past the cutoff the session is over")

	a.WarningIssued = true
	assert.False(t, a.WarnDue(tu.T0.Add(116*time.Minute), inactivity, warningLead))
}
