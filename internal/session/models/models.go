package models

import (
	"time"
)

// Activity is the server-side record of one user's session.
type Activity struct {
	LastActivityAt time.Time `json:"last_activity_at"`
	// SessionStartAt is kept across activity updates until the session ends.
	SessionStartAt time.Time `json:"session_start_at"`
	// WarningIssued is set once the inactivity warning has been returned and
	// cleared by the next activity.
	WarningIssued bool   `json:"warning_issued"`
	Device        string `json:"device,omitempty"`
}

// Touched returns the record after activity at now. exists is false when
// there is no current record.
func (a Activity) Touched(exists bool, now time.Time, device string) Activity {
	next := Activity{
		LastActivityAt: now,
		SessionStartAt: now,
		Device:         device,
	}
	if exists {
		next.SessionStartAt = a.SessionStartAt
		if device == "" {
			next.Device = a.Device
		}
	}
	return next
}

// IdleRemaining is the time left before the inactivity cutoff.
func (a Activity) IdleRemaining(now time.Time, inactivity time.Duration) time.Duration {
	return a.LastActivityAt.Add(inactivity).Sub(now)
}

// SessionRemaining is the time left before the absolute session cap.
func (a Activity) SessionRemaining(now time.Time, maxDuration time.Duration) time.Duration {
	return a.SessionStartAt.Add(maxDuration).Sub(now)
}

// TerminationReason reports why the session is over at now, or "" while it
// is live. A session ends when its remaining idle or total time reaches zero.
func (a Activity) TerminationReason(now time.Time, inactivity, maxDuration time.Duration) Reason {
	if a.IdleRemaining(now, inactivity) <= 0 {
		return ReasonInactivity
	}
	if a.SessionRemaining(now, maxDuration) <= 0 {
		return ReasonMaxDuration
	}
	return ""
}

// WarnDue reports whether the one-time warning should fire at now: not yet
// issued and the cutoff is within lead but not yet reached.
func (a Activity) WarnDue(now time.Time, inactivity, lead time.Duration) bool {
	if a.WarningIssued {
		return false
	}
	remaining := a.IdleRemaining(now, inactivity)
	return remaining > 0 && remaining <= lead
}

// Reason explains why a session is not valid.
type Reason string

const (
	ReasonNotFound    Reason = "not_found"
	ReasonInactivity  Reason = "inactivity"
	ReasonMaxDuration Reason = "max_duration"
	ReasonSignedOut   Reason = "signed_out"
)

// TerminationDecision is the result of ShouldTerminate.
type TerminationDecision struct {
	Terminate bool
	Reason    Reason
}

// Validation is the result of ValidateAndMaybeRefresh.
type Validation struct {
	Valid         bool
	ShouldRefresh bool
	Reason        Reason
}

// Status is the advisory session state served to the browser timer.
type Status struct {
	Valid                   bool   `json:"valid"`
	Reason                  Reason `json:"reason,omitempty"`
	Warn                    bool   `json:"warn"`
	ShouldRefresh           bool   `json:"should_refresh"`
	IdleExpiresInSeconds    int64  `json:"idle_expires_in_seconds"`
	SessionExpiresInSeconds int64  `json:"session_expires_in_seconds"`
	Device                  string `json:"device,omitempty"`
}

// SignOutResponse is the body of the sign-out endpoint.
type SignOutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
