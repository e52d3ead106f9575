package models

import (
	"math"
	"time"

	dErrors "pollster/pkg/domain-errors"
)

// LimitClass names a category of endpoints sharing one quota.
type LimitClass string

const (
	// ClassGeneric covers reads and anything not classified below (100 per 15m).
	ClassGeneric LimitClass = "generic"
	// ClassCreatePoll covers poll creation (10 per hour).
	ClassCreatePoll LimitClass = "createPoll"
	// ClassVoting covers casting votes (50 per 15m).
	ClassVoting LimitClass = "voting"
	// ClassAuth covers session start and sign-out (20 per 15m).
	ClassAuth LimitClass = "auth"
)

// AllClasses lists every known class.
var AllClasses = []LimitClass{ClassGeneric, ClassCreatePoll, ClassVoting, ClassAuth}

func (c LimitClass) IsValid() bool {
	switch c {
	case ClassGeneric, ClassCreatePoll, ClassVoting, ClassAuth:
		return true
	}
	return false
}

func (c LimitClass) String() string {
	return string(c)
}

// ParseLimitClass accepts the class name or its snake_case form
// ("create_poll"), as used in environment variable suffixes.
func ParseLimitClass(s string) (LimitClass, error) {
	if s == "create_poll" {
		return ClassCreatePoll, nil
	}
	c := LimitClass(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown rate limit class: "+s)
	}
	return c, nil
}

// Limit is the quota for a class: at most MaxRequests per Window.
type Limit struct {
	MaxRequests int
	Window      time.Duration
}

// Bucket is the fixed-window counter for one (class, client) pair.
type Bucket struct {
	Count         int
	WindowResetAt time.Time
}

// Expired reports whether the window has elapsed. The reset instant itself
// still belongs to the old window.
func (b Bucket) Expired(now time.Time) bool {
	return now.After(b.WindowResetAt)
}

// Consume applies one request to the bucket. exists is false for a key
// seen for the first time.
func (b Bucket) Consume(exists bool, limit Limit, now time.Time) (next Bucket, allowed bool) {
	if !exists || b.Expired(now) {
		return Bucket{Count: 1, WindowResetAt: now.Add(limit.Window)}, true
	}
	if b.Count >= limit.MaxRequests {
		return b, false
	}
	b.Count++
	return b, true
}

// Result is the outcome of a single check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	// RetryAfter is whole seconds until the window resets; zero when allowed.
	RetryAfter int `json:"retry_after,omitempty"`
}

// NewResult derives the client-facing result from a bucket state.
func NewResult(b Bucket, allowed bool, limit Limit, now time.Time) *Result {
	r := &Result{
		Allowed:   allowed,
		Limit:     limit.MaxRequests,
		Remaining: max(limit.MaxRequests-b.Count, 0),
		ResetAt:   b.WindowResetAt,
	}
	if !allowed {
		r.Remaining = 0
		r.RetryAfter = RetryAfterSeconds(b.WindowResetAt, now)
	}
	return r
}

// RetryAfterSeconds is ceil((resetAt-now)/1s), at least 1 so a rejected
// client never sees "retry after 0".
func RetryAfterSeconds(resetAt, now time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	return max(secs, 1)
}
