// Package circuit provides a two-state circuit breaker for calls to shared
// infrastructure such as Redis or the hosted auth service.
package circuit

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the primary path is healthy.
	StateClosed State = iota
	// StateOpen means callers should prefer their fallback.
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// StateChange reports a transition caused by the last recorded outcome.
type StateChange struct {
	Opened bool
	Closed bool
}

// Breaker opens after FailureThreshold consecutive failures and closes again
// after SuccessThreshold consecutive successes. While open, AllowPrimary
// admits one probe per probe interval.
type Breaker struct {
	mu               sync.Mutex
	name             string
	state            State
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
	probeInterval    time.Duration
	lastProbe        time.Time
	now              func() time.Time
	onChange         func(name string, state State)
}

// Option configures a Breaker instance.
type Option func(*Breaker)

// WithFailureThreshold sets the consecutive failures that open the circuit. Default 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the consecutive successes that close it. Default 3.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithProbeInterval sets how often an open circuit lets a primary call through. Default 1s.
func WithProbeInterval(d time.Duration) Option {
	return func(b *Breaker) {
		if d >= 0 {
			b.probeInterval = d
		}
	}
}

// WithStateHook registers a callback invoked on every transition.
func WithStateHook(fn func(name string, state State)) Option {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a circuit breaker with the given name and options.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: 5,
		successThreshold: 3,
		probeInterval:    time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// AllowPrimary reports whether the caller should attempt the primary path.
// Always true while closed; while open, true at most once per probe interval.
func (b *Breaker) AllowPrimary() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		return true
	}
	now := b.now()
	if now.Sub(b.lastProbe) >= b.probeInterval {
		b.lastProbe = now
		return true
	}
	return false
}

// RecordFailure records a failed primary call and reports whether the
// caller should use its fallback.
func (b *Breaker) RecordFailure() (useFallback bool, change StateChange) {
	b.mu.Lock()
	b.failureCount++
	b.successCount = 0

	if b.state == StateOpen {
		b.mu.Unlock()
		return true, StateChange{}
	}
	if b.failureCount < b.failureThreshold {
		b.mu.Unlock()
		return false, StateChange{}
	}
	b.state = StateOpen
	b.lastProbe = b.now()
	hook := b.onChange
	b.mu.Unlock()

	if hook != nil {
		hook(b.name, StateOpen)
	}
	return true, StateChange{Opened: true}
}

// RecordSuccess records a successful primary call and reports whether the
// primary result should be trusted.
func (b *Breaker) RecordSuccess() (usePrimary bool, change StateChange) {
	b.mu.Lock()
	if b.state == StateClosed {
		b.failureCount = 0
		b.mu.Unlock()
		return true, StateChange{}
	}

	b.successCount++
	if b.successCount < b.successThreshold {
		b.mu.Unlock()
		return false, StateChange{}
	}
	b.state = StateClosed
	b.failureCount = 0
	b.successCount = 0
	hook := b.onChange
	b.mu.Unlock()

	if hook != nil {
		hook(b.name, StateClosed)
	}
	return true, StateChange{Closed: true}
}
