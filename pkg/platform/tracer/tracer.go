// Package tracer provides a small tracing abstraction for the request guards.
//
// Guards depend on the Tracer interface rather than on OpenTelemetry directly.
// NoopTracer is used in tests; OTelTracer is wired in the server.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks the span as failed.
	// End must be called exactly once, typically via defer.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a new span with the given name and attributes.
	//
	// Example:
	//   ctx, span := t.Start(ctx, tracer.SpanRateLimitCheck,
	//       tracer.String(tracer.AttrLimitClass, "voting"),
	//   )
	//   defer span.End(nil)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashIdentity returns a short SHA-256 prefix of a client or user identity,
// so traces can be correlated without carrying the identity itself.
func HashIdentity(identity string) string {
	if identity == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(hash[:8])
}

// Span names.
const (
	SpanRateLimitCheck  = "ratelimit.check"
	SpanCSRFValidate    = "csrf.validate"
	SpanCSRFIssue       = "csrf.issue"
	SpanSessionValidate = "session.validate"
	SpanSessionSignOut  = "session.signout"
)

// Attribute keys.
const (
	AttrLimitClass    = "ratelimit.class"
	AttrAllowed       = "ratelimit.allowed"
	AttrRemaining     = "ratelimit.remaining"
	AttrClientHash    = "client.hash"
	AttrCSRFReason    = "csrf.reason"
	AttrSessionValid  = "session.valid"
	AttrSessionReason = "session.reason"
	AttrShouldRefresh = "session.should_refresh"
)

// Event names.
const (
	EventFailOpen         = "ratelimit.fail_open"
	EventSessionWarned    = "session.warned"
	EventSessionTerminate = "session.terminated"
)
