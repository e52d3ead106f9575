// Package requestcontext carries request-scoped values: the request time, the
// correlation id, client metadata and the authenticated identity.
//
// All operations within a single HTTP request use the same "now" timestamp,
// so guard decisions and the headers they emit agree with each other.
package requestcontext

import (
	"context"
	"time"

	id "pollster/pkg/domain"
)

type (
	requestTimeKey struct{}
	requestIDKey   struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	identityKey    struct{}
)

// Identity is the caller as resolved from a hosted-auth credential.
type Identity struct {
	UserID id.UserID
	Email  string
	// CredentialExpiresAt is the expiry of the underlying access token.
	CredentialExpiresAt time.Time
	// AccessToken is the raw credential, kept so it can be revoked on termination.
	AccessToken string
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClientMetadata stores the resolved client IP and User-Agent.
func WithClientMetadata(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, ip)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

func UserAgent(ctx context.Context) string {
	if v, ok := ctx.Value(userAgentKey{}).(string); ok {
		return v
	}
	return ""
}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// CurrentIdentity returns the authenticated caller, or nil for anonymous requests.
func CurrentIdentity(ctx context.Context) *Identity {
	if v, ok := ctx.Value(identityKey{}).(*Identity); ok && v != nil && !v.UserID.IsNil() {
		return v
	}
	return nil
}

// UserID returns the authenticated user id, or the nil id for anonymous requests.
func UserID(ctx context.Context) id.UserID {
	if identity := CurrentIdentity(ctx); identity != nil {
		return identity.UserID
	}
	return id.UserID{}
}
