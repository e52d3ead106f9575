package identity

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "pollster/pkg/domain-errors"
	"pollster/pkg/platform/httputil"
	"pollster/pkg/requestcontext"
)

// AccessTokenCookie is the cookie the hosted auth client library writes.
const AccessTokenCookie = "sb-access-token"

// Validator verifies a raw access token.
type Validator interface {
	Validate(ctx context.Context, raw string) (*requestcontext.Identity, error)
}

// Authenticate attaches the caller's identity to the request context when a
// valid credential is presented. Requests without one, or with an invalid
// one, continue anonymously; RequireAuth decides whether that is allowed.
func Authenticate(v Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := credentialFrom(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			identity, err := v.Validate(ctx, raw)
			if err != nil {
				logger.InfoContext(ctx, "ignoring invalid credential",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithIdentity(ctx, identity)))
		})
	}
}

// RequireAuth rejects anonymous requests with 401 AUTHENTICATION_REQUIRED.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestcontext.CurrentIdentity(r.Context()) == nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeAuthenticationRequired, ""))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func credentialFrom(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}
