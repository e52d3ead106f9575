package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"pollster/internal/session/models"
	dErrors "pollster/pkg/domain-errors"
	"pollster/pkg/platform/httputil"
	"pollster/pkg/platform/tracer"
	"pollster/pkg/requestcontext"
)

const (
	HeaderSessionValid  = "X-Session-Valid"
	HeaderShouldRefresh = "X-Should-Refresh-Session"
)

// Sessions is the subset of the session service the guard needs.
type Sessions interface {
	ValidateAndMaybeRefresh(ctx context.Context, identity *requestcontext.Identity) (models.Validation, error)
	Terminate(ctx context.Context, identity *requestcontext.Identity, reason models.Reason) error
	RecordActivity(ctx context.Context, userID string) (models.Activity, error)
}

// Guard ends sessions that are idle or too old and stamps activity on the
// ones that are not. Store failures reject the request.
type Guard struct {
	sessions Sessions
	logger   *slog.Logger
	tracer   tracer.Tracer
}

type Option func(*Guard)

func WithTracer(t tracer.Tracer) Option {
	return func(g *Guard) {
		if t != nil {
			g.tracer = t
		}
	}
}

func New(sessions Sessions, logger *slog.Logger, opts ...Option) *Guard {
	g := &Guard{
		sessions: sessions,
		logger:   logger,
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SessionErrorResponse is the 401 body for an ended session.
type SessionErrorResponse struct {
	httputil.ErrorResponse
	Reason models.Reason `json:"reason"`
}

// Validate requires a live session for the authenticated caller.
func (g *Guard) Validate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := requestcontext.RequestID(ctx)
		identity := requestcontext.CurrentIdentity(ctx)
		if identity == nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeAuthenticationRequired, ""))
			return
		}

		ctx, span := g.tracer.Start(ctx, tracer.SpanSessionValidate)
		v, err := g.sessions.ValidateAndMaybeRefresh(ctx, identity)
		if err != nil {
			span.End(err)
			g.logger.ErrorContext(ctx, "session validation error, rejecting request",
				"error", err,
				"request_id", requestID,
			)
			httputil.WriteError(w, err)
			return
		}
		span.SetAttributes(
			tracer.Bool(tracer.AttrSessionValid, v.Valid),
			tracer.Bool(tracer.AttrShouldRefresh, v.ShouldRefresh),
		)

		if !v.Valid {
			span.SetAttributes(tracer.String(tracer.AttrSessionReason, string(v.Reason)))
			span.AddEvent(tracer.EventSessionTerminate)
			if err := g.sessions.Terminate(ctx, identity, v.Reason); err != nil {
				span.End(err)
				g.logger.ErrorContext(ctx, "failed to terminate session",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, err)
				return
			}
			span.End(nil)
			writeSessionInvalid(w, v.Reason)
			return
		}

		if _, err := g.sessions.RecordActivity(ctx, identity.UserID.String()); err != nil {
			span.End(err)
			g.logger.ErrorContext(ctx, "failed to record session activity",
				"error", err,
				"request_id", requestID,
			)
			httputil.WriteError(w, err)
			return
		}
		span.End(nil)

		w.Header().Set(HeaderSessionValid, "true")
		if v.ShouldRefresh {
			w.Header().Set(HeaderShouldRefresh, "true")
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeSessionInvalid(w http.ResponseWriter, reason models.Reason) {
	message := "Your session has expired. Please sign in again."
	if reason == models.ReasonInactivity {
		message = "You were signed out after a period of inactivity. Please sign in again."
	}
	httputil.WriteJSON(w, http.StatusUnauthorized, &SessionErrorResponse{
		ErrorResponse: httputil.ErrorResponse{
			Error:   "Session invalid",
			Message: message,
			Code:    httputil.DomainCodeToHTTPCode(dErrors.CodeSessionInvalid),
		},
		Reason: reason,
	})
}
