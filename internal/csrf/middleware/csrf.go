package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"pollster/internal/csrf/config"
	"pollster/internal/csrf/metrics"
	"pollster/internal/csrf/models"
	dErrors "pollster/pkg/domain-errors"
	"pollster/pkg/platform/httputil"
	"pollster/pkg/platform/tracer"
	"pollster/pkg/requestcontext"
)

// Validator checks a presented token for an identity.
type Validator interface {
	Validate(ctx context.Context, ownerID, token string) error
}

// Guard rejects state-changing requests that lack a valid token for the
// authenticated caller. Any validation error, including a store failure,
// rejects the request.
type Guard struct {
	validator Validator
	config    *config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
}

type Option func(*Guard)

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(g *Guard) {
		if t != nil {
			g.tracer = t
		}
	}
}

func New(v Validator, cfg *config.Config, logger *slog.Logger, opts ...Option) *Guard {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	g := &Guard{
		validator: v,
		config:    cfg,
		logger:    logger,
		tracer:    tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CSRFErrorResponse is the 403 body. Reason tells the client whether to
// fetch a fresh token and retry.
type CSRFErrorResponse struct {
	httputil.ErrorResponse
	Reason models.Reason `json:"reason"`
}

// Protect validates the token on protected methods. The token is read from
// the X-CSRF-Token header, then the csrf-token cookie.
func (g *Guard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.config.RequiresToken(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		identity := requestcontext.CurrentIdentity(ctx)
		if identity == nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeAuthenticationRequired, ""))
			return
		}

		ctx, span := g.tracer.Start(ctx, tracer.SpanCSRFValidate)
		err := g.validator.Validate(ctx, identity.UserID.String(), TokenFrom(r))
		if err == nil {
			span.End(nil)
			next.ServeHTTP(w, r)
			return
		}

		reason := models.ReasonOf(err)
		span.SetAttributes(tracer.String(tracer.AttrCSRFReason, string(reason)))
		span.End(err)

		if dErrors.HasCode(err, dErrors.CodeCSRFInvalid) {
			g.logger.WarnContext(ctx, "csrf_validation_failed",
				"reason", reason,
				"user_id", identity.UserID.String(),
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
			)
		} else {
			g.logger.ErrorContext(ctx, "csrf validation error, rejecting request",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		if g.metrics != nil {
			g.metrics.IncrementValidationFailure(string(reason))
		}
		writeCSRFInvalid(w, reason)
	})
}

// TokenFrom returns the presented token, preferring the header.
func TokenFrom(r *http.Request) string {
	if token := r.Header.Get(config.HeaderName); token != "" {
		return token
	}
	if cookie, err := r.Cookie(config.CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func writeCSRFInvalid(w http.ResponseWriter, reason models.Reason) {
	message := "Your security token is invalid or expired. Please refresh and try again."
	if reason == models.ReasonMissing {
		message = "A security token is required. Please refresh and try again."
	}
	httputil.WriteJSON(w, http.StatusForbidden, &CSRFErrorResponse{
		ErrorResponse: httputil.ErrorResponse{
			Error:   "CSRF validation failed",
			Message: message,
			Code:    httputil.DomainCodeToHTTPCode(dErrors.CodeCSRFInvalid),
		},
		Reason: reason,
	})
}
