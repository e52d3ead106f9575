package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"pollster/internal/ratelimit/metrics"
	"pollster/internal/ratelimit/models"
	dErrors "pollster/pkg/domain-errors"
	"pollster/pkg/platform/httputil"
	"pollster/pkg/platform/middleware/metadata"
	"pollster/pkg/platform/privacy"
	"pollster/pkg/platform/tracer"
	"pollster/pkg/requestcontext"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Limiter decides whether a client may make one more request in a class.
type Limiter interface {
	Check(ctx context.Context, class models.LimitClass, client models.ClientIdentity) (*models.Result, error)
}

type Middleware struct {
	limiter Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

type Option func(*Middleware)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(mw *Middleware) {
		if t != nil {
			mw.tracer = t
		}
	}
}

func New(limiter Limiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
		tracer:  tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	httputil.ErrorResponse
	RetryAfter int `json:"retry_after"`
}

// RateLimit counts every request against class. Limiter errors let the
// request through.
func (m *Middleware) RateLimit(class models.LimitClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			client := ClientIdentity(ctx)

			ctx, span := m.tracer.Start(ctx, tracer.SpanRateLimitCheck,
				tracer.String(tracer.AttrLimitClass, class.String()),
				tracer.String(tracer.AttrClientHash, tracer.HashIdentity(client.String())),
			)
			result, err := m.limiter.Check(ctx, class, client)
			if err != nil {
				span.AddEvent(tracer.EventFailOpen)
				span.End(err)
				m.logger.ErrorContext(ctx, "rate limit check failed, allowing request",
					"error", err,
					"class", class,
					"client_prefix", logSafeClient(client),
					"request_id", requestcontext.RequestID(ctx),
				)
				if m.metrics != nil {
					m.metrics.IncrementCheckErrors(class.String())
				}
				next.ServeHTTP(w, r)
				return
			}
			span.SetAttributes(
				tracer.Bool(tracer.AttrAllowed, result.Allowed),
				tracer.Int64(tracer.AttrRemaining, int64(result.Remaining)),
			)
			span.End(nil)

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate_limit_exceeded",
					"class", class,
					"client_prefix", logSafeClient(client),
					"retry_after", result.RetryAfter,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIdentity resolves who a request is counted against: the
// authenticated user, else the client address resolved by the metadata
// middleware, else "unknown".
func ClientIdentity(ctx context.Context) models.ClientIdentity {
	if userID := requestcontext.UserID(ctx); !userID.IsNil() {
		return models.UserIdentity(userID.String())
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		return models.IPIdentity(ip)
	}
	return models.IPIdentity(metadata.UnknownClient)
}

func logSafeClient(client models.ClientIdentity) string {
	if client.Kind == models.KeyPrefixIP {
		return string(client.Kind) + ":" + privacy.AnonymizeIP(client.Value)
	}
	return client.String()
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set(HeaderLimit, strconv.Itoa(result.Limit))
	w.Header().Set(HeaderRemaining, strconv.Itoa(result.Remaining))
	w.Header().Set(HeaderReset, strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	code := dErrors.CodeRateLimited
	httputil.WriteJSON(w, http.StatusTooManyRequests, &RateLimitExceededResponse{
		ErrorResponse: httputil.ErrorResponse{
			Error:   "Too many requests",
			Message: "Too many requests. Please try again later.",
			Code:    httputil.DomainCodeToHTTPCode(code),
		},
		RetryAfter: result.RetryAfter,
	})
}
