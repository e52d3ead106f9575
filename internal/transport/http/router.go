package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	csrfconfig "pollster/internal/csrf/config"
	csrfhandler "pollster/internal/csrf/handler"
	csrfmw "pollster/internal/csrf/middleware"
	"pollster/internal/identity"
	"pollster/internal/platform/health"
	pollhandler "pollster/internal/polls/handler"
	rlmw "pollster/internal/ratelimit/middleware"
	rlmodels "pollster/internal/ratelimit/models"
	sessionhandler "pollster/internal/session/handler"
	sessionmw "pollster/internal/session/middleware"
	"pollster/pkg/platform/middleware/metadata"
	"pollster/pkg/platform/middleware/request"
)

// RequestTimeout bounds every /api request.
const RequestTimeout = 30 * time.Second

// Deps are the components the router mounts.
type Deps struct {
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
	Metrics  *request.Metrics

	Metadata     *metadata.Middleware
	Authenticate func(http.Handler) http.Handler
	RateLimit    *rlmw.Middleware
	CSRF         *csrfmw.Guard
	Session      *sessionmw.Guard

	Health   *health.Handler
	Tokens   *csrfhandler.Handler
	Sessions *sessionhandler.Handler
	Polls    *pollhandler.Handler

	AllowedOrigins []string
}

// NewRouter wires the middleware chain and every public endpoint.
//
// Guard order on a mutation: rate limit, authentication, session, CSRF.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(request.RequestTime)
	r.Use(d.Metadata.Handler)
	r.Use(request.Logger(d.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", csrfconfig.HeaderName, "X-Request-ID"},
		ExposedHeaders:   ExposedHeaders,
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(request.Latency(d.Metrics, routePattern))

	d.Health.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	requireSession := func(next http.Handler) http.Handler {
		return identity.RequireAuth(d.Session.Validate(d.CSRF.Protect(next)))
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(request.Timeout(RequestTimeout))
		api.Use(request.ContentTypeJSON)
		api.Use(d.Authenticate)

		api.Group(func(auth chi.Router) {
			auth.Use(d.RateLimit.RateLimit(rlmodels.ClassAuth))
			auth.Use(identity.RequireAuth)
			auth.Use(d.CSRF.Protect)
			d.Tokens.Register(auth)
			d.Sessions.Register(auth)
			d.Sessions.RegisterGuarded(auth.With(d.Session.Validate))
		})

		api.Route("/polls", func(polls chi.Router) {
			d.Polls.Register(polls, pollhandler.Middleware{
				Read:   d.RateLimit.RateLimit(rlmodels.ClassGeneric),
				Create: d.RateLimit.RateLimit(rlmodels.ClassCreatePoll),
				Vote:   d.RateLimit.RateLimit(rlmodels.ClassVoting),
				Delete: d.RateLimit.RateLimit(rlmodels.ClassGeneric),
				Mutate: requireSession,
			})
		})
	})

	return otelhttp.NewHandler(r, "pollster")
}

// ExposedHeaders are readable by browser scripts on cross-origin responses.
var ExposedHeaders = []string{
	"X-Request-ID",
	csrfconfig.HeaderName,
	rlmw.HeaderLimit,
	rlmw.HeaderRemaining,
	rlmw.HeaderReset,
	"Retry-After",
	sessionmw.HeaderSessionValid,
	sessionmw.HeaderShouldRefresh,
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return r.Method + " " + pattern
		}
	}
	return "unmatched"
}
