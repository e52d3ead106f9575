package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	csrfconfig "pollster/internal/csrf/config"
	csrfhandler "pollster/internal/csrf/handler"
	csrfmetrics "pollster/internal/csrf/metrics"
	csrfmw "pollster/internal/csrf/middleware"
	csrfservice "pollster/internal/csrf/service"
	"pollster/internal/csrf/store/token"
	"pollster/internal/identity"
	"pollster/internal/platform/config"
	"pollster/internal/platform/database"
	"pollster/internal/platform/health"
	"pollster/internal/platform/redis"
	pollhandler "pollster/internal/polls/handler"
	pollmetrics "pollster/internal/polls/metrics"
	pollservice "pollster/internal/polls/service"
	pollstore "pollster/internal/polls/store"
	rlconfig "pollster/internal/ratelimit/config"
	rlmetrics "pollster/internal/ratelimit/metrics"
	rlmw "pollster/internal/ratelimit/middleware"
	rlmodels "pollster/internal/ratelimit/models"
	rlservice "pollster/internal/ratelimit/service"
	"pollster/internal/ratelimit/store/bucket"
	sessionconfig "pollster/internal/session/config"
	sessionhandler "pollster/internal/session/handler"
	sessionmetrics "pollster/internal/session/metrics"
	sessionmw "pollster/internal/session/middleware"
	sessionservice "pollster/internal/session/service"
	"pollster/internal/session/store/activity"
	httptransport "pollster/internal/transport/http"
	"pollster/internal/workers/cleanup"
	"pollster/migrations"
	"pollster/pkg/platform/circuit"
	"pollster/pkg/platform/middleware/metadata"
	"pollster/pkg/platform/middleware/request"
	"pollster/pkg/platform/tracer"
)

// rateLimitClasses maps RATE_LIMIT_<CLASS> configuration keys to classes.
var rateLimitClasses = map[string]rlmodels.LimitClass{
	"generic":     rlmodels.ClassGeneric,
	"create_poll": rlmodels.ClassCreatePoll,
	"voting":      rlmodels.ClassVoting,
	"auth":        rlmodels.ClassAuth,
}

// infra holds the optional shared backends. Either may be nil, in which
// case the process-local stores are used.
type infra struct {
	redis *redis.Client
	db    *database.Pool
	log   *slog.Logger
}

func newInfra(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer) (*infra, error) {
	rc, err := redis.New(ctx, cfg.Redis, reg)
	if err != nil {
		return nil, err
	}
	db, err := database.New(ctx, database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		if rc != nil {
			rc.Close() //nolint:errcheck // best-effort cleanup on init failure
		}
		return nil, err
	}
	in := &infra{redis: rc, db: db, log: log}
	if db != nil {
		if err := db.RegisterMetrics(reg); err != nil {
			in.Close()
			return nil, fmt.Errorf("register database metrics: %w", err)
		}
		if err := migrations.Apply(ctx, db.DB()); err != nil {
			in.Close()
			return nil, err
		}
	}
	if rc == nil {
		log.Warn("REDIS_URL not set, guard state is local to this instance")
	}
	if db == nil {
		log.Warn("DATABASE_URL not set, polls are kept in memory")
	}
	return in, nil
}

func (in *infra) Close() {
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			in.log.Error("close redis", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			in.log.Error("close database", "error", err)
		}
	}
}

func newApp(cfg config.Config, log *slog.Logger, reg *prometheus.Registry, in *infra) (*application, error) {
	tr := tracer.NewOTel()
	workerMetrics := cleanup.NewMetrics(reg)

	rlMetrics := rlmetrics.New(reg)
	limiter, err := newRateLimiter(cfg, log, rlMetrics, in)
	if err != nil {
		return nil, err
	}

	csrfMetrics := csrfmetrics.New(reg)
	csrfCfg := csrfconfig.DefaultConfig()
	csrfCfg.TokenTTL = cfg.CSRF.TokenTTL
	csrfCfg.SecureCookie = cfg.IsProduction()
	var tokens csrfservice.TokenStore = token.NewInMemoryTokenStore()
	if in.redis != nil {
		tokens = token.NewRedisTokenStore(in.redis)
		if cfg.CSRF.Secret == "" {
			log.Warn("CSRF_SECRET not set, tokens issued by other instances will not validate")
		}
	}
	csrf, err := csrfservice.New(tokens,
		csrfservice.WithLogger(log),
		csrfservice.WithConfig(csrfCfg),
		csrfservice.WithMetrics(csrfMetrics),
		csrfservice.WithSecret(cfg.CSRF.Secret),
	)
	if err != nil {
		return nil, fmt.Errorf("csrf service: %w", err)
	}

	sessionCfg := &sessionconfig.Config{
		InactivityTimeout: cfg.Session.InactivityTimeout,
		WarningLead:       cfg.Session.WarningLead,
		MaxDuration:       cfg.Session.MaxDuration,
		RefreshLead:       cfg.Session.RefreshLead,
	}
	var activityStore sessionservice.ActivityStore = activity.NewInMemoryActivityStore()
	if in.redis != nil {
		activityStore = activity.NewRedisActivityStore(in.redis, 2*sessionCfg.InactivityTimeout)
	}
	hosted := identity.NewHostedClient(cfg.Auth.URL, cfg.Auth.APIKey, log,
		identity.WithBreaker(circuit.New("hosted_auth", circuit.WithStateHook(logStateChange(log)))),
	)
	sessions, err := sessionservice.New(activityStore,
		sessionservice.WithLogger(log),
		sessionservice.WithConfig(sessionCfg),
		sessionservice.WithMetrics(sessionmetrics.New(reg)),
		sessionservice.WithCredentialRevoker(hosted),
		sessionservice.WithTokenRevoker(csrf),
	)
	if err != nil {
		return nil, fmt.Errorf("session service: %w", err)
	}

	var polls pollservice.Store = pollstore.NewInMemory()
	if in.db != nil {
		polls = pollstore.NewPostgres(in.db.DB())
	}
	pollSvc, err := pollservice.New(polls,
		pollservice.WithLogger(log),
		pollservice.WithMetrics(pollmetrics.New(reg)),
	)
	if err != nil {
		return nil, fmt.Errorf("poll service: %w", err)
	}

	checks := health.New(cfg.Environment)
	if in.redis != nil {
		checks.RegisterCheck("redis", in.redis.Health)
	}
	if in.db != nil {
		checks.RegisterCheck("database", in.db.Health)
	}

	workers := make([]*cleanup.Worker, 0, 3)
	for _, spec := range []struct {
		name     string
		sweeper  cleanup.Sweeper
		interval time.Duration
	}{
		{"csrf_tokens", csrf, time.Hour},
		{"session_activity", sessions, 5 * time.Minute},
		{"rate_buckets", limiter, 15 * time.Minute},
	} {
		w, err := cleanup.New(spec.name, spec.sweeper,
			cleanup.WithInterval(spec.interval),
			cleanup.WithLogger(log),
			cleanup.WithMetrics(workerMetrics),
		)
		if err != nil {
			return nil, fmt.Errorf("cleanup worker %s: %w", spec.name, err)
		}
		workers = append(workers, w)
	}

	return &application{
		deps: httptransport.Deps{
			Logger:       log,
			Gatherer:     reg,
			Metrics:      request.NewMetrics(reg),
			Metadata:     metadata.NewMiddleware(metadata.Config{TrustedProxies: cfg.TrustedProxies}),
			Authenticate: identity.Authenticate(identity.NewTokenValidator(cfg.Auth.JWTSecret), log),
			RateLimit: rlmw.New(limiter, log,
				rlmw.WithMetrics(rlMetrics),
				rlmw.WithTracer(tr),
			),
			CSRF: csrfmw.New(csrf, csrfCfg, log,
				csrfmw.WithMetrics(csrfMetrics),
				csrfmw.WithTracer(tr),
			),
			Session:        sessionmw.New(sessions, log, sessionmw.WithTracer(tr)),
			Health:         checks,
			Tokens:         csrfhandler.New(csrf, log, csrfCfg.SecureCookie),
			Sessions:       sessionhandler.New(sessions, log, csrfCfg.SecureCookie),
			Polls:          pollhandler.New(pollSvc, log),
			AllowedOrigins: cfg.CORSAllowedOrigins,
		},
		workers: workers,
	}, nil
}

func newRateLimiter(cfg config.Config, log *slog.Logger, m *rlmetrics.Metrics, in *infra) (*rlservice.Service, error) {
	limits := rlconfig.DefaultConfig()
	for key, l := range cfg.RateLimits {
		class, ok := rateLimitClasses[key]
		if !ok {
			return nil, fmt.Errorf("unknown rate limit class %q", key)
		}
		limits.Override(class, rlmodels.Limit{MaxRequests: l.Max, Window: l.Window})
	}

	var buckets rlservice.BucketStore = bucket.NewInMemoryBucketStore()
	if in.redis != nil {
		buckets = bucket.NewResilientBucketStore(
			bucket.NewRedisBucketStore(in.redis),
			bucket.NewInMemoryBucketStore(),
			circuit.New("ratelimit_redis", circuit.WithStateHook(logStateChange(log))),
			log,
		)
	}

	limiter, err := rlservice.New(buckets,
		rlservice.WithLogger(log),
		rlservice.WithConfig(limits),
		rlservice.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("rate limit service: %w", err)
	}
	return limiter, nil
}

func logStateChange(log *slog.Logger) func(name string, state circuit.State) {
	return func(name string, state circuit.State) {
		log.Warn("circuit breaker state changed", "circuit", name, "state", state.String())
	}
}
