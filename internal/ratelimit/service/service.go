package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"pollster/internal/ratelimit/config"
	"pollster/internal/ratelimit/metrics"
	"pollster/internal/ratelimit/models"
	"pollster/pkg/requestcontext"
)

// BucketStore persists fixed-window counters.
type BucketStore interface {
	// Consume atomically applies one request to the bucket at key and returns
	// the resulting state and whether the request is allowed.
	Consume(ctx context.Context, key string, limit models.Limit, now time.Time) (models.Bucket, bool, error)
	// Sweep deletes buckets whose window ended before now.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Service enforces per-class fixed-window quotas.
type Service struct {
	buckets BucketStore
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	random  func() float64
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRandom replaces the source used to decide opportunistic sweeps.
func WithRandom(fn func() float64) Option {
	return func(s *Service) {
		if fn != nil {
			s.random = fn
		}
	}
}

func New(buckets BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, fmt.Errorf("buckets store is required")
	}
	svc := &Service{
		buckets: buckets,
		config:  config.DefaultConfig(),
		logger:  slog.Default(),
		random:  rand.Float64,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check counts one request from client against class. The first request of
// a window, or the first after the window elapsed, opens a new window with
// count 1. Once count reaches the class maximum, requests are rejected until
// the window ends.
//
// With the configured probability, a check also sweeps expired buckets.
func (s *Service) Check(ctx context.Context, class models.LimitClass, client models.ClientIdentity) (*models.Result, error) {
	now := requestcontext.Now(ctx)
	limit := s.config.LimitFor(class)
	key := models.NewBucketKey(class, client.Kind, client.Value)

	bucket, allowed, err := s.buckets.Consume(ctx, key.String(), limit, now)
	if err != nil {
		return nil, fmt.Errorf("check rate limit: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ObserveDecision(class.String(), allowed)
	}
	if s.random() < s.config.SweepProbability {
		s.sweepInline(ctx, now)
	}

	return models.NewResult(bucket, allowed, limit, now), nil
}

// Sweep deletes expired buckets. It satisfies the cleanup worker's Sweeper.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	removed, err := s.buckets.Sweep(ctx, requestcontext.Now(ctx))
	if err != nil {
		return 0, fmt.Errorf("sweep rate limit buckets: %w", err)
	}
	if s.metrics != nil {
		s.metrics.AddBucketsSwept(removed)
	}
	return removed, nil
}

func (s *Service) sweepInline(ctx context.Context, now time.Time) {
	if s.metrics != nil {
		s.metrics.IncrementInlineSweeps()
	}
	removed, err := s.buckets.Sweep(ctx, now)
	if err != nil {
		s.logger.WarnContext(ctx, "ratelimit_inline_sweep_failed", "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.AddBucketsSwept(removed)
	}
}
