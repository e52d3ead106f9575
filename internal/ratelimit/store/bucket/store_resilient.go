package bucket

import (
	"context"
	"log/slog"
	"time"

	"pollster/internal/ratelimit/models"
	"pollster/pkg/platform/circuit"
)

// Store is the contract shared by every bucket store.
type Store interface {
	Consume(ctx context.Context, key string, limit models.Limit, now time.Time) (models.Bucket, bool, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// ResilientBucketStore fronts a shared store with a process-local fallback.
// Errors from the primary are returned while the circuit is closed, so the
// middleware fails open; once the circuit opens, the fallback enforces
// per-instance quotas until the primary recovers.
type ResilientBucketStore struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewResilientBucketStore(primary, fallback Store, breaker *circuit.Breaker, logger *slog.Logger) *ResilientBucketStore {
	return &ResilientBucketStore{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   logger,
	}
}

func (s *ResilientBucketStore) Consume(ctx context.Context, key string, limit models.Limit, now time.Time) (models.Bucket, bool, error) {
	if !s.breaker.AllowPrimary() {
		return s.fallback.Consume(ctx, key, limit, now)
	}

	b, allowed, err := s.primary.Consume(ctx, key, limit, now)
	if err != nil {
		useFallback, change := s.breaker.RecordFailure()
		if change.Opened {
			s.logger.ErrorContext(ctx, "circuit breaker opened",
				"circuit", s.breaker.Name(),
				"error", err,
			)
		}
		if useFallback {
			return s.fallback.Consume(ctx, key, limit, now)
		}
		return models.Bucket{}, false, err
	}

	if usePrimary, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "circuit breaker closed", "circuit", s.breaker.Name())
	} else if !usePrimary {
		// Recovering: keep the fallback's view in step until the circuit closes.
		return s.fallback.Consume(ctx, key, limit, now)
	}
	return b, allowed, nil
}

// Sweep sweeps both stores; the fallback holds state only while degraded.
func (s *ResilientBucketStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	n, err := s.fallback.Sweep(ctx, now)
	if err != nil {
		return n, err
	}
	m, err := s.primary.Sweep(ctx, now)
	return n + m, err
}
