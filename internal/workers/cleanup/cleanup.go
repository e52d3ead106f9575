package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sweeper deletes expired records and reports how many it removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Metrics are shared by every cleanup worker and labelled by worker name.
type Metrics struct {
	Runs     *prometheus.CounterVec
	Removed  *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pollster_cleanup_runs_total",
			Help: "Cleanup runs by worker and outcome",
		}, []string{"worker", "outcome"}),
		Removed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pollster_cleanup_removed_total",
			Help: "Records removed by cleanup runs",
		}, []string{"worker"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pollster_cleanup_duration_seconds",
			Help:    "Duration of cleanup runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"worker"}),
	}
}

// Worker runs a Sweeper on a fixed interval.
type Worker struct {
	name     string
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger
	metrics  *Metrics
}

// Option configures Worker.
type Option func(*Worker)

// WithInterval overrides the interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// New constructs a Worker. The default interval is five minutes.
func New(name string, sweeper Sweeper, opts ...Option) (*Worker, error) {
	if name == "" || sweeper == nil {
		return nil, fmt.Errorf("name and sweeper are required")
	}
	w := &Worker{
		name:     name,
		sweeper:  sweeper,
		interval: 5 * time.Minute,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Name identifies the worker in logs and metrics.
func (w *Worker) Name() string {
	return w.name
}

// Start runs cleanup periodically until ctx is cancelled. A failed run is
// logged and retried on the next tick.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "cleanup failed", "worker", w.name, "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	removed, err := w.sweeper.Sweep(ctx)
	if w.metrics != nil {
		w.metrics.Duration.WithLabelValues(w.name).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if w.metrics != nil {
			w.metrics.Runs.WithLabelValues(w.name, "error").Inc()
		}
		return 0, fmt.Errorf("%s sweep: %w", w.name, err)
	}
	if w.metrics != nil {
		w.metrics.Runs.WithLabelValues(w.name, "ok").Inc()
		w.metrics.Removed.WithLabelValues(w.name).Add(float64(removed))
	}
	if removed > 0 {
		w.logger.DebugContext(ctx, "cleanup removed expired records", "worker", w.name, "removed", removed)
	}
	return removed, nil
}
