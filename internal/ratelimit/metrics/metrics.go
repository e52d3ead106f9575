package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions    *prometheus.CounterVec
	CheckErrors  *prometheus.CounterVec
	BucketsSwept prometheus.Counter
	InlineSweeps prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pollster_ratelimit_decisions_total",
			Help: "Rate limit decisions by class and outcome",
		}, []string{"class", "outcome"}),
		CheckErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pollster_ratelimit_check_errors_total",
			Help: "Limiter errors that caused a request to be let through",
		}, []string{"class"}),
		BucketsSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "pollster_ratelimit_buckets_swept_total",
			Help: "Expired buckets deleted by sweeps",
		}),
		InlineSweeps: f.NewCounter(prometheus.CounterOpts{
			Name: "pollster_ratelimit_inline_sweeps_total",
			Help: "Opportunistic sweeps triggered by a check",
		}),
	}
}

func (m *Metrics) ObserveDecision(class string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	m.Decisions.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) IncrementCheckErrors(class string) {
	m.CheckErrors.WithLabelValues(class).Inc()
}

func (m *Metrics) AddBucketsSwept(n int) {
	m.BucketsSwept.Add(float64(n))
}

func (m *Metrics) IncrementInlineSweeps() {
	m.InlineSweeps.Inc()
}
