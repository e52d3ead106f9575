package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TokensIssued       prometheus.Counter
	ValidationFailures *prometheus.CounterVec
	RecordsSwept       prometheus.Counter
	TokensRevoked      prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TokensIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "pollster_csrf_tokens_issued_total",
			Help: "CSRF tokens issued",
		}),
		ValidationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pollster_csrf_validation_failures_total",
			Help: "Rejected state-changing requests by reason",
		}, []string{"reason"}),
		RecordsSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "pollster_csrf_records_swept_total",
			Help: "Expired token records deleted by sweeps",
		}),
		TokensRevoked: f.NewCounter(prometheus.CounterOpts{
			Name: "pollster_csrf_tokens_revoked_total",
			Help: "Token records deleted on sign-out",
		}),
	}
}

func (m *Metrics) IncrementIssued() {
	m.TokensIssued.Inc()
}

func (m *Metrics) IncrementValidationFailure(reason string) {
	m.ValidationFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) AddRecordsSwept(n int) {
	m.RecordsSwept.Add(float64(n))
}

func (m *Metrics) AddRevoked(n int) {
	m.TokensRevoked.Add(float64(n))
}
