package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Started        prometheus.Counter
	Terminations   *prometheus.CounterVec
	Warnings       prometheus.Counter
	RefreshSignals prometheus.Counter
	RecordsSwept   prometheus.Counter
	RevokeFailures prometheus.Counter
	ActiveSessions prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Started: f.NewCounter(prometheus.CounterOpts{
			Name: "pollster_session_started_total",
			Help: "Sessions started after hosted sign-in",
		}),
		Terminations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pollster_session_terminations_total",
			Help: "Session terminations by reason",
		}, []string{"reason"}),
		Warnings: f.NewCounter(prometheus.CounterOpts{
			Name: "pollster_session_warnings_total",
			Help: "Inactivity warnings issued",
		}),
		RefreshSignals: f.NewCounter(prometheus.CounterOpts{
			Name: "pollster_session_refresh_signals_total",
			Help: "Responses that asked the client to refresh its credential",
		}),
		RecordsSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "pollster_session_records_swept_total",
			Help: "Idle session records deleted by sweeps",
		}),
		RevokeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "pollster_session_revoke_failures_total",
			Help: "Credential revocations at the hosted auth service that failed",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "pollster_session_active",
			Help: "Session records held after the last sweep",
		}),
	}
}

func (m *Metrics) IncrementStarted() {
	m.Started.Inc()
}

func (m *Metrics) IncrementTermination(reason string) {
	m.Terminations.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementWarnings() {
	m.Warnings.Inc()
}

func (m *Metrics) IncrementRefreshSignals() {
	m.RefreshSignals.Inc()
}

func (m *Metrics) AddRecordsSwept(n int) {
	m.RecordsSwept.Add(float64(n))
}

func (m *Metrics) IncrementRevokeFailures() {
	m.RevokeFailures.Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}
