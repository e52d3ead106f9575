package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PollsCreated  prometheus.Counter
	PollsDeleted  prometheus.Counter
	VotesCast     prometheus.Counter
	VotesRejected *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PollsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "pollster_polls_created_total",
			Help: "Polls created",
		}),
		PollsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "pollster_polls_deleted_total",
			Help: "Polls deleted by their owner",
		}),
		VotesCast: f.NewCounter(prometheus.CounterOpts{
			Name: "pollster_votes_cast_total",
			Help: "Votes recorded",
		}),
		VotesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pollster_votes_rejected_total",
			Help: "Votes rejected, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) IncrementPollsCreated() {
	m.PollsCreated.Inc()
}

func (m *Metrics) IncrementPollsDeleted() {
	m.PollsDeleted.Inc()
}

func (m *Metrics) IncrementVotesCast() {
	m.VotesCast.Inc()
}

func (m *Metrics) IncrementVotesRejected(reason string) {
	m.VotesRejected.WithLabelValues(reason).Inc()
}
