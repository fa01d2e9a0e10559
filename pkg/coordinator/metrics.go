package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts transaction decisions. Commits are labeled by commit mode
// so async and durable traffic can be told apart.
type Metrics struct {
	Begun     prometheus.Counter
	Committed *prometheus.CounterVec
	Aborted   prometheus.Counter
	Conflicts prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Begun: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "txmesh",
			Name:      "transactions_begun_total",
			Help:      "Writeset commits received by the coordinator.",
		}),
		Committed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "txmesh",
			Name:      "transactions_committed_total",
			Help:      "Transactions committed, by commit mode.",
		}, []string{"mode"}),
		Aborted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "txmesh",
			Name:      "transactions_aborted_total",
			Help:      "Transactions aborted by the coordinator.",
		}),
		Conflicts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "txmesh",
			Name:      "transaction_conflicts_total",
			Help:      "Prepare rounds refused because of key contention.",
		}),
	}
}
