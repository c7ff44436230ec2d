package app

import (
	"fmt"

	"github.com/louisbranch/realmtree/internal/services/realms/domain"
	"github.com/louisbranch/realmtree/internal/services/realms/storage"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "realmtree"

// Metrics counts mutations, reindex enqueues and propagation sizes. It also
// serves as the store observer so counts only reflect committed work.
type Metrics struct {
	mutations   *prometheus.CounterVec
	enqueued    *prometheus.CounterVec
	propagation prometheus.Histogram
}

// NewMetrics builds the collectors and registers them on reg when non-nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "mutations_total",
			Help:      "Realm tree mutations by operation and outcome code.",
		}, []string{"op", "outcome"}),
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reindex_enqueued_total",
			Help:      "Work items newly added to the search index queue.",
		}, []string{"kind"}),
		propagation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "path_propagation_nodes",
			Help:      "Realms visited per path propagation.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, collector := range []prometheus.Collector{m.mutations, m.enqueued, m.propagation} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register realm metrics: %w", err)
		}
	}
	return m, nil
}

// ObservePropagation implements storage.Observer.
func (m *Metrics) ObservePropagation(nodes int) {
	if m == nil {
		return
	}
	m.propagation.Observe(float64(nodes))
}

// ObserveEnqueued implements storage.Observer.
func (m *Metrics) ObserveEnqueued(kind domain.ItemKind, count int) {
	if m == nil {
		return
	}
	m.enqueued.WithLabelValues(string(kind)).Add(float64(count))
}

func (m *Metrics) observeMutation(op string, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
}

var _ storage.Observer = (*Metrics)(nil)
