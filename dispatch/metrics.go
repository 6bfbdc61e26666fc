package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts dispatch verdicts and per receiver outcomes. The collectors
// are not registered; the owner decides where they are exposed.
type Metrics struct {
	dispatches *prometheus.CounterVec
	receivers  *prometheus.CounterVec
}

// NewMetrics creates the counters under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Inbound messages dispatched, by result.",
		}, []string{"result"}),
		receivers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receiver_outcomes_total",
			Help:      "Receiver outcomes, by receiver and outcome.",
		}, []string{"receiver", "outcome"}),
	}
}

// Collectors returns every collector for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.dispatches, m.receivers}
}

func (m *Metrics) dispatched(result string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(result).Inc()
}

func (m *Metrics) observed(receiver, outcome string) {
	if m == nil {
		return
	}
	m.receivers.WithLabelValues(receiver, outcome).Inc()
}
