package anchor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricAnchorsCreated = "anchors_created_total"
	MetricUnlockAttempts = "anchor_unlock_attempts_total"
	MetricNearbyQueries  = "anchor_nearby_queries_total"
)

// Metrics contains Prometheus metrics for anchor domain operations.
// All operations are thread-safe.
type Metrics struct {
	anchorsCreated prometheus.Counter
	unlockAttempts *prometheus.CounterVec
	nearbyQueries  prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register them
// with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		anchorsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricAnchorsCreated,
				Help: "Total number of anchors created",
			},
		),
		unlockAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricUnlockAttempts,
				Help: "Total number of unlock attempts by outcome",
			},
			[]string{"outcome"},
		),
		nearbyQueries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricNearbyQueries,
				Help: "Total number of nearby discovery queries served",
			},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncAnchorsCreated increments the created-anchor counter.
func (m *Metrics) IncAnchorsCreated() {
	m.anchorsCreated.Inc()
}

// IncUnlockAttempts increments the unlock attempt counter for an outcome
// (success, not_found, not_active, not_yet_active, expired, cap_reached,
// error).
func (m *Metrics) IncUnlockAttempts(outcome string) {
	m.unlockAttempts.WithLabelValues(outcome).Inc()
}

// IncNearbyQueries increments the discovery query counter.
func (m *Metrics) IncNearbyQueries() {
	m.nearbyQueries.Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.anchorsCreated,
		m.unlockAttempts,
		m.nearbyQueries,
	}
}
