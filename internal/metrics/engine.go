// Package metrics provides Prometheus metrics for the delivery engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics groups the counters of serve, batch and membership operations.
// A nil *EngineMetrics is valid and records nothing.
type EngineMetrics struct {
	serveOutcomesTotal     *prometheus.CounterVec
	deliveryFailuresTotal  *prometheus.CounterVec
	purgedRecordsTotal     *prometheus.CounterVec
	poolResetsTotal        prometheus.Counter
	quickAdvancesTotal     *prometheus.CounterVec
	batchOperationsTotal   *prometheus.CounterVec
	membershipLookupsTotal *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewEngineMetrics creates the metrics and registers them on registry.
func NewEngineMetrics(registry prometheus.Registerer) (*EngineMetrics, error) {
	m := &EngineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *EngineMetrics) initMetrics() {
	m.serveOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediapool_serve_outcomes_total",
			Help: "Total number of serve calls by outcome",
		},
		[]string{"status"}, // delivered, no_content, exhausted, failed
	)
	m.deliveryFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediapool_delivery_failures_total",
			Help: "Total number of failed delivery attempts by failure class",
		},
		[]string{"class"},
	)
	m.purgedRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediapool_purged_records_total",
			Help: "Total number of media records removed after a failed delivery",
		},
		[]string{"reason"}, // item_dead, scope_dead
	)
	m.poolResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mediapool_pool_resets_total",
			Help: "Total number of anti-repeat resets after a pool was exhausted",
		},
	)
	m.quickAdvancesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediapool_quick_advances_total",
			Help: "Total number of advance requests inside the quick-advance window",
		},
		[]string{"strict"},
	)
	m.batchOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediapool_batch_operations_total",
			Help: "Total number of executed batch sessions",
		},
		[]string{"mode", "status"},
	)
	m.membershipLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediapool_membership_lookups_total",
			Help: "Total number of membership lookups by cache result",
		},
		[]string{"result"}, // hit, miss, error
	)

	m.collectors = []prometheus.Collector{
		m.serveOutcomesTotal,
		m.deliveryFailuresTotal,
		m.purgedRecordsTotal,
		m.poolResetsTotal,
		m.quickAdvancesTotal,
		m.batchOperationsTotal,
		m.membershipLookupsTotal,
	}
}

// Describe implements prometheus.Collector.
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

func (m *EngineMetrics) RecordServeOutcome(status string) {
	if m == nil {
		return
	}
	m.serveOutcomesTotal.WithLabelValues(status).Inc()
}

func (m *EngineMetrics) RecordDeliveryFailure(class string) {
	if m == nil {
		return
	}
	m.deliveryFailuresTotal.WithLabelValues(class).Inc()
}

func (m *EngineMetrics) RecordPurge(reason string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.purgedRecordsTotal.WithLabelValues(reason).Add(float64(count))
}

func (m *EngineMetrics) RecordPoolReset() {
	if m == nil {
		return
	}
	m.poolResetsTotal.Inc()
}

func (m *EngineMetrics) RecordQuickAdvance(strict bool) {
	if m == nil {
		return
	}
	label := "false"
	if strict {
		label = "true"
	}
	m.quickAdvancesTotal.WithLabelValues(label).Inc()
}

func (m *EngineMetrics) RecordBatch(mode, status string) {
	if m == nil {
		return
	}
	m.batchOperationsTotal.WithLabelValues(mode, status).Inc()
}

func (m *EngineMetrics) RecordMembershipLookup(result string) {
	if m == nil {
		return
	}
	m.membershipLookupsTotal.WithLabelValues(result).Inc()
}
