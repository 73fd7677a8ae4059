// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline and the healing loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soundprediction/sentinel/pkg/types"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	EdgesCreated     prometheus.Counter
	EdgesVerified    prometheus.Counter
	EdgesInvalidated prometheus.Counter
	NodesCreated     prometheus.Counter

	// ProcessedURLs counts ProcessURL outcomes by terminal status.
	ProcessedURLs *prometheus.CounterVec
	// HealCycles counts completed healing passes.
	HealCycles prometheus.Counter
	// StaleURLs is the stale source count found by the most recent pass.
	StaleURLs prometheus.Gauge
	// AgentRunning is 1 while the healing loop is active.
	AgentRunning prometheus.Gauge
	// ProcessDuration observes wall time per processed URL.
	ProcessDuration prometheus.Histogram
}

// NewMetrics creates and registers the service collectors.
// The registerer parameter allows flexible registration (e.g., global registry, test registry).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EdgesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_edges_created_total",
			Help: "Total edges created in the graph",
		}),
		EdgesVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_edges_verified_total",
			Help: "Total live edges re-verified in place",
		}),
		EdgesInvalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_edges_invalidated_total",
			Help: "Total live edges closed by newer assertions",
		}),
		NodesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_nodes_created_total",
			Help: "Total entities created in the graph",
		}),
		ProcessedURLs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_processed_urls_total",
			Help: "ProcessURL runs by terminal status",
		}, []string{"status"}),
		HealCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_heal_cycles_total",
			Help: "Completed healing passes",
		}),
		StaleURLs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_stale_urls",
			Help: "Stale source URLs found by the most recent healing pass",
		}),
		AgentRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_agent_running",
			Help: "Whether the healing loop is active",
		}),
		ProcessDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_process_duration_seconds",
			Help:    "Wall time per processed URL",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}

	reg.MustRegister(
		m.EdgesCreated,
		m.EdgesVerified,
		m.EdgesInvalidated,
		m.NodesCreated,
		m.ProcessedURLs,
		m.HealCycles,
		m.StaleURLs,
		m.AgentRunning,
		m.ProcessDuration,
	)

	return m
}

// RecordHealCycle marks a completed healing pass and the stale count it
// found. Safe on a nil receiver so instrumentation stays optional in tests.
func (m *Metrics) RecordHealCycle(staleCount int) {
	if m == nil {
		return
	}
	m.HealCycles.Inc()
	m.StaleURLs.Set(float64(staleCount))
}

// ObserveProcessDuration records wall time for one processed URL. Safe on a
// nil receiver.
func (m *Metrics) ObserveProcessDuration(seconds float64) {
	if m == nil {
		return
	}
	m.ProcessDuration.Observe(seconds)
}

// SetAgentRunning flips the healing loop gauge. Safe on a nil receiver.
func (m *Metrics) SetAgentRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.AgentRunning.Set(1)
	} else {
		m.AgentRunning.Set(0)
	}
}

// RecordResult applies one process outcome to the counters. Safe on a nil
// receiver so instrumentation stays optional in tests.
func (m *Metrics) RecordResult(result *types.ProcessResult) {
	if m == nil || result == nil {
		return
	}

	m.ProcessedURLs.WithLabelValues(string(result.Status)).Inc()

	if result.Stats != nil {
		m.NodesCreated.Add(float64(result.Stats.NodesCreated))
		m.EdgesCreated.Add(float64(result.Stats.EdgesCreated))
		m.EdgesVerified.Add(float64(result.Stats.EdgesVerified))
		m.EdgesInvalidated.Add(float64(result.Stats.EdgesInvalidated))
	}
	if result.Status == types.StatusUnchangedVerified {
		m.EdgesVerified.Add(float64(result.EdgesUpdated))
	}
}
