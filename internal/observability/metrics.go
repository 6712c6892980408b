// Package observability carries the Prometheus instruments and the in-memory
// stage-latency window exposed on the operator endpoints.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	Questions            *prometheus.CounterVec
	CacheLookups         *prometheus.CounterVec
	ValidationRejections *prometheus.CounterVec
	AgentFailures        *prometheus.CounterVec
	ResolveDuration      *prometheus.HistogramVec
	CacheEntries         prometheus.Gauge
	WSConnections        prometheus.Gauge

	stages *stageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Questions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions resolved, by resolution source and outcome.",
		}, []string{"source", "outcome"}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Answer cache lookups by result.",
		}, []string{"result"}),
		ValidationRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "Answers rejected by the validator, by reason.",
		}, []string{"reason"}),
		AgentFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_failures_total",
			Help:      "Agent collaborator failures by kind.",
		}, []string{"kind"}),
		ResolveDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Question resolution latency by source.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 15, 60},
		}, []string{"source"}),
		CacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries currently held by the answer cache.",
		}),
		WSConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open websocket ask connections.",
		}),
		stages: newStageWindow(256),
	}
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// ObserveResolution records one finished resolution. All observers are safe
// on a nil receiver so components can run without metrics in tests.
func (m *Metrics) ObserveResolution(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Questions.WithLabelValues(source, outcome).Inc()
	m.ResolveDuration.WithLabelValues(source).Observe(d.Seconds())
	m.stages.ObserveSource(source)
}

// ObserveStage records one pipeline stage latency into the snapshot window.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.Observe(stage, float64(d.Microseconds())/1000)
}

func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveValidationRejection(reason string) {
	if m == nil {
		return
	}
	m.ValidationRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveAgentFailure(kind string) {
	if m == nil {
		return
	}
	m.AgentFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) AddWSConnection(delta int) {
	if m == nil {
		return
	}
	m.WSConnections.Add(float64(delta))
}

func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

// SnapshotStages returns the current stage-latency window for the operator
// endpoints.
func (m *Metrics) SnapshotStages() StageSnapshot {
	if m == nil {
		return StageSnapshot{}
	}
	return m.stages.Snapshot()
}
