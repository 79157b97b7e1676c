// Package observability wires metrics, logging and tracing for the service.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stages observed per turn.
const (
	StageGeneration = "generation"
	StageRender     = "render"
	StageTurnTotal  = "turn_total"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ActiveCalls    prometheus.Gauge
	CallEvents     *prometheus.CounterVec
	TurnOutcomes   *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec
	StageLatency   *prometheus.HistogramVec

	window *stageWindow
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveCalls: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of live calls held in the registry.",
		}),
		CallEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Call events by type.",
		}, []string{"event"}),
		TurnOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_outcomes_total",
			Help:      "Pipeline stage outcomes by stage and status.",
		}, []string{"stage", "status"}),
		ProviderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and class.",
		}, []string{"provider", "class"}),
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_ms",
			Help:      "Pipeline stage latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 750, 1000, 1500, 2000, 3000, 4000, 6000},
		}, []string{"stage"}),
		window: newStageWindow(256, map[string]float64{
			StageGeneration: 2500,
			StageRender:     1500,
			StageTurnTotal:  4000,
		}),
	}
}

func (m *Metrics) CallEvent(event string) {
	if m == nil {
		return
	}
	m.CallEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) CallStarted() {
	if m == nil {
		return
	}
	m.ActiveCalls.Inc()
	m.CallEvents.WithLabelValues("started").Inc()
}

func (m *Metrics) CallEnded(reason string) {
	if m == nil {
		return
	}
	m.ActiveCalls.Dec()
	m.CallEvents.WithLabelValues("ended_" + reason).Inc()
}

// ObserveStage records latency and outcome of one pipeline stage.
func (m *Metrics) ObserveStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Milliseconds())
	m.StageLatency.WithLabelValues(stage).Observe(ms)
	m.TurnOutcomes.WithLabelValues(stage, status).Inc()
	m.window.observe(stage, ms)
	if status != "ok" {
		m.window.observeIndicator(stage + "_" + status)
	}
}

// ObserveIndicator counts a notable event in the rolling window.
func (m *Metrics) ObserveIndicator(name string) {
	if m == nil {
		return
	}
	m.window.observeIndicator(name)
}

func (m *Metrics) ProviderError(provider, class string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(provider, class).Inc()
}

// SnapshotStages returns rolling latency quantiles per stage.
func (m *Metrics) SnapshotStages() StageSnapshot {
	if m == nil {
		return StageSnapshot{GeneratedAt: time.Now().UTC(), Stages: []StageStats{}}
	}
	return m.window.snapshot()
}

func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
