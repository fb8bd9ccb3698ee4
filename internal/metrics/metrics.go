// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the application counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessions *prometheus.CounterVec
	resolves *prometheus.CounterVec
	pipeline *prometheus.CounterVec
}

// New registers the application collectors on a fresh registry together with
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "krafti",
			Subsystem: "sessions",
			Name:      "events_total",
			Help:      "Session lifecycle events by kind (issued, reused, evicted, expired, revoked).",
		}, []string{"event"}),
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "krafti",
			Subsystem: "sessions",
			Name:      "resolves_total",
			Help:      "Credential resolutions by outcome.",
		}, []string{"outcome"}),
		pipeline: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "krafti",
			Subsystem: "pipeline",
			Name:      "operations_total",
			Help:      "Record operations by entity, operation and result.",
		}, []string{"entity", "op", "result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessions,
		m.resolves,
		m.pipeline,
	)
	return m
}

// Session counts a session lifecycle event.
func (m *Metrics) Session(event string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessions.WithLabelValues(event).Add(float64(n))
}

// Resolve counts a credential resolution outcome.
func (m *Metrics) Resolve(outcome string) {
	if m == nil {
		return
	}
	m.resolves.WithLabelValues(outcome).Inc()
}

// Operation counts a pipeline operation result.
func (m *Metrics) Operation(entity, op, result string) {
	if m == nil {
		return
	}
	m.pipeline.WithLabelValues(entity, op, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
