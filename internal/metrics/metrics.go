// Package metrics exposes the engine's Prometheus instrumentation on
// a private registry so tests can assert on collector state without
// global registration conflicts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the engine's collectors.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	QueriesTotal     *prometheus.CounterVec
	QueryDuration    *prometheus.HistogramVec
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	StreamEvents     *prometheus.CounterVec
	LLMCallsTotal    *prometheus.CounterVec
	LLMCallDuration  prometheus.Histogram
}

// New builds and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insights",
			Name:      "requests_total",
			Help:      "Chat requests by routing kind and outcome.",
		}, []string{"kind", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "insights",
			Name:      "request_duration_seconds",
			Help:      "End-to-end request duration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insights",
			Name:      "catalog_queries_total",
			Help:      "Catalog query executions by id and outcome.",
		}, []string{"query_id", "outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "insights",
			Name:      "catalog_query_duration_seconds",
			Help:      "Catalog query execution duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query_id"}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insights",
			Name:      "cache_hits_total",
			Help:      "Result cache hits.",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insights",
			Name:      "cache_misses_total",
			Help:      "Result cache misses.",
		}),
		StreamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insights",
			Name:      "stream_events_total",
			Help:      "Streamed protocol events by type.",
		}, []string{"type"}),
		LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insights",
			Name:      "llm_calls_total",
			Help:      "LLM requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		LLMCallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "insights",
			Name:      "llm_call_duration_seconds",
			Help:      "LLM request duration.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.QueriesTotal,
		m.QueryDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.StreamEvents,
		m.LLMCallsTotal,
		m.LLMCallDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed request.
func (m *Metrics) ObserveRequest(kind, outcome string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(kind, outcome).Inc()
	m.RequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveQuery records one catalog query execution.
func (m *Metrics) ObserveQuery(queryID, outcome string, duration time.Duration) {
	m.QueriesTotal.WithLabelValues(queryID, outcome).Inc()
	m.QueryDuration.WithLabelValues(queryID).Observe(duration.Seconds())
}
