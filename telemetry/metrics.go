package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/toolragflow/cache"
)

// Tool call outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds all Prometheus metrics of the server.
type Metrics struct {
	// Backend metrics
	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec

	// Cache metrics
	CacheEvents *prometheus.CounterVec

	// Tool metrics
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics on registry
// (prometheus.DefaultRegisterer when nil).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		BackendRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolragflow_backend_requests_total",
				Help: "Total number of requests sent to the RAGFlow backend",
			},
			[]string{"method", "route", "status"},
		),

		BackendLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolragflow_backend_request_duration_seconds",
				Help:    "RAGFlow backend request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "route"},
		),

		CacheEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolragflow_cache_events_total",
				Help: "Metadata cache hits, misses, expiries and evictions",
			},
			[]string{"cache", "event"},
		),

		ToolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolragflow_tool_calls_total",
				Help: "Total number of tool calls by outcome",
			},
			[]string{"tool", "outcome"},
		),

		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolragflow_tool_duration_seconds",
				Help:    "Tool call duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"tool"},
		),
	}
}

// Handler exposes the metrics gathered by gatherer
// (prometheus.DefaultGatherer when nil).
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordBackendRequest records one backend request. Status 0 means no HTTP
// response was received. Its signature matches ragflow.RequestObserver.
func (m *Metrics) RecordBackendRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.BackendRequests.WithLabelValues(method, route, label).Inc()
	m.BackendLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// CacheObserver returns a cache.Observer counting events for the named cache.
func (m *Metrics) CacheObserver(name string) cache.Observer {
	if m == nil {
		return nil
	}
	return func(e cache.Event) {
		m.CacheEvents.WithLabelValues(name, string(e)).Inc()
	}
}

// RecordToolCall records one tool call.
func (m *Metrics) RecordToolCall(tool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}
