// Package metrics exposes SysInfo's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HerbHall/sysinfo/internal/stream"
)

const namespace = "sysinfo"

// Metrics owns a private Prometheus registry and every SysInfo collector.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	rpcRequests  *prometheus.CounterVec
	rpcDuration  *prometheus.HistogramVec

	sessionsActive  *prometheus.GaugeVec
	sessionsEnded   *prometheus.CounterVec
	snapshotsSent   *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
}

// Compile-time guard.
var _ stream.Observer = (*Metrics)(nil)

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "gRPC calls by full method and status code.",
		}, []string{"method", "code"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "request_duration_seconds",
			Help:      "gRPC call latency, including the full life of streams.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"method"}),
		sessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "sessions_active",
			Help:      "Streaming sessions currently running.",
		}, []string{"transport"}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "sessions_ended_total",
			Help:      "Streaming sessions that reached a terminal state.",
		}, []string{"transport", "state"}),
		snapshotsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "snapshots_sent_total",
			Help:      "Snapshots delivered to streaming subscribers.",
		}, []string{"transport"}),
		sessionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "session_duration_seconds",
			Help:      "Lifetime of streaming sessions.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"transport"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.rpcRequests, m.rpcDuration,
		m.sessionsActive, m.sessionsEnded, m.snapshotsSent, m.sessionDuration,
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// MustRegister adds extra collectors, such as a SnapshotCollector.
func (m *Metrics) MustRegister(cs ...prometheus.Collector) {
	m.registry.MustRegister(cs...)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one completed HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveRPC records one completed gRPC call.
func (m *Metrics) ObserveRPC(fullMethod, code string, elapsed time.Duration) {
	m.rpcRequests.WithLabelValues(fullMethod, code).Inc()
	m.rpcDuration.WithLabelValues(fullMethod).Observe(elapsed.Seconds())
}

// SessionStarted implements stream.Observer.
func (m *Metrics) SessionStarted(transport string) {
	m.sessionsActive.WithLabelValues(transport).Inc()
}

// SnapshotSent implements stream.Observer.
func (m *Metrics) SnapshotSent(transport string) {
	m.snapshotsSent.WithLabelValues(transport).Inc()
}

// SessionEnded implements stream.Observer.
func (m *Metrics) SessionEnded(transport string, state stream.State, elapsed time.Duration) {
	m.sessionsActive.WithLabelValues(transport).Dec()
	m.sessionsEnded.WithLabelValues(transport, state.String()).Inc()
	m.sessionDuration.WithLabelValues(transport).Observe(elapsed.Seconds())
}
