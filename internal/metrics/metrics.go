// Package metrics holds the Prometheus collectors shared by the web server
// and the audit worker. Every method is safe to call on a nil *Metrics so
// callers can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "expensia"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	backendDuration     *prometheus.HistogramVec
	sessionTeardowns    prometheus.Counter
	sessionEvents       *prometheus.CounterVec
	rateLimitRejections *prometheus.CounterVec
	auditEvents         *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests served.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of calls to the Expensia REST backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "status"}),
		sessionTeardowns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_teardowns_total",
			Help:      "Sessions torn down after the backend answered 401.",
		}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events, by type.",
		}, []string{"type"}),
		rateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter, by path.",
		}, []string{"path"}),
		auditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_recorded_total",
			Help:      "Audit events persisted by the audit worker, by type and outcome.",
		}, []string{"type", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.backendDuration,
		m.sessionTeardowns,
		m.sessionEvents,
		m.rateLimitRejections,
		m.auditEvents,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveBackendCall records one backend call. status is 0 when the call
// failed before a response arrived.
func (m *Metrics) ObserveBackendCall(endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := strconv.Itoa(status)
	if status == 0 {
		label = "error"
	}
	m.backendDuration.WithLabelValues(endpoint, label).Observe(d.Seconds())
}

func (m *Metrics) IncSessionTeardown() {
	if m == nil {
		return
	}
	m.sessionTeardowns.Inc()
}

func (m *Metrics) IncSessionEvent(eventType string) {
	if m == nil {
		return
	}
	m.sessionEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncRateLimitRejection(path string) {
	if m == nil {
		return
	}
	m.rateLimitRejections.WithLabelValues(path).Inc()
}

func (m *Metrics) IncAuditEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.auditEvents.WithLabelValues(eventType, outcome).Inc()
}
