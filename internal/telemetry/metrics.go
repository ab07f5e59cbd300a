// Package telemetry provides logging, correlation ids and metrics for the
// agent service.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Invocation outcomes recorded by RecordInvocation.
const (
	InvocationOK          = "ok"
	InvocationClientError = "client_error"
	InvocationError       = "error"
)

// Metrics owns a private Prometheus registry so several servers can coexist
// in one process (and in tests). A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	invocations *prometheus.CounterVec
	agentTime   prometheus.Histogram
}

// NewMetrics creates and registers the service collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutoragent_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tutoragent_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutoragent_agent_invocations_total",
			Help: "Agent invocations by outcome.",
		}, []string{"status"}),
		agentTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tutoragent_agent_invocation_duration_seconds",
			Help:    "Time spent inside the agent.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
	m.registry.MustRegister(
		m.requests, m.durations, m.invocations, m.agentTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.durations.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordInvocation records one agent call and its outcome.
func (m *Metrics) RecordInvocation(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(status).Inc()
	m.agentTime.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
