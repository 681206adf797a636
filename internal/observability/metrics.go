package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedRoute is the label value for requests that matched no route,
// keeping the route label cardinality bounded.
const unmatchedRoute = "unmatched"

// Metrics owns the gateway's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	rateLimitDenied  *prometheus.CounterVec
	upstreamAttempts *prometheus.CounterVec
	upstreamResults  *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	registryChanges  *prometheus.CounterVec
	registrySize     prometheus.Gauge
	circuitState     *prometheus.GaugeVec
	buildInfo        *prometheus.GaugeVec
	registry         *prometheus.Registry
}

// Request latency buckets reach 30s, the longest upstream timeout plus retries.
var requestBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// NewMetrics builds the gateway's collectors on a private registry, so tests
// can create as many instances as they like.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: name, Help: help, Buckets: buckets,
		}, labels)
	}

	m := &Metrics{
		registry:         prometheus.NewRegistry(),
		requestsTotal:    counter("requests_total", "Requests answered by the gateway", "method", "route", "status"),
		requestDuration:  histogram("request_duration_seconds", "Time to answer a request", requestBuckets, "method", "route"),
		rateLimitDenied:  counter("ratelimit_denied_total", "Requests rejected by a limiter class", "class"),
		upstreamAttempts: counter("upstream_attempts_total", "Upstream attempts made by the dispatcher", "service"),
		upstreamResults:  counter("upstream_results_total", "Final dispatch outcomes per service", "service", "outcome"),
		upstreamDuration: histogram("upstream_duration_seconds", "Dispatch time including retries", prometheus.DefBuckets, "service"),
		registryChanges:  counter("registry_changes_total", "Service registry mutations", "type"),
		registrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "registry_services", Help: "Services currently registered",
		}),
		circuitState: gauge("circuit_breaker_state", "Breaker state per service (0 closed, 1 half-open, 2 open)", "service"),
		buildInfo:    gauge("build_info", "Gateway build; the value is always 1", "version", "commit"),
	}

	m.registry.MustRegister(
		m.requestsTotal, m.requestDuration, m.rateLimitDenied,
		m.upstreamAttempts, m.upstreamResults, m.upstreamDuration,
		m.registryChanges, m.registrySize, m.circuitState, m.buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = unmatchedRoute
	}
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRateLimitDenied counts a rejection by the given limiter class.
func (m *Metrics) RecordRateLimitDenied(class string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.WithLabelValues(class).Inc()
}

// RecordUpstreamAttempt counts one outbound attempt.
func (m *Metrics) RecordUpstreamAttempt(service string) {
	if m == nil {
		return
	}
	m.upstreamAttempts.WithLabelValues(service).Inc()
}

// RecordUpstreamResult records the final outcome of a dispatch.
func (m *Metrics) RecordUpstreamResult(service, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamResults.WithLabelValues(service, outcome).Inc()
	m.upstreamDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordRegistryChange records a registry mutation and the resulting size.
func (m *Metrics) RecordRegistryChange(changeType string, size int) {
	if m == nil {
		return
	}
	m.registryChanges.WithLabelValues(changeType).Inc()
	m.registrySize.Set(float64(size))
}

// SetCircuitState records the circuit breaker state of a service.
func (m *Metrics) SetCircuitState(service string, state int) {
	if m == nil {
		return
	}
	m.circuitState.WithLabelValues(service).Set(float64(state))
}

// SetBuildInfo publishes version information.
func (m *Metrics) SetBuildInfo(version, commit string) {
	if m == nil {
		return
	}
	m.buildInfo.WithLabelValues(version, commit).Set(1)
}
