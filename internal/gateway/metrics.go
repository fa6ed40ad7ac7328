package gateway

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMetricsNamespace is the namespace used when none is given.
const DefaultMetricsNamespace = "avabank"

// Metrics holds Prometheus metrics for gateway requests. A nil *Metrics
// records nothing.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	sessionExpirations *prometheus.CounterVec
	teardownFailures   *prometheus.CounterVec
	transportFailures  *prometheus.CounterVec
	credentialFailures prometheus.Counter
	registry           *prometheus.Registry
}

// NewMetrics creates gateway metrics registered on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total number of API requests by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method"},
	)

	m.sessionExpirations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "session_expirations_total",
			Help:      "Total number of responses that ended the session",
		},
		[]string{"status"},
	)

	m.teardownFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "teardown_failures_total",
			Help:      "Total number of failed session teardown steps",
		},
		[]string{"step"},
	)

	m.transportFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "transport_failures_total",
			Help:      "Total number of requests that received no response",
		},
		[]string{"reason"},
	)

	m.credentialFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "credential_failures_total",
			Help:      "Total number of requests aborted because the credential could not be read",
		},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.sessionExpirations,
		m.teardownFailures,
		m.transportFailures,
		m.credentialFailures,
	)

	return m
}

// Init pre-populates label combinations so the series are exported before
// the first request.
func (m *Metrics) Init() {
	if m == nil {
		return
	}
	for _, status := range []int{401, 403} {
		m.sessionExpirations.WithLabelValues(strconv.Itoa(status))
	}
	for _, step := range []string{teardownStepEndSession, teardownStepNavigate} {
		m.teardownFailures.WithLabelValues(step)
	}
	for _, reason := range []string{ReasonNetwork, ReasonTimeout, ReasonCanceled, ReasonCircuitOpen, ReasonRateLimited} {
		m.transportFailures.WithLabelValues(reason)
	}
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MustRegister registers the metrics with the given registry.
func (m *Metrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.sessionExpirations,
		m.teardownFailures,
		m.transportFailures,
		m.credentialFailures,
	)
}

// RecordRequest records a finished request. Outcome is a status class such
// as "2xx", or "no_response" / "credential_error".
func (m *Metrics) RecordRequest(method, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, outcome).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordSessionExpired records a 401/403 response.
func (m *Metrics) RecordSessionExpired(status int) {
	if m == nil {
		return
	}
	m.sessionExpirations.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordTeardownFailure records a failed teardown step.
func (m *Metrics) RecordTeardownFailure(step string) {
	if m == nil {
		return
	}
	m.teardownFailures.WithLabelValues(step).Inc()
}

// RecordTransportFailure records a request without a response.
func (m *Metrics) RecordTransportFailure(reason string) {
	if m == nil {
		return
	}
	m.transportFailures.WithLabelValues(reason).Inc()
}

// RecordCredentialFailure records a credential read failure.
func (m *Metrics) RecordCredentialFailure() {
	if m == nil {
		return
	}
	m.credentialFailures.Inc()
}

// statusClass maps a status code to its "Nxx" label.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}
