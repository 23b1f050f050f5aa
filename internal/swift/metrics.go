package swift

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics instruments the REST request engine. Each client owns its own
// registry so multiple bindings in one process stay distinguishable by
// the service label.
type Metrics struct {
	registry *prometheus.Registry

	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retryCounter    prometheus.Counter
	reauthCounter   prometheus.Counter
	bytesCounter    *prometheus.CounterVec
}

// NewMetrics creates and registers the REST engine metrics for one
// service binding.
func NewMetrics(service string) *Metrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: registry,
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "swiftfs",
				Subsystem:   "rest",
				Name:        "requests_total",
				Help:        "Total REST requests by verb and status code",
				ConstLabels: labels,
			},
			[]string{"verb", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   "swiftfs",
				Subsystem:   "rest",
				Name:        "request_duration_seconds",
				Help:        "REST request duration by verb",
				ConstLabels: labels,
				Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
			},
			[]string{"verb"},
		),
		retryCounter: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   "swiftfs",
				Subsystem:   "rest",
				Name:        "transport_retries_total",
				Help:        "Transport-level retries",
				ConstLabels: labels,
			},
		),
		reauthCounter: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   "swiftfs",
				Subsystem:   "rest",
				Name:        "reauthentications_total",
				Help:        "Re-authentications triggered by 401 responses",
				ConstLabels: labels,
			},
		),
		bytesCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "swiftfs",
				Subsystem:   "rest",
				Name:        "bytes_total",
				Help:        "Bytes transferred by direction",
				ConstLabels: labels,
			},
			[]string{"direction"},
		),
	}

	registry.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.retryCounter,
		m.reauthCounter,
		m.bytesCounter,
	)

	return m
}

// RecordRequest records one completed request.
func (m *Metrics) RecordRequest(verb string, status int, seconds float64) {
	m.requestCounter.With(prometheus.Labels{
		"verb":   verb,
		"status": strconv.Itoa(status),
	}).Inc()
	m.requestDuration.With(prometheus.Labels{"verb": verb}).Observe(seconds)
}

// RecordRetry records one transport-level retry.
func (m *Metrics) RecordRetry() { m.retryCounter.Inc() }

// RecordReauth records one 401-triggered re-authentication.
func (m *Metrics) RecordReauth() { m.reauthCounter.Inc() }

// RecordBytes records transferred payload bytes.
func (m *Metrics) RecordBytes(direction string, n int64) {
	if n > 0 {
		m.bytesCounter.With(prometheus.Labels{"direction": direction}).Add(float64(n))
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
