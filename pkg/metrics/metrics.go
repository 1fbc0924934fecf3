// Package metrics holds the Prometheus collectors for the API process.
//
// A nil *Metrics is valid and records nothing, so components take one
// unconditionally and the caller decides whether metrics are enabled.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "onchain_agent"

// Metrics is the set of collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	lifecycleState     *prometheus.GaugeVec
	storageConnect     *prometheus.HistogramVec
	storageCloseErrors prometheus.Counter
}

// New creates a Metrics instance with Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry: reg,
		httpRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by method and route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		lifecycleState: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "lifecycle_state",
				Help:      "Current lifecycle state of the service (1 for the active state)",
			},
			[]string{"state"},
		),
		storageConnect: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_connect_duration_seconds",
				Help:      "Time spent connecting to storage at startup, by outcome",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"}, // "success", "failure"
		),
		storageCloseErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_close_errors_total",
				Help:      "Storage close failures during shutdown",
			},
		),
	}
}

// ObserveRequest records a completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// SetLifecycleState marks state as the only active lifecycle state.
func (m *Metrics) SetLifecycleState(state string) {
	if m == nil {
		return
	}
	m.lifecycleState.Reset()
	m.lifecycleState.WithLabelValues(state).Set(1)
}

// ObserveStorageConnect records how long the startup connection took.
func (m *Metrics) ObserveStorageConnect(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.storageConnect.WithLabelValues(outcome).Observe(d.Seconds())
}

// IncStorageCloseErrors counts a failed storage close.
func (m *Metrics) IncStorageCloseErrors() {
	if m == nil {
		return
	}
	m.storageCloseErrors.Inc()
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
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
