package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exposed on /metrics, promoting
// the teacher's indirect prometheus/client_golang dependency to real
// direct use (see DESIGN.md).
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics builds a Metrics collector registered to its own registry
// (not the global default, so multiple Server instances in one process
// don't collide).
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bindle_http_requests_total",
			Help: "Total HTTP requests handled by the bindle server, by method, path, and status.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bindle_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds, by method and path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	m.registry.MustRegister(m.requestsTotal, m.requestDuration)
	return m
}

// Handler returns the /metrics HTTP handler for this collector.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// requestTimer tracks one in-flight request's start time.
type requestTimer struct {
	metrics *Metrics
	method  string
	path    string
	start   time.Time
}

// StartRequest begins timing a request.
func (m *Metrics) StartRequest(method, path string) *requestTimer {
	return &requestTimer{metrics: m, method: method, path: path, start: time.Now()}
}

// ObserveStatus records the completed request's status and latency.
func (t *requestTimer) ObserveStatus(status int) {
	elapsed := time.Since(t.start).Seconds()
	t.metrics.requestDuration.WithLabelValues(t.method, t.path).Observe(elapsed)
	t.metrics.requestsTotal.WithLabelValues(t.method, t.path, http.StatusText(status)).Inc()
}
