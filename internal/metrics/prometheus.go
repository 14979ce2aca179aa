package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the plotter and its HTTP server
var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerplot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "powerplot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	// Series source fetches
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerplot_fetches_total",
			Help: "Total number of series payload fetches",
		},
		[]string{"outcome"},
	)

	fetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "powerplot_fetch_duration_seconds",
			Help:    "Series payload fetch duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	fetchBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "powerplot_fetch_bytes",
			Help:    "Size of fetched series payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B to 4MB
		},
	)

	// Chart renders
	rendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerplot_renders_total",
			Help: "Total number of render calls by final outcome",
		},
		[]string{"outcome"},
	)

	renderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "powerplot_render_duration_seconds",
			Help:    "End-to-end render duration in seconds, fetch included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	rendersInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "powerplot_renders_in_flight",
			Help: "Number of render calls whose fetch or draw has not finished",
		},
	)

	rateLimitedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerplot_rate_limited_requests_total",
			Help: "Total number of rate limited requests",
		},
		[]string{"endpoint"},
	)
)

// RecordHTTPRequest records metrics for HTTP requests
func RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	labels := prometheus.Labels{
		"method":      method,
		"path":        path,
		"status_code": strconv.Itoa(statusCode),
	}

	httpRequestsTotal.With(labels).Inc()
	httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// RecordFetch records a completed payload fetch. size is ignored for failed fetches.
func RecordFetch(outcome string, size int, duration time.Duration) {
	fetchesTotal.With(prometheus.Labels{"outcome": outcome}).Inc()
	fetchDuration.Observe(duration.Seconds())
	if size > 0 {
		fetchBytes.Observe(float64(size))
	}
}

// RenderStarted marks a render call as in flight
func RenderStarted() {
	rendersInFlight.Inc()
}

// RecordRender records the outcome of a render call and clears its in-flight mark
func RecordRender(outcome string, duration time.Duration) {
	rendersInFlight.Dec()
	rendersTotal.With(prometheus.Labels{"outcome": outcome}).Inc()
	renderDuration.With(prometheus.Labels{"outcome": outcome}).Observe(duration.Seconds())
}

// RecordRateLimitedRequest records rate limiting metrics
func RecordRateLimitedRequest(endpoint string) {
	rateLimitedRequestsTotal.With(prometheus.Labels{"endpoint": endpoint}).Inc()
}
