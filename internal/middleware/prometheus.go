package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/aaronlmathis/powerplot/internal/metrics"
	"github.com/go-chi/chi/v5/middleware"
)

// PrometheusMiddleware records HTTP request metrics for Prometheus
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		metrics.RecordHTTPRequest(r.Method, sanitizePath(r.URL.Path), ww.Status(), time.Since(start))
	})
}

// RequestIDResponseMiddleware adds the request ID to response headers
func RequestIDResponseMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// sanitizePath normalizes URL paths for metrics to prevent cardinality explosion
func sanitizePath(path string) string {
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}

	switch path {
	case "/healthz", "/readyz", "/version", "/metrics", "/api/v1/charts", "/api/v1/plot":
		return path
	}

	// /api/v1/charts/{name} -> /api/v1/charts/:name
	if strings.HasPrefix(path, "/api/v1/charts/") {
		return "/api/v1/charts/:name"
	}

	// Anything else is a 404 candidate; collapse it to one label
	return "other"
}
