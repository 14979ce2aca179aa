package middleware

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ETagMiddleware provides ETag and Last-Modified support for rendered charts
type ETagMiddleware struct {
	logger *zap.Logger
	maxAge time.Duration
}

// NewETagMiddleware creates a new ETag middleware. maxAge sets the
// Cache-Control lifetime of successful responses.
func NewETagMiddleware(logger *zap.Logger, maxAge time.Duration) *ETagMiddleware {
	return &ETagMiddleware{
		logger: logger,
		maxAge: maxAge,
	}
}

// Middleware returns the ETag middleware handler
func (em *ETagMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only apply to safe GET requests
		if r.Method != http.MethodGet || em.shouldSkipETag(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		recorder := &ETagResponseRecorder{
			header: make(http.Header),
			status: http.StatusOK,
		}
		next.ServeHTTP(recorder, r)

		for key, values := range recorder.header {
			w.Header()[key] = values
		}

		// Only successful responses get validators
		if recorder.status != http.StatusOK || recorder.body.Len() == 0 {
			w.WriteHeader(recorder.status)
			_, _ = w.Write(recorder.body.Bytes())
			return
		}

		etag := em.calculateETag(recorder.body.Bytes())
		w.Header().Set("ETag", fmt.Sprintf(`"%s"`, etag))
		em.setCacheHeaders(w)

		if clientETag := r.Header.Get("If-None-Match"); clientETag != "" {
			if em.etagMatches(clientETag, etag) {
				em.logger.Debug("ETag matched, serving 304",
					zap.String("path", r.URL.Path),
					zap.String("etag", etag),
					zap.String("request_id", middleware.GetReqID(r.Context())))

				w.WriteHeader(http.StatusNotModified)
				return
			}
		} else if modSince := r.Header.Get("If-Modified-Since"); modSince != "" {
			lastModified, err := http.ParseTime(w.Header().Get("Last-Modified"))
			clientTime, clientErr := http.ParseTime(modSince)
			if err == nil && clientErr == nil && !lastModified.After(clientTime) {
				em.logger.Debug("Content not modified since client cache, serving 304",
					zap.String("path", r.URL.Path),
					zap.Time("client_time", clientTime),
					zap.Time("last_modified", lastModified),
					zap.String("request_id", middleware.GetReqID(r.Context())))

				w.WriteHeader(http.StatusNotModified)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(recorder.body.Bytes())
	})
}

// shouldSkipETag determines if ETag should be skipped for a path
func (em *ETagMiddleware) shouldSkipETag(path string) bool {
	skipPaths := []string{
		"/metrics",
		"/healthz",
		"/readyz",
	}

	for _, skipPath := range skipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

// calculateETag calculates an ETag for the given content
func (em *ETagMiddleware) calculateETag(content []byte) string {
	sum := md5.Sum(content)
	return fmt.Sprintf("%x", sum)[:16] // Use first 16 chars for shorter ETags
}

// etagMatches checks if client ETag matches server ETag
func (em *ETagMiddleware) etagMatches(clientETag, serverETag string) bool {
	if strings.TrimSpace(clientETag) == "*" {
		return true
	}
	for _, candidate := range strings.Split(clientETag, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if strings.Trim(candidate, `"`) == strings.Trim(serverETag, `"`) {
			return true
		}
	}
	return false
}

// setCacheHeaders sets the cache lifetime unless the handler chose one
func (em *ETagMiddleware) setCacheHeaders(w http.ResponseWriter) {
	if w.Header().Get("Cache-Control") != "" {
		return
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(em.maxAge.Seconds())))
}

// ETagResponseRecorder buffers a response so validators can be computed
// before anything reaches the client
type ETagResponseRecorder struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

// Header returns the buffered header map
func (r *ETagResponseRecorder) Header() http.Header {
	return r.header
}

// WriteHeader captures the status code
func (r *ETagResponseRecorder) WriteHeader(statusCode int) {
	if r.wroteHeader {
		return
	}
	r.status = statusCode
	r.wroteHeader = true
}

// Write captures the response body
func (r *ETagResponseRecorder) Write(data []byte) (int, error) {
	r.wroteHeader = true
	return r.body.Write(data)
}
