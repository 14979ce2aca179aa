package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aaronlmathis/powerplot/internal/plot"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "/healthz"},
		{"/metrics", "/metrics"},
		{"/api/v1/charts", "/api/v1/charts"},
		{"/api/v1/charts/", "/api/v1/charts"},
		{"/api/v1/charts/garage", "/api/v1/charts/:name"},
		{"/api/v1/charts/office/", "/api/v1/charts/:name"},
		{"/api/v1/plot", "/api/v1/plot"},
		{"/wp-login.php", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizePath(tt.path))
		})
	}
}

func TestRequestIDResponseMiddleware(t *testing.T) {
	handler := middleware.RequestID(RequestIDResponseMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func imageHandler(body []byte, lastModified time.Time) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
		_, _ = w.Write(body)
	})
}

func TestETagMiddleware(t *testing.T) {
	em := NewETagMiddleware(zaptest.NewLogger(t), time.Minute)
	rendered := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	handler := em.Middleware(imageHandler([]byte("png-bytes"), rendered))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/charts/garage", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rec.Body.String())

	t.Run("matching etag", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/charts/garage", nil)
		req.Header.Set("If-None-Match", etag)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotModified, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("weak etag list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/charts/garage", nil)
		req.Header.Set("If-None-Match", `"other", W/`+etag)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotModified, rec.Code)
	})

	t.Run("stale etag", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/charts/garage", nil)
		req.Header.Set("If-None-Match", `"0000000000000000"`)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "png-bytes", rec.Body.String())
	})

	t.Run("if-modified-since", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/charts/garage", nil)
		req.Header.Set("If-Modified-Since", rendered.Add(time.Minute).Format(http.TimeFormat))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotModified, rec.Code)
	})

	t.Run("modified after client copy", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/charts/garage", nil)
		req.Header.Set("If-Modified-Since", rendered.Add(-time.Minute).Format(http.TimeFormat))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestETagMiddlewarePassesErrorsThrough(t *testing.T) {
	em := NewETagMiddleware(zaptest.NewLogger(t), time.Minute)
	handler := em.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/charts/garage", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, rec.Header().Get("ETag"))
	assert.Equal(t, `{"error":"down"}`, rec.Body.String())
}

func TestETagMiddlewareSkips(t *testing.T) {
	em := NewETagMiddleware(zaptest.NewLogger(t), time.Minute)
	handler := em.Middleware(imageHandler([]byte("x"), time.Now()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Empty(t, rec.Header().Get("ETag"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/api/v1/charts/garage", nil))
	assert.Empty(t, rec.Header().Get("ETag"))
}

func TestSanitizeErrorMessage(t *testing.T) {
	es := NewErrorSanitizer(zaptest.NewLogger(t))

	tests := []struct {
		name    string
		message string
		status  int
		want    string
	}{
		{
			name:    "source url hidden",
			message: `fetch failed: Get "http://10.0.0.5:8000/flotseries/": dial tcp: connection refused`,
			status:  http.StatusBadGateway,
			want:    "The series source is unavailable. Please try again later.",
		},
		{
			name:    "plain message kept",
			message: "chart name is required",
			status:  http.StatusBadRequest,
			want:    "chart name is required",
		},
		{
			name:    "path hidden",
			message: "open /var/lib/powerplot: denied",
			status:  http.StatusInternalServerError,
			want:    "The chart could not be rendered.",
		},
		{
			name:    "too short",
			message: "bad",
			status:  http.StatusNotFound,
			want:    "The requested chart was not found.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, es.sanitizeErrorMessage(tt.message, tt.status))
		})
	}
}

func TestSanitizeAndRespond(t *testing.T) {
	es := NewErrorSanitizer(zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/plot", nil)
	es.SanitizeAndRespond(rec, req, errors.New(`Get "https://example.com/x": timeout`), http.StatusBadGateway)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, http.StatusBadGateway, body.Status)
	assert.NotContains(t, body.Error, "example.com")
}

func TestSanitizeAndRespondHidesUpstreamText(t *testing.T) {
	es := NewErrorSanitizer(zaptest.NewLogger(t))

	tests := []struct {
		name string
		err  error
	}{
		{
			name: "fetch failure body",
			err:  fmt.Errorf("%w: source returned status 500: station db host db01 user admin unreachable", plot.ErrFetch),
		},
		{
			name: "parse failure",
			err:  fmt.Errorf("%w: response body is not valid JSON", plot.ErrParse),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/charts/garage", nil)
			es.SanitizeAndRespond(rec, req, tt.err, http.StatusBadGateway)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, es.getGenericErrorMessage(http.StatusBadGateway), body.Error)
			assert.NotContains(t, body.Error, "db01")
		})
	}
}

func TestRequestLogger(t *testing.T) {
	handler := RequestLogger(zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestPrometheusMiddleware(t *testing.T) {
	handler := PrometheusMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/charts/garage", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
