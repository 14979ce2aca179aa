package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/aaronlmathis/powerplot/internal/chart"
	"github.com/aaronlmathis/powerplot/internal/config"
	ppmiddleware "github.com/aaronlmathis/powerplot/internal/middleware"
	"github.com/aaronlmathis/powerplot/internal/plot"
	"github.com/aaronlmathis/powerplot/internal/surface"
	"github.com/aaronlmathis/powerplot/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// chartCacheAge is how long clients may reuse a rendered chart
const chartCacheAge = 30 * time.Second

// chartState is the plotter of a configured chart and the surface its renders land on
type chartState struct {
	plotter *plot.Plotter
	surface *surface.Memory
}

// Server represents the API server
type Server struct {
	logger    *zap.Logger
	config    *config.Config
	router    chi.Router
	sanitizer *ppmiddleware.ErrorSanitizer
	etag      *ppmiddleware.ETagMiddleware

	adhoc  *plot.Plotter
	charts map[string]*chartState

	rateMutex  sync.Mutex
	rateLimits map[string]*clientLimiter
}

// NewServer creates a new API server
func NewServer(logger *zap.Logger, cfg *config.Config) (*Server, error) {
	timeout, err := cfg.Plot.Timeout()
	if err != nil {
		return nil, err
	}

	s := &Server{
		logger:     logger,
		config:     cfg,
		router:     chi.NewRouter(),
		sanitizer:  ppmiddleware.NewErrorSanitizer(logger),
		etag:       ppmiddleware.NewETagMiddleware(logger, chartCacheAge),
		charts:     make(map[string]*chartState, len(cfg.Charts)),
		rateLimits: make(map[string]*clientLimiter),
	}

	renderer := chart.NewRenderer(logger.Named("chart"), chart.Config{
		Width:  cfg.Plot.Width,
		Height: cfg.Plot.Height,
		Format: chart.Format(cfg.Plot.Format),
	})

	// Every redirect hop of an ad-hoc fetch must stay on the allow list
	adhocClient := &http.Client{CheckRedirect: s.checkRedirect}
	s.adhoc = plot.New(logger.Named("plot"), renderer,
		plot.WithHTTPClient(adhocClient),
		plot.WithTimeout(timeout))

	chartClient := &http.Client{}
	for _, c := range cfg.Charts {
		s.charts[c.Name] = &chartState{
			plotter: plot.New(logger.Named("plot").With(zap.String("chart", c.Name)), renderer.WithTitle(c.Title),
				plot.WithHTTPClient(chartClient),
				plot.WithTimeout(timeout)),
			surface: surface.NewMemory(),
		}
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Start starts the server components
func (s *Server) Start(ctx context.Context) error {
	go s.cleanupRateLimiters(ctx, 5*time.Minute)
	return nil
}

// Stop waits for in-flight renders to finish
func (s *Server) Stop() {
	s.logger.Info("Stopping server components")

	s.adhoc.Wait()
	for _, st := range s.charts {
		st.plotter.Wait()
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(ppmiddleware.RequestIDResponseMiddleware)
	s.router.Use(middleware.RealIP)
	s.router.Use(ppmiddleware.RequestLogger(s.logger.Named("http")))
	s.router.Use(middleware.Recoverer)
	s.router.Use(ppmiddleware.PrometheusMiddleware)

	// Security headers
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)

	// Version endpoint
	s.router.Get("/version", s.handleVersion)

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/charts", s.handleListCharts)

		r.Group(func(r chi.Router) {
			r.Use(s.etag.Middleware)

			r.Get("/charts/{name}", s.handleGetChart)

			r.Group(func(r chi.Router) {
				r.Use(s.rateLimit("adhoc", s.config.Plot.AdhocPerMinute))
				r.Get("/plot", s.handlePlot)
			})
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.sanitizer.Respond(w, "not found", http.StatusNotFound)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.sanitizer.Respond(w, "method not allowed", http.StatusMethodNotAllowed)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"charts": len(s.charts),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
