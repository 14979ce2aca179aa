package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/powerplot/internal/plot"
	"github.com/aaronlmathis/powerplot/internal/surface"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// StaleHeader marks a response carrying the last good image after a failed render
const StaleHeader = "X-Powerplot-Stale"

var (
	errSourceRequired = errors.New("src query parameter is required")
	errSourceInvalid  = errors.New("src must be an absolute http or https address")
	errHostNotAllowed = errors.New("src host is not in the allowed list")
	errTooManyHops    = errors.New("stopped after 10 redirects")
)

// chartSummary describes a configured chart in listings
type chartSummary struct {
	Name         string     `json:"name"`
	Title        string     `json:"title,omitempty"`
	Source       string     `json:"source"`
	LastRendered *time.Time `json:"lastRendered,omitempty"`
}

func (s *Server) handleListCharts(w http.ResponseWriter, r *http.Request) {
	summaries := make([]chartSummary, 0, len(s.config.Charts))
	for _, c := range s.config.Charts {
		st := s.charts[c.Name]
		summary := chartSummary{
			Name:   c.Name,
			Title:  c.Title,
			Source: c.Source,
		}
		if img, ok := st.surface.Latest(); ok {
			rendered := img.RenderedAt.UTC()
			summary.LastRendered = &rendered
		}
		summaries = append(summaries, summary)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"charts": summaries,
		"total":  len(summaries),
	})
}

func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	chartConfig, ok := s.config.Chart(name)
	if !ok {
		s.sanitizer.Respond(w, fmt.Sprintf("chart %q is not configured", name), http.StatusNotFound)
		return
	}
	st := s.charts[chartConfig.Name]

	result := <-st.plotter.RenderContext(r.Context(), chartConfig.Source, st.surface)
	img, haveImage := st.surface.Latest()

	if !result.OK() {
		if haveImage {
			s.logger.Warn("Serving stale chart",
				zap.String("chart", name),
				zap.String("outcome", result.Outcome.String()),
				zap.Time("rendered_at", img.RenderedAt),
				zap.Error(result.Err))
			w.Header().Set(StaleHeader, "true")
			w.Header().Set("Cache-Control", "no-cache")
			writeImage(w, img)
			return
		}
		s.sanitizer.SanitizeAndRespond(w, r, result.Err, statusForOutcome(result.Outcome))
		return
	}

	writeImage(w, img)
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	src, err := s.validateSource(r.URL.Query().Get("src"))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errHostNotAllowed) {
			status = http.StatusForbidden
		}
		s.sanitizer.Respond(w, err.Error(), status)
		return
	}

	target := surface.NewMemory()
	result := <-s.adhoc.RenderContext(r.Context(), src, target)
	if !result.OK() {
		s.sanitizer.SanitizeAndRespond(w, r, result.Err, statusForOutcome(result.Outcome))
		return
	}

	img, _ := target.Latest()
	writeImage(w, img)
}

// validateSource checks that raw is an absolute http(s) URL on an allowed host
func (s *Server) validateSource(raw string) (string, error) {
	if raw == "" {
		return "", errSourceRequired
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errSourceInvalid
	}

	if !s.hostAllowed(u) {
		return "", errHostNotAllowed
	}
	return u.String(), nil
}

// checkRedirect applies the ad-hoc source rules to every redirect hop
func (s *Server) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errTooManyHops
	}
	if (req.URL.Scheme != "http" && req.URL.Scheme != "https") || !s.hostAllowed(req.URL) {
		return fmt.Errorf("redirect to %s: %w", req.URL.Host, errHostNotAllowed)
	}
	return nil
}

// hostAllowed matches either the bare hostname or host:port against the allow list
func (s *Server) hostAllowed(u *url.URL) bool {
	host := strings.ToLower(u.Host)
	hostname := strings.ToLower(u.Hostname())
	for _, allowed := range s.config.Plot.AllowedHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == host || allowed == hostname {
			return true
		}
	}
	return false
}

// statusForOutcome maps a failed render to the status sent to the client
func statusForOutcome(outcome plot.Outcome) int {
	switch outcome {
	case plot.FetchFailed, plot.ParseFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeImage(w http.ResponseWriter, img surface.Image) {
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Last-Modified", img.RenderedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}
