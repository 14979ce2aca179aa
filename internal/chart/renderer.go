// Package chart draws flot series payloads as line charts using go-chart.
package chart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aaronlmathis/powerplot/internal/plot"
	"github.com/aaronlmathis/powerplot/internal/surface"
	"github.com/aaronlmathis/powerplot/internal/timeseries"
	gochart "github.com/wcharczuk/go-chart/v2"
	"go.uber.org/zap"
)

// Format is the encoded image format.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// ErrNoData is returned when a payload has no drawable points.
var ErrNoData = errors.New("payload has no data points")

// Config controls image size and encoding.
type Config struct {
	Width  int
	Height int
	Format Format
	Title  string
}

// DefaultConfig returns the default chart configuration
func DefaultConfig() Config {
	return Config{
		Width:  800,
		Height: 320,
		Format: PNG,
	}
}

// Renderer implements plot.Renderer on top of go-chart.
type Renderer struct {
	logger *zap.Logger
	config Config
}

var _ plot.Renderer = (*Renderer)(nil)

// NewRenderer creates a renderer; zero size fields fall back to DefaultConfig.
func NewRenderer(logger *zap.Logger, config Config) *Renderer {
	defaults := DefaultConfig()
	if config.Width <= 0 {
		config.Width = defaults.Width
	}
	if config.Height <= 0 {
		config.Height = defaults.Height
	}
	if config.Format == "" {
		config.Format = defaults.Format
	}
	return &Renderer{logger: logger, config: config}
}

// WithTitle returns a copy of the renderer that titles its charts.
func (r *Renderer) WithTitle(title string) *Renderer {
	config := r.config
	config.Title = title
	return &Renderer{logger: r.logger, config: config}
}

// Config returns the renderer configuration
func (r *Renderer) Config() Config {
	return r.config
}

// Plot decodes payload, draws it with opts and replaces the content of target.
func (r *Renderer) Plot(target plot.Surface, payload json.RawMessage, opts plot.Options) error {
	collection, err := timeseries.DecodeFlot(payload)
	if err != nil {
		return err
	}

	c, err := r.build(collection, opts)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := c.Render(r.provider(), &buf); err != nil {
		return fmt.Errorf("failed to draw chart: %w", err)
	}

	r.logger.Debug("Chart drawn",
		zap.Int("series", len(collection)),
		zap.Int("points", collection.Len()),
		zap.String("format", string(r.config.Format)),
		zap.Int("bytes", buf.Len()))

	return target.Replace(surface.Image{
		ContentType: r.config.Format.ContentType(),
		Data:        buf.Bytes(),
		RenderedAt:  time.Now(),
	})
}

func (r *Renderer) provider() gochart.RendererProvider {
	if r.config.Format == SVG {
		return gochart.SVG
	}
	return gochart.PNG
}

// build converts a collection into a go-chart Chart styled by opts.
func (r *Renderer) build(collection timeseries.Collection, opts plot.Options) (*gochart.Chart, error) {
	bounds, ok := collection.Bounds()
	if !ok {
		return nil, ErrNoData
	}

	var series []gochart.Series
	for i, s := range collection {
		if len(s.Points) == 0 {
			continue
		}
		xs := make([]time.Time, len(s.Points))
		ys := make([]float64, len(s.Points))
		for j, p := range s.Points {
			xs[j] = p.T
			ys[j] = p.V
		}
		series = append(series, gochart.TimeSeries{
			Name:    s.Label,
			Style:   lineStyle(seriesColor(s, i), opts.Lines),
			XValues: xs,
			YValues: ys,
		})
	}

	c := &gochart.Chart{
		Title:  r.config.Title,
		Width:  r.config.Width,
		Height: r.config.Height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 20, Left: 16, Right: 16, Bottom: 12},
		},
		XAxis:  xAxis(bounds, opts.XAxis),
		YAxis:  yAxis(bounds),
		Series: series,
	}
	c.Elements = []gochart.Renderable{legend(c, opts.Legend)}
	return c, nil
}

// lineStyle maps line options onto a go-chart style.
func lineStyle(color Color, lines plot.LineOptions) gochart.Style {
	st := gochart.Style{
		StrokeColor: color,
		StrokeWidth: lines.LineWidth,
		Hidden:      !lines.Show,
	}
	if lines.Fill {
		st.FillColor = color.WithAlpha(fillAlpha)
	}
	return st
}
