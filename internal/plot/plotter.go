// Package plot fetches flot series payloads and hands them, together with
// the fixed display options, to a chart renderer.
package plot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aaronlmathis/powerplot/internal/metrics"
	"github.com/aaronlmathis/powerplot/internal/surface"
	"github.com/aaronlmathis/powerplot/internal/version"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrFetch marks failures retrieving the payload: transport errors and non-200 responses.
	ErrFetch = errors.New("fetch failed")
	// ErrParse marks a response body that is not valid JSON.
	ErrParse = errors.New("parse failed")
	// ErrRender marks a failure inside the renderer.
	ErrRender = errors.New("render failed")
)

// Surface is a caller-owned target that a Renderer draws onto.
type Surface interface {
	Replace(img surface.Image) error
}

// Renderer draws a series payload onto a surface.
type Renderer interface {
	Plot(target Surface, payload json.RawMessage, opts Options) error
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(target Surface, payload json.RawMessage, opts Options) error

// Plot calls f.
func (f RendererFunc) Plot(target Surface, payload json.RawMessage, opts Options) error {
	return f(target, payload, opts)
}

// Plotter renders remote series payloads. It is safe for concurrent use;
// overlapping calls run independently.
type Plotter struct {
	logger    *zap.Logger
	renderer  Renderer
	client    *http.Client
	timeout   time.Duration
	userAgent string
	wg        sync.WaitGroup
}

// Option configures a Plotter.
type Option func(*Plotter)

// WithHTTPClient sets the client used for fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Plotter) {
		p.client = client
	}
}

// WithTimeout bounds each fetch. Zero means no timeout. The bound is applied
// per render, so it holds whatever client is configured.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Plotter) {
		p.timeout = timeout
	}
}

// WithUserAgent overrides the User-Agent header sent to sources.
func WithUserAgent(ua string) Option {
	return func(p *Plotter) {
		p.userAgent = ua
	}
}

// New creates a Plotter that draws with renderer.
func New(logger *zap.Logger, renderer Renderer, opts ...Option) *Plotter {
	p := &Plotter{
		logger:    logger,
		renderer:  renderer,
		client:    &http.Client{},
		userAgent: version.UserAgent(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Render fetches the payload at locator and draws it onto target. It
// returns before the fetch completes. The returned channel receives exactly
// one Result and is then closed; callers that don't care may ignore it.
func (p *Plotter) Render(locator string, target Surface) <-chan Result {
	return p.RenderContext(context.Background(), locator, target)
}

// RenderContext is Render with a context that can abort the fetch.
func (p *Plotter) RenderContext(ctx context.Context, locator string, target Surface) <-chan Result {
	results := make(chan Result, 1)
	id := uuid.NewString()

	metrics.RenderStarted()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(results)

		result := p.run(ctx, id, locator, target)
		metrics.RecordRender(result.Outcome.String(), result.Duration)
		results <- result
	}()

	return results
}

// Wait blocks until every render started so far has finished.
func (p *Plotter) Wait() {
	p.wg.Wait()
}

func (p *Plotter) run(ctx context.Context, id, locator string, target Surface) Result {
	start := time.Now()
	logger := p.logger.With(zap.String("render_id", id), zap.String("source", locator))
	result := Result{ID: id, Locator: locator}

	fetchCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	logger.Debug("Fetching series payload")
	payload, err := p.fetch(fetchCtx, locator)
	fetchTime := time.Since(start)
	if err != nil {
		result.Outcome = FetchFailed
		if errors.Is(err, ErrParse) {
			result.Outcome = ParseFailed
		}
		result.Err = err
		result.Duration = fetchTime
		metrics.RecordFetch(result.Outcome.String(), 0, fetchTime)
		logger.Warn("Series payload fetch failed",
			zap.String("outcome", result.Outcome.String()),
			zap.Duration("duration", fetchTime),
			zap.Error(err))
		return result
	}
	metrics.RecordFetch("ok", len(payload), fetchTime)

	if err := p.plot(target, payload); err != nil {
		result.Outcome = RenderFailed
		result.Err = err
		result.Duration = time.Since(start)
		logger.Error("Chart render failed", zap.Error(err))
		return result
	}

	result.Outcome = Rendered
	result.Duration = time.Since(start)
	logger.Debug("Chart rendered",
		zap.Int("payload_bytes", len(payload)),
		zap.Duration("fetch", fetchTime),
		zap.Duration("total", result.Duration))
	return result
}

// plot calls the renderer, converting a panic into an error so a broken
// payload can never take the caller down.
func (p *Plotter) plot(target Surface, payload json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: renderer panic: %v", ErrRender, r)
		}
	}()

	if err := p.renderer.Plot(target, payload, DisplayOptions()); err != nil {
		return fmt.Errorf("%w: %w", ErrRender, err)
	}
	return nil
}
