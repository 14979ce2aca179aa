package plot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aaronlmathis/powerplot/internal/surface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	wattsPayload = `[{"label": "watts - Garage", "data": [[1700000000000, 120], [1700000060000, 135]]}]`
	ampsPayload  = `[{"label": "amps - Garage", "data": [[1700000000000, 1.5], [1700000060000, 1.7]]}]`
)

type plotCall struct {
	target  Surface
	payload json.RawMessage
	opts    Options
}

// recordingRenderer captures every Plot call.
type recordingRenderer struct {
	mu    sync.Mutex
	calls []plotCall
	err   error
}

func (r *recordingRenderer) Plot(target Surface, payload json.RawMessage, opts Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, plotCall{target: target, payload: payload, opts: opts})
	if r.err != nil {
		return r.err
	}
	return target.Replace(surface.Image{ContentType: "application/json", Data: payload})
}

func (r *recordingRenderer) Calls() []plotCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]plotCall(nil), r.calls...)
}

func jsonSource(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func await(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case r, ok := <-results:
		require.True(t, ok, "result channel closed without a result")
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for render result")
		return Result{}
	}
}

func TestRenderSuccess(t *testing.T) {
	renderer := &recordingRenderer{}
	p := New(zaptest.NewLogger(t), renderer)
	src := jsonSource(t, wattsPayload)
	target := surface.NewMemory()

	result := await(t, p.Render(src.URL, target))

	require.True(t, result.OK(), "unexpected error: %v", result.Err)
	assert.Equal(t, Rendered, result.Outcome)
	assert.Equal(t, src.URL, result.Locator)
	assert.NotEmpty(t, result.ID)

	calls := renderer.Calls()
	require.Len(t, calls, 1)
	assert.Same(t, target, calls[0].target)
	assert.Equal(t, DisplayOptions(), calls[0].opts)
	assert.JSONEq(t, wattsPayload, string(calls[0].payload))
	assert.Equal(t, wattsPayload, string(calls[0].payload), "payload should be passed through unchanged")

	img, ok := target.Latest()
	require.True(t, ok)
	assert.Equal(t, wattsPayload, string(img.Data))
}

func TestRenderOptionsConstantAcrossPayloads(t *testing.T) {
	renderer := &recordingRenderer{}
	p := New(zaptest.NewLogger(t), renderer)

	first := await(t, p.Render(jsonSource(t, wattsPayload).URL, surface.NewMemory()))
	second := await(t, p.Render(jsonSource(t, ampsPayload).URL, surface.NewMemory()))
	require.True(t, first.OK())
	require.True(t, second.OK())

	calls := renderer.Calls()
	require.Len(t, calls, 2)
	assert.NotEqual(t, string(calls[0].payload), string(calls[1].payload))
	assert.Equal(t, calls[0].opts, calls[1].opts)
	assert.Equal(t, DisplayOptions(), calls[1].opts)
}

func TestRenderFetchFailures(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer failing.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name    string
		locator string
	}{
		{name: "server error", locator: failing.URL},
		{name: "unreachable", locator: closedURL},
		{name: "malformed locator", locator: "://not a url"},
		{name: "empty locator", locator: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := &recordingRenderer{}
			p := New(zaptest.NewLogger(t), renderer)
			target := surface.NewMemory()

			var results <-chan Result
			assert.NotPanics(t, func() {
				results = p.Render(tt.locator, target)
			})

			result := await(t, results)
			assert.Equal(t, FetchFailed, result.Outcome)
			assert.ErrorIs(t, result.Err, ErrFetch)
			assert.Empty(t, renderer.Calls())
			assert.Zero(t, target.Version())
		})
	}
}

func TestRenderMalformedJSON(t *testing.T) {
	renderer := &recordingRenderer{}
	p := New(zaptest.NewLogger(t), renderer)
	src := jsonSource(t, "<html>not json</html>")

	var results <-chan Result
	assert.NotPanics(t, func() {
		results = p.Render(src.URL, surface.NewMemory())
	})

	result := await(t, results)
	assert.Equal(t, ParseFailed, result.Outcome)
	assert.ErrorIs(t, result.Err, ErrParse)
	assert.Empty(t, renderer.Calls())
}

func TestRenderRendererFailure(t *testing.T) {
	renderer := &recordingRenderer{err: errors.New("no drawable points")}
	p := New(zaptest.NewLogger(t), renderer)

	result := await(t, p.Render(jsonSource(t, `[]`).URL, surface.NewMemory()))
	assert.Equal(t, RenderFailed, result.Outcome)
	assert.ErrorIs(t, result.Err, ErrRender)
	assert.Len(t, renderer.Calls(), 1)
}

func TestRenderRendererPanic(t *testing.T) {
	p := New(zaptest.NewLogger(t), RendererFunc(func(Surface, json.RawMessage, Options) error {
		panic("bad payload")
	}))

	result := await(t, p.Render(jsonSource(t, wattsPayload).URL, surface.NewMemory()))
	assert.Equal(t, RenderFailed, result.Outcome)
	assert.ErrorIs(t, result.Err, ErrRender)
}

func TestRenderOverlappingCalls(t *testing.T) {
	renderer := &recordingRenderer{}
	p := New(zaptest.NewLogger(t), renderer)
	target := surface.NewMemory()

	first := p.Render(jsonSource(t, wattsPayload).URL, target)
	second := p.Render(jsonSource(t, ampsPayload).URL, target)

	assert.True(t, await(t, first).OK())
	assert.True(t, await(t, second).OK())

	calls := renderer.Calls()
	require.Len(t, calls, 2)
	payloads := []string{string(calls[0].payload), string(calls[1].payload)}
	assert.ElementsMatch(t, []string{wattsPayload, ampsPayload}, payloads)
	assert.Equal(t, uint64(2), target.Version())
}

func TestRenderReturnsBeforeFetchResolves(t *testing.T) {
	release := make(chan struct{})
	requested := make(chan struct{})
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(requested)
		<-release
		w.Write([]byte(wattsPayload))
	}))
	defer src.Close()

	renderer := &recordingRenderer{}
	p := New(zaptest.NewLogger(t), renderer)

	results := p.Render(src.URL, surface.NewMemory())
	assert.Empty(t, renderer.Calls(), "render must not happen before the fetch resolves")

	select {
	case <-requested:
	case <-time.After(5 * time.Second):
		t.Fatal("source was never requested")
	}
	assert.Empty(t, renderer.Calls())

	close(release)
	assert.True(t, await(t, results).OK())
	assert.Len(t, renderer.Calls(), 1)
}

func TestRenderContextCancel(t *testing.T) {
	release := make(chan struct{})
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer src.Close()
	defer close(release)

	renderer := &recordingRenderer{}
	p := New(zaptest.NewLogger(t), renderer)

	ctx, cancel := context.WithCancel(context.Background())
	results := p.RenderContext(ctx, src.URL, surface.NewMemory())
	cancel()

	result := await(t, results)
	assert.Equal(t, FetchFailed, result.Outcome)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Empty(t, renderer.Calls())
}

func TestRenderTimeout(t *testing.T) {
	release := make(chan struct{})
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer src.Close()
	defer close(release)

	renderer := &recordingRenderer{}
	p := New(zaptest.NewLogger(t), renderer, WithTimeout(50*time.Millisecond))

	result := await(t, p.Render(src.URL, surface.NewMemory()))
	assert.Equal(t, FetchFailed, result.Outcome)
	assert.ErrorIs(t, result.Err, context.DeadlineExceeded)
	assert.Empty(t, renderer.Calls())
}

func TestTimeoutSurvivesClientOption(t *testing.T) {
	release := make(chan struct{})
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer src.Close()
	defer close(release)

	redirectPolicy := func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	client := &http.Client{CheckRedirect: redirectPolicy}

	renderer := &recordingRenderer{}
	p := New(zaptest.NewLogger(t), renderer, WithTimeout(50*time.Millisecond), WithHTTPClient(client))

	assert.Same(t, client, p.client, "client must be used as given")
	assert.NotNil(t, p.client.CheckRedirect)
	assert.Equal(t, 50*time.Millisecond, p.timeout)

	start := time.Now()
	result := await(t, p.Render(src.URL, surface.NewMemory()))
	assert.Equal(t, FetchFailed, result.Outcome)
	assert.ErrorIs(t, result.Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Empty(t, renderer.Calls())

	p = New(zaptest.NewLogger(t), renderer, WithHTTPClient(client), WithTimeout(50*time.Millisecond))
	assert.Same(t, client, p.client)
	assert.Equal(t, 50*time.Millisecond, p.timeout)
}

func TestRenderSendsHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.Write([]byte(wattsPayload))
	}))
	defer src.Close()

	p := New(zaptest.NewLogger(t), &recordingRenderer{}, WithUserAgent("powerplot-test"))
	require.True(t, await(t, p.Render(src.URL, surface.NewMemory())).OK())

	h := <-headers
	assert.Equal(t, "powerplot-test", h.Get("User-Agent"))
	assert.Equal(t, "application/json", h.Get("Accept"))
}

func TestResultChannelClosesAfterResult(t *testing.T) {
	p := New(zaptest.NewLogger(t), &recordingRenderer{})
	results := p.Render(jsonSource(t, wattsPayload).URL, surface.NewMemory())

	await(t, results)
	_, open := <-results
	assert.False(t, open)
}

func TestWaitWithIgnoredResults(t *testing.T) {
	renderer := &recordingRenderer{}
	p := New(zaptest.NewLogger(t), renderer)
	src := jsonSource(t, wattsPayload)

	for i := 0; i < 3; i++ {
		p.Render(src.URL, surface.NewMemory())
	}
	p.Wait()

	assert.Len(t, renderer.Calls(), 3)
}
