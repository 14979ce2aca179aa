package plot

import "time"

// Outcome is how a render call ended.
type Outcome int

const (
	Rendered     Outcome = iota // payload fetched and drawn
	FetchFailed                 // transport error or non-200 status
	ParseFailed                 // body was not valid JSON
	RenderFailed                // renderer rejected the payload or failed to draw
)

// String returns the outcome as used in logs and metric labels
func (o Outcome) String() string {
	switch o {
	case Rendered:
		return "rendered"
	case FetchFailed:
		return "fetch_failed"
	case ParseFailed:
		return "parse_failed"
	case RenderFailed:
		return "render_failed"
	default:
		return "unknown"
	}
}

// Result reports how a single render call finished.
type Result struct {
	ID       string
	Locator  string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// OK reports whether the chart was drawn.
func (r Result) OK() bool {
	return r.Outcome == Rendered
}
