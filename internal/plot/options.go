package plot

// TimeMode is the x-axis mode for timestamp data.
const TimeMode = "time"

// LineOptions controls how each series line is drawn.
type LineOptions struct {
	Show      bool    `json:"show"`
	Fill      bool    `json:"fill"`
	LineWidth float64 `json:"lineWidth"`
}

// AxisOptions controls the x axis.
type AxisOptions struct {
	Mode            string `json:"mode"`
	TwelveHourClock bool   `json:"twelveHourClock"`
}

// LegendOptions controls the legend box.
type LegendOptions struct {
	BackgroundOpacity float64 `json:"backgroundOpacity"`
	Columns           int     `json:"noColumns"`
}

// Options is the visual configuration handed to a Renderer. It holds only
// value fields, so copies never share state.
type Options struct {
	Lines  LineOptions   `json:"lines"`
	XAxis  AxisOptions   `json:"xaxis"`
	Legend LegendOptions `json:"legend"`
}

var displayOptions = Options{
	Lines:  LineOptions{Show: true, Fill: false, LineWidth: 1},
	XAxis:  AxisOptions{Mode: TimeMode, TwelveHourClock: false},
	Legend: LegendOptions{BackgroundOpacity: 0, Columns: 2},
}

// DisplayOptions returns the fixed options every chart is rendered with.
func DisplayOptions() Options {
	return displayOptions
}
