package chart

import (
	"math"
	"strconv"
	"time"

	"github.com/aaronlmathis/powerplot/internal/plot"
	"github.com/aaronlmathis/powerplot/internal/timeseries"
	gochart "github.com/wcharczuk/go-chart/v2"
)

// xAxis builds a time axis spanning the data. A single timestamp is
// widened by a minute each side so go-chart gets a non-zero range.
func xAxis(b timeseries.Bounds, opts plot.AxisOptions) gochart.XAxis {
	minT, maxT := b.MinT, b.MaxT
	if !maxT.After(minT) {
		minT = minT.Add(-time.Minute)
		maxT = maxT.Add(time.Minute)
	}

	formatter := millisFormatter
	if opts.Mode == plot.TimeMode {
		formatter = timeFormatter(tickLayout(maxT.Sub(minT), opts.TwelveHourClock))
	}

	return gochart.XAxis{
		ValueFormatter: formatter,
		Range: &gochart.ContinuousRange{
			Min: gochart.TimeToFloat64(minT),
			Max: gochart.TimeToFloat64(maxT),
		},
	}
}

// yAxis builds a value axis spanning the data; flat data gets padding.
func yAxis(b timeseries.Bounds) gochart.YAxis {
	minV, maxV := b.MinV, b.MaxV
	if maxV <= minV {
		pad := math.Max(math.Abs(minV)*0.1, 1)
		minV -= pad
		maxV += pad
	}
	return gochart.YAxis{
		Range: &gochart.ContinuousRange{Min: minV, Max: maxV},
	}
}

// tickLayout picks a time layout for the visible span.
func tickLayout(span time.Duration, twelveHour bool) string {
	switch {
	case span > 30*24*time.Hour:
		return "Jan 2"
	case span > 24*time.Hour:
		if twelveHour {
			return "Jan 2 3:04 PM"
		}
		return "Jan 2 15:04"
	default:
		if twelveHour {
			return "3:04 PM"
		}
		return "15:04"
	}
}

// timeFormatter formats axis values, which go-chart passes as UnixNano
// floats, in UTC.
func timeFormatter(layout string) gochart.ValueFormatter {
	return func(v interface{}) string {
		switch typed := v.(type) {
		case time.Time:
			return typed.UTC().Format(layout)
		case float64:
			return time.Unix(0, int64(typed)).UTC().Format(layout)
		case int64:
			return time.Unix(0, typed).UTC().Format(layout)
		}
		return ""
	}
}

// millisFormatter prints raw epoch milliseconds for non-time axes.
func millisFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f/float64(time.Millisecond), 'f', -1, 64)
	}
	return ""
}
