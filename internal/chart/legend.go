package chart

import (
	"math"

	"github.com/aaronlmathis/powerplot/internal/plot"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Legend geometry, in pixels.
const (
	legendMargin     = 8
	legendPadding    = 4
	legendSwatch     = 16
	legendSwatchGap  = 4
	legendColumnGap  = 12
	legendRowSpacing = 4
	legendFontSize   = 8.0
)

type legendEntry struct {
	label string
	color Color
	width float64
}

// legendGrid returns the row and column of entry index in a row-major
// grid with the given column count.
func legendGrid(index, columns int) (row, col int) {
	if columns < 1 {
		columns = 1
	}
	return index / columns, index % columns
}

// legendRows returns how many rows n entries occupy.
func legendRows(n, columns int) int {
	if columns < 1 {
		columns = 1
	}
	return (n + columns - 1) / columns
}

// backgroundColor returns the legend fill for an opacity in [0, 1].
func backgroundColor(opacity float64) Color {
	opacity = math.Max(0, math.Min(1, opacity))
	return drawing.ColorWhite.WithAlpha(uint8(math.Round(opacity * 255)))
}

// fitLabel shortens label with a trailing ellipsis until measure reports
// it no wider than maxWidth.
func fitLabel(label string, maxWidth int, measure func(string) int) string {
	if measure(label) <= maxWidth {
		return label
	}
	runes := []rune(label)
	for n := len(runes) - 1; n > 0; n-- {
		if short := string(runes[:n]) + "..."; measure(short) <= maxWidth {
			return short
		}
	}
	return "..."
}

// labelBudget returns the widest label that lets columns cells fit inside
// a canvas of the given width.
func labelBudget(canvasWidth, columns int) int {
	if columns < 1 {
		columns = 1
	}
	fixed := 2*legendMargin + 2*legendPadding + columns*(legendSwatch+legendSwatchGap) + (columns-1)*legendColumnGap
	budget := (canvasWidth - fixed) / columns
	if budget < 0 {
		return 0
	}
	return budget
}

// legendBox anchors a width x height box at the top-right of cb, shifted
// right as needed so its left edge never leaves the canvas.
func legendBox(cb gochart.Box, width, height int) gochart.Box {
	box := gochart.Box{
		Top:   cb.Top + legendMargin,
		Right: cb.Right - legendMargin,
	}
	box.Left = box.Right - width
	if box.Left < cb.Left {
		box.Left = cb.Left
		box.Right = box.Left + width
	}
	box.Bottom = box.Top + height
	return box
}

func legendEntries(c *gochart.Chart) []legendEntry {
	var entries []legendEntry
	for _, s := range c.Series {
		st := s.GetStyle()
		if s.GetName() == "" || st.Hidden {
			continue
		}
		entries = append(entries, legendEntry{label: s.GetName(), color: st.StrokeColor, width: st.StrokeWidth})
	}
	return entries
}

// legend draws labeled series swatches in the top-right corner of the plot,
// laid out in opts.Columns columns over a background of opts.BackgroundOpacity.
func legend(c *gochart.Chart, opts plot.LegendOptions) gochart.Renderable {
	return func(r gochart.Renderer, cb gochart.Box, defaults gochart.Style) {
		entries := legendEntries(c)
		if len(entries) == 0 {
			return
		}
		columns := opts.Columns
		if columns < 1 {
			columns = 1
		}
		if columns > len(entries) {
			columns = len(entries)
		}

		textStyle := gochart.Style{FontSize: legendFontSize, FontColor: gochart.DefaultTextColor}.InheritFrom(defaults)
		r.SetFont(textStyle.GetFont())
		r.SetFontSize(textStyle.GetFontSize())

		measure := func(s string) int { return r.MeasureText(s).Width() }
		budget := labelBudget(cb.Width(), columns)

		labelWidth, textHeight := 0, 0
		for i := range entries {
			entries[i].label = fitLabel(entries[i].label, budget, measure)
			tb := r.MeasureText(entries[i].label)
			if tb.Width() > labelWidth {
				labelWidth = tb.Width()
			}
			if tb.Height() > textHeight {
				textHeight = tb.Height()
			}
		}

		cellWidth := legendSwatch + legendSwatchGap + labelWidth
		rowHeight := textHeight + legendRowSpacing
		rows := legendRows(len(entries), columns)

		width := columns*cellWidth + (columns-1)*legendColumnGap + 2*legendPadding
		height := rows*rowHeight + 2*legendPadding
		box := legendBox(cb, width, height)

		if bg := backgroundColor(opts.BackgroundOpacity); bg.A > 0 {
			r.SetFillColor(bg)
			r.MoveTo(box.Left, box.Top)
			r.LineTo(box.Right, box.Top)
			r.LineTo(box.Right, box.Bottom)
			r.LineTo(box.Left, box.Bottom)
			r.Close()
			r.Fill()
		}

		for i, e := range entries {
			row, col := legendGrid(i, columns)
			x := box.Left + legendPadding + col*(cellWidth+legendColumnGap)
			y := box.Top + legendPadding + row*rowHeight

			midY := y + textHeight/2
			r.SetStrokeColor(e.color)
			r.SetStrokeWidth(math.Max(e.width, 1) + 1)
			r.MoveTo(x, midY)
			r.LineTo(x+legendSwatch, midY)
			r.Stroke()

			r.SetFontColor(textStyle.GetFontColor())
			r.Text(e.label, x+legendSwatch+legendSwatchGap, y+textHeight)
		}
	}
}
