package chart

import (
	"regexp"
	"strings"

	"github.com/aaronlmathis/powerplot/internal/timeseries"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Color is a go-chart drawing color.
type Color = drawing.Color

// fillAlpha is the opacity used under a filled line.
const fillAlpha = 96

// flot's default series colors, in assignment order.
var defaultPalette = []Color{
	drawing.ColorFromHex("edc240"),
	drawing.ColorFromHex("afd8f8"),
	drawing.ColorFromHex("cb4b4b"),
	drawing.ColorFromHex("4da74d"),
	drawing.ColorFromHex("9440ed"),
}

var hexColor = regexp.MustCompile(`^#?([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// seriesColor returns the color a series asked for, or the palette entry
// for its position.
func seriesColor(s timeseries.Series, index int) Color {
	if hexColor.MatchString(s.Color) {
		return drawing.ColorFromHex(strings.TrimPrefix(s.Color, "#"))
	}
	return defaultPalette[index%len(defaultPalette)]
}
