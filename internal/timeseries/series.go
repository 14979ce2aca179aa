package timeseries

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Series is one labeled line in a flot payload.
type Series struct {
	Label  string  `json:"label,omitempty"`
	Color  string  `json:"color,omitempty"`
	Points []Point `json:"data"`
}

// Collection is an ordered list of series as served by a flot endpoint.
type Collection []Series

// Bounds describes the extent of a collection's points.
type Bounds struct {
	MinT, MaxT time.Time
	MinV, MaxV float64
}

// flotSeries is the object form of a flot series.
type flotSeries struct {
	Label string            `json:"label"`
	Color json.RawMessage   `json:"color"`
	Data  []json.RawMessage `json:"data"`
}

// UnmarshalJSON accepts both flot forms: a bare array of [x, y] pairs, or
// an object with label, color and data.
func (s *Series) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty series")
	}

	var fs flotSeries
	switch trimmed[0] {
	case 'n':
		if string(trimmed) == "null" {
			return nil
		}
		return fmt.Errorf("invalid series: expected array or object")
	case '[':
		if err := json.Unmarshal(trimmed, &fs.Data); err != nil {
			return fmt.Errorf("invalid series data: %w", err)
		}
	case '{':
		if err := json.Unmarshal(trimmed, &fs); err != nil {
			return fmt.Errorf("invalid series object: %w", err)
		}
	default:
		return fmt.Errorf("invalid series: expected array or object")
	}

	points := make([]Point, 0, len(fs.Data))
	for _, raw := range fs.Data {
		p, ok, err := decodePoint(raw)
		if err != nil {
			return err
		}
		if ok {
			points = append(points, p)
		}
	}

	*s = Series{Label: fs.Label, Points: points}

	// flot allows numeric palette indexes for color; only CSS strings are kept
	var color string
	if len(fs.Color) > 0 && json.Unmarshal(fs.Color, &color) == nil {
		s.Color = color
	}
	return nil
}

// DecodeFlot parses a flot series payload.
func DecodeFlot(data []byte) (Collection, error) {
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode flot payload: %w", err)
	}
	return c, nil
}

// Len returns the total number of points across all series.
func (c Collection) Len() int {
	n := 0
	for _, s := range c {
		n += len(s.Points)
	}
	return n
}

// Bounds returns the time and value extents of all points. ok is false
// when the collection has no points.
func (c Collection) Bounds() (b Bounds, ok bool) {
	b.MinV = math.Inf(1)
	b.MaxV = math.Inf(-1)
	for _, s := range c {
		for _, p := range s.Points {
			if !ok || p.T.Before(b.MinT) {
				b.MinT = p.T
			}
			if !ok || p.T.After(b.MaxT) {
				b.MaxT = p.T
			}
			b.MinV = math.Min(b.MinV, p.V)
			b.MaxV = math.Max(b.MaxV, p.V)
			ok = true
		}
	}
	if !ok {
		return Bounds{}, false
	}
	return b, true
}
