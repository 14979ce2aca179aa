package timeseries

import (
	"encoding/json"
	"fmt"
	"time"
)

// Point represents a single time-series data point
type Point struct {
	T time.Time `json:"t"` // Timestamp
	V float64   `json:"v"` // Value
}

// NewPoint creates a new Point with the given timestamp and value
func NewPoint(t time.Time, v float64) Point {
	return Point{T: t, V: v}
}

// decodePoint decodes one flot data entry. ok is false for gaps: a null
// entry, or a pair with a null coordinate.
func decodePoint(raw json.RawMessage) (p Point, ok bool, err error) {
	var pair []*float64
	if err := json.Unmarshal(raw, &pair); err != nil {
		return Point{}, false, fmt.Errorf("invalid point %s: %w", string(raw), err)
	}
	if pair == nil {
		return Point{}, false, nil
	}
	if len(pair) < 2 {
		return Point{}, false, fmt.Errorf("invalid point %s: expected [x, y]", string(raw))
	}
	if pair[0] == nil || pair[1] == nil {
		return Point{}, false, nil
	}
	return NewPoint(time.UnixMilli(int64(*pair[0])).UTC(), *pair[1]), true, nil
}
