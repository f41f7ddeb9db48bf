package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Point is one chart sample: X is epoch milliseconds, Y the closing price.
type Point struct {
	X int64   `json:"x"`
	Y float64 `json:"y"`
}

// History is a price series ordered oldest to newest. It holds either bare
// closing values or timestamped points, never both.
type History struct {
	Closes []float64
	Points []Point
}

// Len is the number of samples.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	if h.Points != nil {
		return len(h.Points)
	}
	return len(h.Closes)
}

// MarshalJSON encodes the series as [n, ...] or [{"x":..,"y":..}, ...].
// An empty series encodes as [].
func (h History) MarshalJSON() ([]byte, error) {
	if h.Points != nil {
		return json.Marshal(h.Points)
	}
	if h.Closes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h.Closes)
}

func (h *History) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) < 2 || trimmed[0] != '[' {
		return fmt.Errorf("history: expected array, got %q", trimmed)
	}
	inner := bytes.TrimSpace(trimmed[1:])
	if len(inner) > 0 && inner[0] == '{' {
		h.Closes = nil
		return json.Unmarshal(trimmed, &h.Points)
	}
	h.Points = nil
	if err := json.Unmarshal(trimmed, &h.Closes); err != nil {
		return err
	}
	if h.Closes == nil {
		h.Closes = []float64{}
	}
	return nil
}

// ParsePercent turns upstream percent strings such as "-0.5328%" or
// "(+1.23%)" into a number.
func ParsePercent(s string) (float64, error) {
	v := strings.TrimSpace(s)
	v = strings.TrimPrefix(v, "(")
	v = strings.TrimSuffix(v, ")")
	v = strings.TrimSuffix(strings.TrimSpace(v), "%")
	v = strings.TrimPrefix(v, "+")
	v = strings.ReplaceAll(v, ",", "")
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse percent %q: %w", s, err)
	}
	if !Finite(f) {
		return 0, fmt.Errorf("parse percent %q: %w", s, ErrNotFinite)
	}
	return f, nil
}

// ParseNumber parses upstream numeric strings, tolerating thousands separators
// and a leading plus sign.
func ParseNumber(s string) (float64, error) {
	v := strings.TrimPrefix(strings.TrimSpace(s), "+")
	v = strings.ReplaceAll(v, ",", "")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", s, err)
	}
	if !Finite(f) {
		return 0, fmt.Errorf("parse number %q: %w", s, ErrNotFinite)
	}
	return f, nil
}

// ErrNotFinite reports a NaN or infinite upstream value, which JSON cannot carry.
var ErrNotFinite = errors.New("value is not a finite number")

// Finite reports whether f is neither NaN nor infinite.
func Finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Finite reports whether every value in the series is finite.
func (h *History) Finite() bool {
	if h == nil {
		return true
	}
	for _, c := range h.Closes {
		if !Finite(c) {
			return false
		}
	}
	for _, p := range h.Points {
		if !Finite(p.Y) {
			return false
		}
	}
	return true
}
