package analysis

import (
	"math"
	"strconv"
	"strings"
)

// PlaceholderEmoji is shown whenever no glyph can be recovered from a turn.
const PlaceholderEmoji = "🎭"

// Result is the canonical normalized form of one analysis turn. Text fields
// use the empty string for absence; numeric fields use nil.
type Result struct {
	Transcript string
	Analysis   string
	Sentiment  string
	Emotion    string
	Emoji      string
	Confidence *float64
	Color      string
	Speed      *float64
	Smooth     *float64
}

// Usable reports whether the result carries enough content to present.
func (r *Result) Usable() bool {
	return r != nil && (r.Transcript != "" || r.Analysis != "")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// floatValue coerces a JSON value (number or numeric string) to a finite
// float. Anything else is absent.
func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func clampedFloat(v any, lo, hi float64) *float64 {
	f, ok := floatValue(v)
	if !ok {
		return nil
	}
	f = clamp(f, lo, hi)
	return &f
}

// normalizeColor strips a 0x/0X prefix and guarantees a leading #.
func normalizeColor(raw string) string {
	c := strings.TrimSpace(raw)
	if c == "" {
		return ""
	}
	if strings.HasPrefix(c, "0x") || strings.HasPrefix(c, "0X") {
		c = c[2:]
	}
	if !strings.HasPrefix(c, "#") {
		c = "#" + c
	}
	return c
}
