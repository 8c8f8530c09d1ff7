package report

import (
	"math"
	"strconv"
	"strings"
)

// Coercer converts a raw cell to a float. The boolean is false when the cell
// cannot be interpreted; coercion never aborts processing, the caller emits
// NaN for that cell instead.
type Coercer func(raw string) (float64, bool)

// DefaultCoercer parses numbers out of mined report cells, tolerating stray
// whitespace, percent signs, thousands separators, and trailing unit
// suffixes such as "mm" or "cGy". Delta4-style "98.4%" therefore coerces
// the same as "98.4".
func DefaultCoercer(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return math.NaN(), false
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}

	// Strip a trailing unit suffix: keep the longest numeric prefix.
	end := 0
	for i := range s {
		if _, err := strconv.ParseFloat(s[:i+1], 64); err == nil {
			end = i + 1
		}
	}
	if end == 0 {
		return math.NaN(), false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return math.NaN(), false
	}
	return f, true
}

// StrictCoercer accepts only plain numeric cells.
func StrictCoercer(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.NaN(), false
	}
	return f, true
}

// IsNumeric reports whether the default coercer can interpret the value.
func IsNumeric(raw string) bool {
	_, ok := DefaultCoercer(raw)
	return ok
}

// NormalizeNumeric collapses numerically equal strings to one canonical
// form, so "5" and "5.0" produce the same criteria signature. Non-numeric
// values pass through trimmed.
func NormalizeNumeric(raw string) string {
	s := strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return s
}
