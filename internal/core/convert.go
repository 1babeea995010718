package core

// convert.go provides scalar coercion for the validation engine: string
// forms, numeric coercion, and permissive date parsing. Cell values come in
// as strings from CSV/XLSX parsing, but JSON round-trips through storage can
// surface json.Number, float64, bool, or nil, so every helper accepts the
// full scalar set.

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// fourDigitYearLayouts are tried first by ParseDate; they are unambiguous
// and need no century adjustment.
var fourDigitYearLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02", "2006/01/02", "2006.01.02",
	"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
	"Jan 2, 2006", "2 Jan 2006",
	"20060102",
}

// twoDigitYearLayouts require pivot adjustment; see TwoDigitYearPivot.
var twoDigitYearLayouts = []string{
	"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
}

// TwoDigitYearPivot defines how 2-digit years are interpreted. Years that
// would land more than this many years in the future are assumed to be in
// the previous century.
var TwoDigitYearPivot = 20

// isMissing reports whether a cell counts as absent. Empty strings come
// from blank CSV cells; nils come from JSON null round-trips.
func isMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}

// scalarString renders a scalar (string, number, bool) for exact
// comparison. The second return is false for non-scalar shapes.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// valueString renders a cell value for enum and format comparison.
func valueString(v any) string {
	if s, ok := scalarString(v); ok {
		return s
	}
	return ""
}

// coerceNumeric converts a cell value to float64. Strings are trimmed but
// otherwise parsed strictly: no currency symbols, no thousands separators.
func coerceNumeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		// Booleans and anything non-scalar are not numbers here.
		return 0, false
	}
}

// isIntegral reports whether a coerced numeric value carries no fractional
// remainder.
func isIntegral(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f)
}

// ParseDate parses a cell value as a calendar date or timestamp using a
// permissive multi-layout strategy. Two-digit years beyond the pivot are
// pushed back a century.
func ParseDate(v any) (time.Time, bool) {
	s := strings.TrimSpace(valueString(v))
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() > pivotYear {
			t = t.AddDate(-100, 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}

// coerceDate reports whether a cell value parses as a date at all.
func coerceDate(v any) bool {
	_, ok := ParseDate(v)
	return ok
}

// Exported views of the coercion helpers for collaborators that summarize
// datasets (profiling) and must agree with the engine on what a cell means.

// IsMissingValue reports whether a cell counts as absent.
func IsMissingValue(v any) bool { return isMissing(v) }

// ValueText renders a cell value the way enum and format checks see it.
func ValueText(v any) string { return valueString(v) }

// NumericValue coerces a cell value to float64 under the engine's rules.
func NumericValue(v any) (float64, bool) { return coerceNumeric(v) }
