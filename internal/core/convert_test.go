package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCoerceNumeric(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
		ok    bool
	}{
		{"integer string", "42", 42, true},
		{"float string", "3.14", 3.14, true},
		{"negative", "-0.5", -0.5, true},
		{"scientific notation", "1e3", 1000, true},
		{"surrounding whitespace", "  7 ", 7, true},
		{"json number", json.Number("12.5"), 12.5, true},
		{"native float", float64(9), 9, true},
		{"text", "abc", 0, false},
		{"number with unit", "42kg", 0, false},
		{"boolean is not numeric", true, 0, false},
		{"empty string", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := coerceNumeric(tt.value)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("coerceNumeric(%v) = %v, %v, want %v, %v", tt.value, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestIsIntegral(t *testing.T) {
	tests := []struct {
		value float64
		want  bool
	}{
		{5, true},
		{5.0, true},
		{-3, true},
		{0, true},
		{5.5, false},
		{-0.1, false},
	}

	for _, tt := range tests {
		if got := isIntegral(tt.value); got != tt.want {
			t.Errorf("isIntegral(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string // yyyy-mm-dd, empty means not a date
	}{
		{"iso date", "2024-01-31", "2024-01-31"},
		{"iso datetime", "2024-01-31 15:04:05", "2024-01-31"},
		{"rfc3339", "2024-01-31T15:04:05Z", "2024-01-31"},
		{"us slash", "1/31/2024", "2024-01-31"},
		{"month name", "Jan 31, 2024", "2024-01-31"},
		{"compact", "20240131", "2024-01-31"},
		{"two digit year below pivot", "1/31/19", "2019-01-31"},
		{"two digit year above pivot", "1/31/85", "1985-01-31"},
		{"not a date", "hello", ""},
		{"bare number is not a date", "42", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.value)
			if tt.want == "" {
				if ok {
					t.Errorf("ParseDate(%q) = %v, want failure", tt.value, got)
				}
				return
			}
			if !ok {
				t.Fatalf("ParseDate(%q) failed", tt.value)
			}
			if got.Format(time.DateOnly) != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.value, got.Format(time.DateOnly), tt.want)
			}
		})
	}
}

func TestIsMissing(t *testing.T) {
	if !isMissing(nil) || !isMissing("") {
		t.Error("nil and empty string should be missing")
	}
	if isMissing(" ") || isMissing("0") || isMissing(0.0) {
		t.Error("whitespace, zero text, and zero values are present")
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{"text", "text"},
		{json.Number("1"), "1"},
		{json.Number("1.0"), "1.0"},
		{float64(2), "2"},
		{float64(2.5), "2.5"},
		{true, "true"},
	}

	for _, tt := range tests {
		if got := valueString(tt.value); got != tt.want {
			t.Errorf("valueString(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
