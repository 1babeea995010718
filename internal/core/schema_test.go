package core

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func mustParse(t *testing.T, structure string) []ColumnRule {
	t.Helper()
	rules, err := ParseStructure(json.RawMessage(structure))
	if err != nil {
		t.Fatalf("ParseStructure: %v", err)
	}
	return rules
}

func TestParseStructure(t *testing.T) {
	rules := mustParse(t, `{"columns": [
		{"name": "age", "required": true, "type": "int", "min": 0, "max": 120},
		{"name": "sex", "type": "string", "allowed_values": ["M", "F"]},
		{"name": "note"},
		{"name": "score", "type": ["int", "float"]},
		{"name": "code", "type": "string", "format": "[A-Z]{2}\\d+"}
	]}`)

	if len(rules) != 5 {
		t.Fatalf("got %d rules, want 5", len(rules))
	}

	age := rules[0]
	if !age.Required || age.DeclaredScalar != TypeInt {
		t.Errorf("age = %+v", age)
	}
	if age.Min == nil || *age.Min != 0 || age.Max == nil || *age.Max != 120 {
		t.Errorf("age bounds = %v, %v", age.Min, age.Max)
	}

	if got := rules[1].AllowedValues; !reflect.DeepEqual(got, []string{"M", "F"}) {
		t.Errorf("sex.AllowedValues = %v", got)
	}
	if rules[1].Required {
		t.Error("sex.Required = true, want default false")
	}

	// Omitted type defaults to string.
	note := rules[2]
	if !reflect.DeepEqual(note.Types, []string{TypeString}) || note.DeclaredScalar != TypeString {
		t.Errorf("note = %+v", note)
	}

	// A list declaration keeps the candidates but has no declared scalar.
	score := rules[3]
	if !reflect.DeepEqual(score.Types, []string{TypeInt, TypeFloat}) {
		t.Errorf("score.Types = %v", score.Types)
	}
	if score.DeclaredScalar != "" {
		t.Errorf("score.DeclaredScalar = %q, want empty", score.DeclaredScalar)
	}

	code := rules[4]
	if !code.HasFormat || code.Format != `[A-Z]{2}\d+` {
		t.Errorf("code = %+v", code)
	}
}

func TestParseStructureNumericAllowedValues(t *testing.T) {
	rules := mustParse(t, `{"columns": [
		{"name": "grade", "type": "int", "allowed_values": [1, 2, 3.5]}
	]}`)

	// Numeric literals keep their written form for string comparison.
	want := []string{"1", "2", "3.5"}
	if got := rules[0].AllowedValues; !reflect.DeepEqual(got, want) {
		t.Errorf("AllowedValues = %v, want %v", got, want)
	}
}

func TestParseStructureErrors(t *testing.T) {
	tests := []struct {
		name      string
		structure string
		substr    string
	}{
		{"not an object", `[1, 2]`, "object"},
		{"missing columns key", `{"fields": []}`, "columns"},
		{"columns not a list", `{"columns": {"name": "a"}}`, "columns"},
		{"column without name", `{"columns": [{"type": "int"}]}`, "column 1"},
		{"unknown type label", `{"columns": [{"name": "a", "type": "decimal"}]}`, "column 1"},
		{"unknown option key", `{"columns": [{"name": "a", "regex": ".*"}]}`, "column 1"},
		{"non-numeric bound", `{"columns": [{"name": "a", "type": "int", "min": "low"}]}`, "column 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStructure(json.RawMessage(tt.structure))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !IsKind(err, KindInvalidStructure) {
				t.Errorf("kind = %v, want KindInvalidStructure", KindOf(err))
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("error %q does not contain %q", err, tt.substr)
			}
		})
	}
}
