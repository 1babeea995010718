package core

// schema.go parses the project-owned schema structure into typed column
// rules. Rule definitions arrive as JSON from the PI's schema editor; the
// shape is checked once here, at schema-creation time, so the validation
// engine never sees a malformed rule.

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Type labels a column rule may declare.
const (
	TypeString   = "string"
	TypeInt      = "int"
	TypeInteger  = "integer"
	TypeFloat    = "float"
	TypeDatetime = "datetime"
	TypeDate     = "date"
	TypeAny      = "any"
)

var validTypeLabels = map[string]bool{
	TypeString:   true,
	TypeInt:      true,
	TypeInteger:  true,
	TypeFloat:    true,
	TypeDatetime: true,
	TypeDate:     true,
	TypeAny:      true,
}

// ColumnRule is the validation contract for one named column.
type ColumnRule struct {
	Name     string
	Required bool

	// Types holds the acceptable type labels in declared order. Defaults to
	// just "string" when the rule omits a type.
	Types []string

	// DeclaredScalar is the literal type label when the rule declared a
	// single one (or the "string" default). Empty when the rule declared a
	// list. Range checks only apply to scalar numeric declarations.
	DeclaredScalar string

	Min *float64
	Max *float64

	// AllowedValues holds the string forms of the declared scalars;
	// comparisons are exact and case-sensitive.
	AllowedValues []string

	// Format is a pattern matched against a prefix of each value's string
	// form. HasFormat distinguishes an absent rule from an empty pattern.
	Format    string
	HasFormat bool
}

// numericDeclared reports whether range bounds apply to this rule.
func (r ColumnRule) numericDeclared() bool {
	switch r.DeclaredScalar {
	case TypeInt, TypeInteger, TypeFloat:
		return true
	}
	return false
}

// recognized column rule option keys.
var ruleOptionKeys = map[string]bool{
	"name":           true,
	"required":       true,
	"type":           true,
	"min":            true,
	"max":            true,
	"allowed_values": true,
	"format":         true,
}

// ParseStructure validates a schema structure document and returns its
// ordered column rules. Any shape problem yields a KindInvalidStructure
// error naming the offending entry.
func ParseStructure(raw json.RawMessage) ([]ColumnRule, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, Errf(KindInvalidStructure, "schema structure must be a JSON object")
	}

	colsRaw, ok := top["columns"]
	if !ok {
		return nil, Errf(KindInvalidStructure, `schema structure is missing the "columns" list`)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(colsRaw, &entries); err != nil {
		return nil, Errf(KindInvalidStructure, `"columns" must be a list of column definitions`)
	}

	rules := make([]ColumnRule, 0, len(entries))
	for i, entry := range entries {
		rule, err := parseColumnRule(entry)
		if err != nil {
			return nil, Errf(KindInvalidStructure, "column %d: %v", i+1, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseColumnRule(entry json.RawMessage) (ColumnRule, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil {
		return ColumnRule{}, fmt.Errorf("definition must be a JSON object")
	}

	for key := range fields {
		if !ruleOptionKeys[key] {
			return ColumnRule{}, fmt.Errorf("unrecognized option %q", key)
		}
	}

	rule := ColumnRule{}

	nameRaw, ok := fields["name"]
	if !ok {
		return ColumnRule{}, fmt.Errorf(`missing required option "name"`)
	}
	if err := json.Unmarshal(nameRaw, &rule.Name); err != nil || rule.Name == "" {
		return ColumnRule{}, fmt.Errorf(`"name" must be a non-empty string`)
	}

	if raw, ok := fields["required"]; ok {
		if err := json.Unmarshal(raw, &rule.Required); err != nil {
			return ColumnRule{}, fmt.Errorf(`"required" must be a boolean`)
		}
	}

	types, scalar, err := parseTypeOption(fields["type"])
	if err != nil {
		return ColumnRule{}, err
	}
	rule.Types = types
	rule.DeclaredScalar = scalar

	if rule.Min, err = parseBound(fields["min"], "min"); err != nil {
		return ColumnRule{}, err
	}
	if rule.Max, err = parseBound(fields["max"], "max"); err != nil {
		return ColumnRule{}, err
	}

	if raw, ok := fields["allowed_values"]; ok {
		values, err := parseAllowedValues(raw)
		if err != nil {
			return ColumnRule{}, err
		}
		rule.AllowedValues = values
	}

	if raw, ok := fields["format"]; ok {
		if err := json.Unmarshal(raw, &rule.Format); err != nil {
			return ColumnRule{}, fmt.Errorf(`"format" must be a string pattern`)
		}
		rule.HasFormat = true
	}

	return rule, nil
}

// parseTypeOption normalizes the polymorphic "type" option. A missing
// option defaults to the scalar "string"; a list keeps its declared order.
func parseTypeOption(raw json.RawMessage) (types []string, scalar string, err error) {
	if raw == nil {
		return []string{TypeString}, TypeString, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if !validTypeLabels[single] {
			return nil, "", fmt.Errorf("unknown type label %q", single)
		}
		return []string{single}, single, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, "", fmt.Errorf(`"type" must be a type label or a list of labels`)
	}
	if len(list) == 0 {
		return nil, "", fmt.Errorf(`"type" list must not be empty`)
	}
	for _, label := range list {
		if !validTypeLabels[label] {
			return nil, "", fmt.Errorf("unknown type label %q", label)
		}
	}
	return list, "", nil
}

func parseBound(raw json.RawMessage, option string) (*float64, error) {
	if raw == nil {
		return nil, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%q must be a number", option)
	}
	return &v, nil
}

// parseAllowedValues keeps the literal text of numeric members ("1" stays
// "1", "1.0" stays "1.0") so enum comparison matches what the PI typed.
func parseAllowedValues(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var list []any
	if err := dec.Decode(&list); err != nil {
		return nil, fmt.Errorf(`"allowed_values" must be a list of scalars`)
	}

	values := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := scalarString(v)
		if !ok {
			return nil, fmt.Errorf(`"allowed_values" entries must be strings, numbers, or booleans`)
		}
		values = append(values, s)
	}
	return values, nil
}
