package core

// validate.go is the validation engine: a pure, single-pass evaluation of a
// dataset against one schema version's ordered rules. Checks run per rule in
// the fixed order existence, type, range, allowed-values, format, and no
// column's failure suppresses evaluation of later columns.
//
// Two behaviors are intentional and pinned by tests:
//   - range checks apply only when the rule declared a single numeric type
//     label (a list declaration never triggers them), and are skipped when
//     the type check failed;
//   - formats match a prefix of each value, not the whole string, and the
//     allowed-values and format checks run regardless of the type outcome.

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	maxInvalidValueSamples = 5
	maxFormatSamples       = 3
)

// Validate evaluates a dataset against the ordered rule list and returns
// the full report. Callers decide pass/fail via report.IsValid().
func Validate(dataset Dataset, rules []ColumnRule) ValidationReport {
	b := newReportBuilder()

	present := make(map[string]bool, len(dataset.Columns))
	for _, col := range dataset.Columns {
		present[col] = true
	}

	for _, rule := range rules {
		validateRule(b, dataset, rule, present[rule.Name])
	}

	return b.build(ReportStats{
		ColumnsValidated: len(rules),
		ColumnsInFile:    len(present),
		Rows:             len(dataset.Rows),
	})
}

func validateRule(b *reportBuilder, dataset Dataset, rule ColumnRule, exists bool) {
	// 1. Existence.
	if !exists {
		if rule.Required {
			b.addErrorf("missing required column: %s", rule.Name)
		}
		return
	}

	values := collectValues(dataset.Rows, rule.Name)
	if len(values) == 0 {
		// A fully-empty column never produces an error.
		return
	}

	// 2. Type.
	typeOK := checkType(b, rule, values)

	// 3. Range. Gated on the declared scalar type being numeric, and skipped
	// once the type check has already reported the column.
	if typeOK && rule.numericDeclared() && (rule.Min != nil || rule.Max != nil) {
		checkRange(b, rule, values)
	}

	// 4. Allowed values, independent of the type outcome.
	if len(rule.AllowedValues) > 0 {
		checkAllowedValues(b, rule, values)
	}

	// 5. Format, independent of everything above.
	if rule.HasFormat {
		checkFormat(b, rule, values)
	}
}

// collectValues gathers the non-missing cells for one column in row order.
func collectValues(rows []Row, column string) []any {
	var values []any
	for _, row := range rows {
		v, ok := row[column]
		if !ok || isMissing(v) {
			continue
		}
		values = append(values, v)
	}
	return values
}

// checkType tries each declared candidate in order until one validates over
// every value. Returns false after emitting an error when none does.
func checkType(b *reportBuilder, rule ColumnRule, values []any) bool {
	for _, label := range rule.Types {
		if label == TypeAny || label == TypeString {
			return true
		}
	}

	var attempted []string
	for _, label := range rule.Types {
		switch label {
		case TypeInt, TypeInteger:
			numeric, integral := numericProfile(values)
			if numeric && integral {
				return true
			}
			// Numeric values with a fractional part fail the candidate
			// without contributing a label; the message then falls back
			// to the declared labels.
			if !numeric {
				attempted = append(attempted, "integer")
			}
		case TypeFloat:
			if allNumeric(values) {
				return true
			}
			attempted = append(attempted, "numeric")
		case TypeDatetime, TypeDate:
			if allDates(values) {
				return true
			}
			attempted = append(attempted, "date")
		}
	}

	expected := strings.Join(attempted, "/")
	if expected == "" {
		expected = strings.Join(rule.Types, "/")
	}
	b.addErrorf("column %s has invalid type (expected: %s)", rule.Name, expected)
	return false
}

func allNumeric(values []any) bool {
	for _, v := range values {
		if _, ok := coerceNumeric(v); !ok {
			return false
		}
	}
	return true
}

// numericProfile reports whether every value coerces to a number, and when
// so, whether every coerced value is integral.
func numericProfile(values []any) (numeric, integral bool) {
	integral = true
	for _, v := range values {
		f, ok := coerceNumeric(v)
		if !ok {
			return false, false
		}
		if !isIntegral(f) {
			integral = false
		}
	}
	return true, integral
}

func allDates(values []any) bool {
	for _, v := range values {
		if !coerceDate(v) {
			return false
		}
	}
	return true
}

// checkRange counts values strictly outside each configured bound. Values
// that fail numeric coercion are excluded; the type check already reported
// them.
func checkRange(b *reportBuilder, rule ColumnRule, values []any) {
	var below, above int
	for _, v := range values {
		f, ok := coerceNumeric(v)
		if !ok {
			continue
		}
		if rule.Min != nil && f < *rule.Min {
			below++
		}
		if rule.Max != nil && f > *rule.Max {
			above++
		}
	}

	if rule.Min != nil && below > 0 {
		b.addErrorf("column %s has %d value(s) below minimum %s", rule.Name, below, formatBound(*rule.Min))
	}
	if rule.Max != nil && above > 0 {
		b.addErrorf("column %s has %d value(s) above maximum %s", rule.Name, above, formatBound(*rule.Max))
	}
}

// checkAllowedValues compares string forms exactly and case-sensitively,
// reporting up to maxInvalidValueSamples distinct offenders in first-seen
// order.
func checkAllowedValues(b *reportBuilder, rule ColumnRule, values []any) {
	allowed := make(map[string]bool, len(rule.AllowedValues))
	for _, v := range rule.AllowedValues {
		allowed[v] = true
	}

	seen := make(map[string]bool)
	var invalid []string
	var invalidCount int
	for _, v := range values {
		s := valueString(v)
		if allowed[s] {
			continue
		}
		invalidCount++
		if !seen[s] && len(invalid) < maxInvalidValueSamples {
			seen[s] = true
			invalid = append(invalid, s)
		}
	}

	if invalidCount > 0 {
		b.addErrorf("column %s contains invalid values: [%s] (allowed values: [%s])",
			rule.Name, strings.Join(invalid, ", "), strings.Join(rule.AllowedValues, ", "))
	}
}

// checkFormat matches the pattern against the start of each value's string
// form. A pattern that does not compile downgrades to a warning and aborts
// only this check.
func checkFormat(b *reportBuilder, rule ColumnRule, values []any) {
	re, err := compilePrefixPattern(rule.Format)
	if err != nil {
		b.addWarningf("column %s has an invalid format pattern: %s", rule.Name, rule.Format)
		return
	}

	var count int
	var samples []string
	for _, v := range values {
		s := valueString(v)
		if re.MatchString(s) {
			continue
		}
		count++
		if len(samples) < maxFormatSamples {
			samples = append(samples, s)
		}
	}

	if count > 0 {
		b.addErrorf("column %s has %d value(s) not matching format (pattern: %s, examples: [%s])",
			rule.Name, count, rule.Format, strings.Join(samples, ", "))
	}
}

// compilePrefixPattern anchors the pattern at the start of the input only.
// Trailing characters after a matching prefix are accepted.
func compilePrefixPattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`\A(?:` + pattern + `)`)
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ComputeFileStats derives the diagnostic file-level figures shown to
// uploaders. sizeBytes is the raw upload size before parsing.
func ComputeFileStats(dataset Dataset, sizeBytes int64) FileStats {
	names := make([]string, len(dataset.Columns))
	copy(names, dataset.Columns)
	return FileStats{
		FileSizeBytes: sizeBytes,
		FileSizeKB:    roundTo(float64(sizeBytes)/1024, 2),
		RowCount:      len(dataset.Rows),
		ColumnCount:   len(dataset.Columns),
		ColumnNames:   names,
	}
}

func roundTo(f float64, places int) float64 {
	shift := 1.0
	for i := 0; i < places; i++ {
		shift *= 10
	}
	return float64(int64(f*shift+0.5)) / shift
}
