package core

import "fmt"

// reportBuilder accumulates validation findings in evaluation order. The
// engine appends per rule, per check, so the finished report reads in schema
// declaration order with existence, type, range, allowed-values, and format
// findings grouped per column.
type reportBuilder struct {
	errors   []string
	warnings []string
}

func newReportBuilder() *reportBuilder {
	return &reportBuilder{
		errors:   []string{},
		warnings: []string{},
	}
}

func (b *reportBuilder) addErrorf(format string, args ...any) {
	b.errors = append(b.errors, fmt.Sprintf(format, args...))
}

func (b *reportBuilder) addWarningf(format string, args ...any) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

// build finalizes the report with the run's stats. Stats are filled whether
// or not the dataset passed.
func (b *reportBuilder) build(stats ReportStats) ValidationReport {
	return ValidationReport{
		Errors:   b.errors,
		Warnings: b.warnings,
		Stats:    stats,
	}
}
