package core

import "strings"

// sensitiveKeywords is the fixed denylist of identifying-data fragments.
// A column name containing any of these (case-insensitive) blocks the whole
// upload before a single rule is evaluated, whether or not the schema
// mentions the column.
var sensitiveKeywords = []string{
	"chart_no", "chartno",
	"birth_date", "birthdate", "dob",
	"patient_id", "id_number", "ssn",
	"patient_name", "name",
}

// ScanSensitive returns the column names that match the sensitive-keyword
// denylist, in dataset column order. An empty result means the upload may
// proceed to validation.
func ScanSensitive(columns []string) []string {
	var flagged []string
	for _, col := range columns {
		lower := strings.ToLower(col)
		for _, kw := range sensitiveKeywords {
			if strings.Contains(lower, kw) {
				flagged = append(flagged, col)
				break
			}
		}
	}
	return flagged
}
