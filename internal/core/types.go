// Package core provides the business logic for multi-center submission intake:
// schema versioning, sensitive-field screening, dataset validation, and the
// accept/reject ledger. This package has no HTTP dependencies and can be
// driven by any transport.
package core

import (
	"encoding/json"
	"time"
)

// Row is a single dataset record mapping column name to a scalar value.
// Values are strings when parsed from CSV/XLSX; JSON round-trips may yield
// json.Number, bool, or nil.
type Row map[string]any

// Dataset is an already-parsed tabular file: the ordered column names as
// they appeared in the file, plus the ordered data rows.
type Dataset struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// RowCount returns the number of data rows.
func (d Dataset) RowCount() int { return len(d.Rows) }

// Project is the top-level scope owning one schema lineage and the
// submissions from its contributing centers.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// DownloadPassword gates the merged export. Empty means open download.
	// Never serialized to clients.
	DownloadPassword string `json:"-"`

	// Schemas holds the project's schema versions when loaded via GetProject.
	Schemas []Schema `json:"schemas,omitempty"`
}

// Schema is one immutable, versioned column rule set for a project.
// Structure keeps the exact JSON the PI submitted so reads round-trip
// byte-for-byte; ParseStructure derives the typed rules from it.
type Schema struct {
	ID        int64           `json:"id"`
	ProjectID int64           `json:"project_id"`
	Version   int             `json:"version"`
	Structure json.RawMessage `json:"structure"`
	CreatedAt time.Time       `json:"created_at"`
}

// Submission statuses. Pending is a transient default that is never
// persisted: the ledger only writes once the outcome is known.
const (
	StatusValidated = "validated"
	StatusRejected  = "rejected"
)

// Submission is the single active upload for a (project, center) pair.
type Submission struct {
	ID           int64            `json:"id"`
	ProjectID    int64            `json:"project_id"`
	CenterName   string           `json:"center_name"`
	UploaderName string           `json:"uploader_name,omitempty"`
	Filename     string           `json:"filename"`
	UploadDate   time.Time        `json:"upload_date"`
	Status       string           `json:"status"`
	Report       ValidationReport `json:"validation_report"`

	// Data is the accepted dataset. Omitted from listings; populated for
	// export.
	Data *Dataset `json:"data,omitempty"`
}

// ReportStats summarizes a validation pass independent of its outcome.
type ReportStats struct {
	ColumnsValidated int `json:"columns_validated"`
	ColumnsInFile    int `json:"columns_in_file"`
	Rows             int `json:"rows"`
}

// ValidationReport is the structured outcome of validating a dataset
// against a schema. Message ordering is deterministic: schema column
// declaration order, then existence, type, range, allowed-values, format.
type ValidationReport struct {
	Errors   []string    `json:"errors"`
	Warnings []string    `json:"warnings"`
	Stats    ReportStats `json:"stats"`
}

// IsValid reports whether the dataset passed validation. Warnings alone
// never fail a submission.
func (r ValidationReport) IsValid() bool { return len(r.Errors) == 0 }

// FileStats carries file-level figures computed before validation. They are
// orthogonal to pass/fail and shown to uploaders for diagnostics.
type FileStats struct {
	FileSizeBytes int64    `json:"file_size_bytes"`
	FileSizeKB    float64  `json:"file_size_kb"`
	RowCount      int      `json:"row_count"`
	ColumnCount   int      `json:"column_count"`
	ColumnNames   []string `json:"column_names"`
}

// SubmissionReceipt is returned to the uploader on a successful intake.
// ReportURL points at the descriptive profile artifact; generation is
// best-effort and asynchronous, so the URL may 404 until (or if ever) the
// profile lands.
type SubmissionReceipt struct {
	Submission
	FileStats FileStats `json:"file_stats"`
	ReportURL string    `json:"eda_report_url,omitempty"`
}
