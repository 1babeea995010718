package core

// export.go builds the merged cross-center CSV. Submissions are
// concatenated in the order the store returned them; the header is the
// union of every dataset's columns in first-seen order, with the synthetic
// _center_source column tagging each row's origin. Cells absent from a
// submission's dataset are written empty.

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CenterSourceColumn tags each merged row with the contributing center.
const CenterSourceColumn = "_center_source"

// ExportFile is a rendered merged export ready to stream to the client.
type ExportFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// MergeSubmissions renders the validated submissions into one CSV
// document. Every submission must carry its dataset.
func MergeSubmissions(projectID int64, subs []Submission) (ExportFile, error) {
	header := mergedHeader(subs)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return ExportFile{}, fmt.Errorf("write export header: %w", err)
	}

	record := make([]string, len(header))
	for _, sub := range subs {
		if sub.Data == nil {
			continue
		}
		for _, row := range sub.Data.Rows {
			for i, col := range header {
				switch {
				case col == CenterSourceColumn:
					record[i] = sub.CenterName
				default:
					v, ok := row[col]
					if !ok || isMissing(v) {
						record[i] = ""
					} else {
						record[i] = valueString(v)
					}
				}
			}
			if err := w.Write(record); err != nil {
				return ExportFile{}, fmt.Errorf("write export row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return ExportFile{}, fmt.Errorf("flush export: %w", err)
	}

	return ExportFile{
		Name:        fmt.Sprintf("project_%d_data.csv", projectID),
		ContentType: "text/csv",
		Content:     buf.Bytes(),
	}, nil
}

// mergedHeader computes the union of all submission columns in first-seen
// order. The source tag lands right after the first submission's columns,
// before any column seen only in later submissions.
func mergedHeader(subs []Submission) []string {
	var header []string
	seen := make(map[string]bool)

	add := func(col string) {
		if !seen[col] {
			seen[col] = true
			header = append(header, col)
		}
	}

	for _, sub := range subs {
		if sub.Data == nil {
			continue
		}
		for _, col := range sub.Data.Columns {
			add(col)
		}
		add(CenterSourceColumn)
	}
	return header
}
