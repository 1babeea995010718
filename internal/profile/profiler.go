// Package profile generates the descriptive HTML report attached to an
// accepted submission. Generation is best-effort: the intake path only
// hands a dataset to Generate in the background and never waits on it.
package profile

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/rissahq/rissa/internal/core"
)

//go:embed report.html.tmpl
var reportTemplate string

// maxTopValues bounds the frequency table per column.
const maxTopValues = 10

// Generator renders reports into a directory served as static files.
type Generator struct {
	dir     string
	baseURL string
	tmpl    *template.Template
}

// NewGenerator creates the report directory if needed. baseURL is the
// public path prefix the directory is served under, e.g. "/api/reports".
func NewGenerator(dir, baseURL string) (*Generator, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create reports directory: %w", err)
	}
	tmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &Generator{dir: dir, baseURL: baseURL, tmpl: tmpl}, nil
}

// Dir returns the directory reports are written to.
func (g *Generator) Dir() string { return g.dir }

func reportName(submissionID int64) string {
	return fmt.Sprintf("eda_report_%d.html", submissionID)
}

// ReportURL returns the public URL the submission's report will be served
// from once generated.
func (g *Generator) ReportURL(submissionID int64) string {
	return g.baseURL + "/" + reportName(submissionID)
}

// Generate renders the report and writes it atomically: the document lands
// under a temporary name first and is renamed into place, so readers never
// see a half-written file.
func (g *Generator) Generate(ctx context.Context, submissionID int64, dataset core.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := buildDocument(submissionID, dataset)

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, doc); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	tmp := filepath.Join(g.dir, fmt.Sprintf(".%s.%s.tmp", reportName(submissionID), uuid.New().String()))
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(g.dir, reportName(submissionID))); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}

// document is the template input.
type document struct {
	Title       string
	RowCount    int
	ColumnCount int
	Columns     []columnSummary
}

type columnSummary struct {
	Name         string
	Present      int
	Missing      int
	Distinct     int
	Numeric      bool
	Min          string
	Max          string
	Mean         string
	TopValues    []valueCount
	MoreDistinct bool
}

type valueCount struct {
	Value string
	Count int
}

func buildDocument(submissionID int64, dataset core.Dataset) document {
	doc := document{
		Title:       fmt.Sprintf("Data Profile - Submission %d", submissionID),
		RowCount:    len(dataset.Rows),
		ColumnCount: len(dataset.Columns),
	}
	for _, col := range dataset.Columns {
		doc.Columns = append(doc.Columns, summarizeColumn(col, dataset.Rows))
	}
	return doc
}

func summarizeColumn(name string, rows []core.Row) columnSummary {
	s := columnSummary{Name: name}

	freq := make(map[string]int)
	var order []string
	var sum float64
	var minV, maxV float64
	numericCount := 0

	for _, row := range rows {
		v, ok := row[name]
		if !ok || core.IsMissingValue(v) {
			s.Missing++
			continue
		}
		s.Present++

		text := core.ValueText(v)
		if freq[text] == 0 {
			order = append(order, text)
		}
		freq[text]++

		if f, ok := core.NumericValue(v); ok {
			if numericCount == 0 || f < minV {
				minV = f
			}
			if numericCount == 0 || f > maxV {
				maxV = f
			}
			sum += f
			numericCount++
		}
	}

	s.Distinct = len(order)

	// Treat the column as numeric only when every present value coerced.
	if s.Present > 0 && numericCount == s.Present {
		s.Numeric = true
		s.Min = trimFloat(minV)
		s.Max = trimFloat(maxV)
		s.Mean = trimFloat(sum / float64(numericCount))
	}

	sort.SliceStable(order, func(i, j int) bool { return freq[order[i]] > freq[order[j]] })
	top := order
	if len(top) > maxTopValues {
		top = top[:maxTopValues]
		s.MoreDistinct = true
	}
	for _, v := range top {
		s.TopValues = append(s.TopValues, valueCount{Value: v, Count: freq[v]})
	}
	return s
}

func trimFloat(f float64) string {
	if math.Abs(f-math.Trunc(f)) < 1e-9 {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%.4g", f)
}
