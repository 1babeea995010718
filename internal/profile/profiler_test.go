package profile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rissahq/rissa/internal/core"
)

func testDataset() core.Dataset {
	return core.Dataset{
		Columns: []string{"age", "sex"},
		Rows: []core.Row{
			{"age": "30", "sex": "M"},
			{"age": "41", "sex": "F"},
			{"age": "", "sex": "F"},
		},
	}
}

func TestGeneratorReportURL(t *testing.T) {
	g, err := NewGenerator(t.TempDir(), "/api/reports")
	if err != nil {
		t.Fatal(err)
	}
	if got := g.ReportURL(42); got != "/api/reports/eda_report_42.html" {
		t.Errorf("ReportURL = %q", got)
	}
}

func TestGeneratorGenerate(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGenerator(dir, "/api/reports")
	if err != nil {
		t.Fatal(err)
	}

	if err := g.Generate(context.Background(), 7, testDataset()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "eda_report_7.html"))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	html := string(content)

	for _, want := range []string{
		"Data Profile - Submission 7",
		"3 rows, 2 columns",
		"<h2>age</h2>",
		"<h2>sex</h2>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("stray temp file %s", e.Name())
		}
	}
}

func TestGeneratorCancelledContext(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGenerator(dir, "/api/reports")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Generate(ctx, 1, testDataset()); err == nil {
		t.Fatal("Generate with cancelled context succeeded")
	}
	if _, err := os.Stat(filepath.Join(dir, "eda_report_1.html")); !os.IsNotExist(err) {
		t.Error("cancelled generation still wrote a report")
	}
}

func TestSummarizeColumn(t *testing.T) {
	rows := []core.Row{
		{"v": "10"}, {"v": "20"}, {"v": "20"}, {"v": ""}, {},
	}
	s := summarizeColumn("v", rows)

	if s.Present != 3 || s.Missing != 2 {
		t.Errorf("Present, Missing = %d, %d, want 3, 2", s.Present, s.Missing)
	}
	if s.Distinct != 2 {
		t.Errorf("Distinct = %d, want 2", s.Distinct)
	}
	if !s.Numeric || s.Min != "10" || s.Max != "20" {
		t.Errorf("numeric summary = %+v", s)
	}
	if len(s.TopValues) != 2 || s.TopValues[0].Value != "20" || s.TopValues[0].Count != 2 {
		t.Errorf("TopValues = %+v, want 20 first", s.TopValues)
	}
}

func TestSummarizeColumnMixedValuesNotNumeric(t *testing.T) {
	rows := []core.Row{{"v": "10"}, {"v": "abc"}}
	s := summarizeColumn("v", rows)
	if s.Numeric {
		t.Error("mixed column summarized as numeric")
	}
}
