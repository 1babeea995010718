package web

import (
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/rissahq/rissa/internal/core"
)

func TestParseCSV(t *testing.T) {
	content := []byte("age,sex\n30,M\n41,F\n")
	dataset, err := ParseDataset("data.csv", content)
	if err != nil {
		t.Fatalf("ParseDataset: %v", err)
	}

	if !reflect.DeepEqual(dataset.Columns, []string{"age", "sex"}) {
		t.Errorf("Columns = %v", dataset.Columns)
	}
	if len(dataset.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(dataset.Rows))
	}
	if dataset.Rows[0]["age"] != "30" || dataset.Rows[1]["sex"] != "F" {
		t.Errorf("Rows = %v", dataset.Rows)
	}
}

func TestParseCSVWithBOM(t *testing.T) {
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("age\n30\n")...)
	dataset, err := ParseDataset("data.csv", content)
	if err != nil {
		t.Fatalf("ParseDataset: %v", err)
	}
	if dataset.Columns[0] != "age" {
		t.Errorf("first column = %q, BOM not stripped", dataset.Columns[0])
	}
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"ragged record", "a,b\n1\n2,3,4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDataset("data.csv", []byte(tt.content))
			if !core.IsKind(err, core.KindParse) {
				t.Fatalf("kind = %v, want KindParse", core.KindOf(err))
			}
		})
	}
}

func TestParseCSVHeaderOnly(t *testing.T) {
	dataset, err := ParseDataset("data.csv", []byte("age,sex\n"))
	if err != nil {
		t.Fatalf("ParseDataset: %v", err)
	}
	if len(dataset.Rows) != 0 {
		t.Errorf("rows = %d, want 0", len(dataset.Rows))
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	cells := map[string]any{
		"A1": "age", "B1": "sex",
		"A2": "30", "B2": "M",
		"A3": "41",
	}
	for ref, v := range cells {
		if err := f.SetCellValue(sheet, ref, v); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	dataset, err := ParseDataset("data.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("ParseDataset: %v", err)
	}
	if !reflect.DeepEqual(dataset.Columns, []string{"age", "sex"}) {
		t.Errorf("Columns = %v", dataset.Columns)
	}
	if len(dataset.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(dataset.Rows))
	}
	// The trailing empty cell stays missing.
	if _, ok := dataset.Rows[1]["sex"]; ok {
		t.Errorf("short row filled a missing cell: %v", dataset.Rows[1])
	}
}

func TestParseXLSXGarbage(t *testing.T) {
	_, err := ParseDataset("data.xlsx", []byte("not a zip archive"))
	if !core.IsKind(err, core.KindParse) {
		t.Fatalf("kind = %v, want KindParse", core.KindOf(err))
	}
}

func TestSupportedUpload(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"data.csv", true},
		{"DATA.CSV", true},
		{"data.xlsx", true},
		{"data.xls", false},
		{"data.txt", false},
		{"data", false},
	}
	for _, tt := range tests {
		if got := SupportedUpload(tt.filename); got != tt.want {
			t.Errorf("SupportedUpload(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}
