package core

import (
	"encoding/csv"
	"reflect"
	"strings"
	"testing"
)

func readCSV(t *testing.T, content []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(strings.NewReader(string(content))).ReadAll()
	if err != nil {
		t.Fatalf("parse exported CSV: %v", err)
	}
	return records
}

func TestMergeSubmissions(t *testing.T) {
	d1 := dataset([]string{"age", "sex"}, []any{"30", "M"}, []any{"41", "F"})
	d2 := dataset([]string{"age", "sex"}, []any{"55", "F"})
	subs := []Submission{
		{CenterName: "taipei", Data: &d1},
		{CenterName: "kaohsiung", Data: &d2},
	}

	out, err := MergeSubmissions(7, subs)
	if err != nil {
		t.Fatalf("MergeSubmissions: %v", err)
	}
	if out.Name != "project_7_data.csv" {
		t.Errorf("Name = %q", out.Name)
	}

	records := readCSV(t, out.Content)
	want := [][]string{
		{"age", "sex", "_center_source"},
		{"30", "M", "taipei"},
		{"41", "F", "taipei"},
		{"55", "F", "kaohsiung"},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("records = %v, want %v", records, want)
	}
}

func TestMergeSubmissionsHeterogeneousColumns(t *testing.T) {
	d1 := dataset([]string{"age"}, []any{"30"})
	d2 := dataset([]string{"age", "weight"}, []any{"55", "70.5"})
	subs := []Submission{
		{CenterName: "a", Data: &d1},
		{CenterName: "b", Data: &d2},
	}

	out, err := MergeSubmissions(1, subs)
	if err != nil {
		t.Fatalf("MergeSubmissions: %v", err)
	}

	records := readCSV(t, out.Content)
	// Columns seen only in later submissions land after the source tag.
	wantHeader := []string{"age", "_center_source", "weight"}
	if !reflect.DeepEqual(records[0], wantHeader) {
		t.Fatalf("header = %v, want %v", records[0], wantHeader)
	}
	// The first center never supplied weight, so its cell is empty.
	if !reflect.DeepEqual(records[1], []string{"30", "a", ""}) {
		t.Errorf("row 1 = %v", records[1])
	}
	if !reflect.DeepEqual(records[2], []string{"55", "b", "70.5"}) {
		t.Errorf("row 2 = %v", records[2])
	}
}

func TestMergeSubmissionsDeterministic(t *testing.T) {
	d := dataset([]string{"a", "b", "c"}, []any{"1", "2", "3"})
	subs := []Submission{{CenterName: "x", Data: &d}}

	first, err := MergeSubmissions(1, subs)
	if err != nil {
		t.Fatal(err)
	}
	second, err := MergeSubmissions(1, subs)
	if err != nil {
		t.Fatal(err)
	}
	if string(first.Content) != string(second.Content) {
		t.Error("identical inputs produced different exports")
	}
}
