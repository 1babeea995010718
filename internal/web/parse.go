package web

// parse.go turns an uploaded file into a core.Dataset. The core never sees
// raw bytes; everything that can go wrong here surfaces as a KindParse
// error with a message the uploader can act on.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rissahq/rissa/internal/core"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SupportedUpload reports whether the filename carries an accepted
// extension.
func SupportedUpload(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// ParseDataset decodes an uploaded file into a dataset. The first row is
// the header; every cell is kept as a string for the engine to coerce.
func ParseDataset(filename string, content []byte) (core.Dataset, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return parseCSV(content)
	case ".xlsx":
		return parseXLSX(content)
	default:
		return core.Dataset{}, core.Errf(core.KindParse,
			"unsupported file type: only .csv and .xlsx uploads are accepted")
	}
}

func parseCSV(content []byte) (core.Dataset, error) {
	content = bytes.TrimPrefix(content, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(content))
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return core.Dataset{}, core.Errf(core.KindParse, "the CSV file is empty")
		}
		return core.Dataset{}, core.Errf(core.KindParse, "could not read the CSV header: %v", err)
	}

	columns := make([]string, len(header))
	for i, col := range header {
		columns[i] = strings.TrimSpace(col)
	}

	dataset := core.Dataset{Columns: columns, Rows: make([]core.Row, 0)}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return core.Dataset{}, core.Errf(core.KindParse, "could not read CSV line %d: %v", line, err)
		}
		dataset.Rows = append(dataset.Rows, recordToRow(columns, record))
	}
	return dataset, nil
}

func parseXLSX(content []byte) (core.Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return core.Dataset{}, core.Errf(core.KindParse, "could not open the Excel file: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return core.Dataset{}, core.Errf(core.KindParse, "the Excel file has no sheets")
	}

	// Only the first sheet is read, matching CSV's single-table shape.
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return core.Dataset{}, core.Errf(core.KindParse, "could not read sheet %q: %v", sheets[0], err)
	}
	if len(rows) == 0 {
		return core.Dataset{}, core.Errf(core.KindParse, "sheet %q is empty", sheets[0])
	}

	columns := make([]string, len(rows[0]))
	for i, col := range rows[0] {
		columns[i] = strings.TrimSpace(col)
	}

	dataset := core.Dataset{Columns: columns, Rows: make([]core.Row, 0, len(rows)-1)}
	for _, record := range rows[1:] {
		dataset.Rows = append(dataset.Rows, recordToRow(columns, record))
	}
	return dataset, nil
}

// recordToRow maps one record onto the header. Excel rows may be shorter
// than the header when trailing cells are empty; those cells stay missing.
func recordToRow(columns []string, record []string) core.Row {
	row := make(core.Row, len(columns))
	for i, col := range columns {
		if i < len(record) {
			row[col] = record[i]
		}
	}
	return row
}
