// Package tabular reads header-plus-rows tables from delimited text and
// spreadsheet files.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\ufeff"

// Table is a header row plus string rows, each padded to the header width
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of the named header column, or -1
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// ReadFile reads a table choosing the format from the file extension.
// .xlsx files are read as spreadsheets, .tsv as tab-delimited, everything else as CSV.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(f)
	case ".tsv":
		return ReadDelimited(f, '\t')
	default:
		return ReadDelimited(f, ',')
	}
}

// ReadCSV reads a comma-separated table with a header row
func ReadCSV(r io.Reader) (*Table, error) {
	return ReadDelimited(r, ',')
}

// ReadDelimited reads a delimited text table with a header row
func ReadDelimited(r io.Reader, comma rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	t := &Table{Header: cleanHeader(header)}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if isBlank(record) {
			continue
		}
		row, err := t.fit(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ReadXLSX reads the first sheet of a workbook; its first row is the header
func ReadXLSX(r io.Reader) (*Table, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = wb.Close() }()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("missing header row")
	}

	t := &Table{Header: cleanHeader(rows[0])}
	for i, record := range rows[1:] {
		if isBlank(record) {
			continue
		}
		row, err := t.fit(record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// fit pads short records; excelize and hand-edited CSVs both drop trailing empty cells
func (t *Table) fit(record []string) ([]string, error) {
	if len(record) > len(t.Header) {
		return nil, fmt.Errorf("%d fields, header has %d", len(record), len(t.Header))
	}
	row := make([]string, len(t.Header))
	copy(row, record)
	return row, nil
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
