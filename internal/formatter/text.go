package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/sdohload/internal/schema"
)

// TextFormatter formats reports and datasets as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// FormatResults writes one line per load result and a summary line
func (f *TextFormatter) FormatResults(results []schema.LoadResult) error {
	ok := 0
	for _, r := range results {
		status := "FAIL"
		if r.Success {
			status = "OK"
			ok++
		}
		_, _ = fmt.Fprintf(f.writer, "%-4s %s (%s) %s: %s\n", status, r.Name, r.Table, formatDuration(r.Duration), r.Message)
	}
	_, err := fmt.Fprintf(f.writer, "%d of %d datasets loaded\n", ok, len(results))
	return err
}

// FormatDatasets writes every dataset, blank-line separated
func (f *TextFormatter) FormatDatasets(datasets []schema.Dataset) error {
	for i, d := range datasets {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between datasets
		}
		if err := f.FormatDataset(d); err != nil {
			return err
		}
	}
	return nil
}

// FormatDataset writes a single dataset
func (f *TextFormatter) FormatDataset(d schema.Dataset) error {
	src := d.Source
	_, _ = fmt.Fprintf(f.writer, "DATASET %s (%s %s, %s, census %d", src.ID, src.Name, src.Version, src.Granularity, src.CensusYear)
	if d.Table != nil {
		_, _ = fmt.Fprintf(f.writer, ", %d rows", d.Table.RowCount)
	}
	_, _ = fmt.Fprintln(f.writer, ")")

	if src.Description != "" {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", src.Description)
	}
	if src.URL != "" {
		_, _ = fmt.Fprintf(f.writer, "  url: %s\n", src.URL)
	}

	if d.Table == nil {
		return nil
	}
	descriptions := variableDescriptions(d.Variables)
	for _, col := range d.Table.Columns {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", f.formatColumn(col, d.Table.PrimaryKey, descriptions[col.Name]))
	}
	return nil
}

func (f *TextFormatter) formatColumn(col schema.Column, primaryKey []string, description string) string {
	parts := []string{col.Name + ":", col.Type}

	if isPrimaryKey(col.Name, primaryKey) {
		parts = append(parts, "PK")
	}
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if description != "" {
		parts = append(parts, "-- "+description)
	}

	return strings.Join(parts, " ")
}
