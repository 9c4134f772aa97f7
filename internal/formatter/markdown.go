package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/sdohload/internal/schema"
)

// MarkdownFormatter formats reports and datasets as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// FormatResults writes load results as a markdown table
func (f *MarkdownFormatter) FormatResults(results []schema.LoadResult) error {
	_, _ = fmt.Fprintln(f.writer, "# Load Report")
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintln(f.writer, "| Dataset | Table | Result | Duration | Message |")
	_, _ = fmt.Fprintln(f.writer, "|---|---|---|---|---|")
	for _, r := range results {
		result := "failed"
		if r.Success {
			result = "loaded"
		}
		_, _ = fmt.Fprintf(f.writer, "| %s | %s | %s | %s | %s |\n",
			r.Name, r.Table, result, formatDuration(r.Duration), escapeCell(r.Message))
	}
	_, err := fmt.Fprintln(f.writer)
	return err
}

// FormatDatasets writes every dataset under one heading
func (f *MarkdownFormatter) FormatDatasets(datasets []schema.Dataset) error {
	_, _ = fmt.Fprintln(f.writer, "# SDoH Datasets")
	_, _ = fmt.Fprintln(f.writer)

	for _, d := range datasets {
		if err := f.FormatDataset(d); err != nil {
			return err
		}
	}
	return nil
}

// FormatDataset formats a single dataset (exported for use by multifile formatter)
func (f *MarkdownFormatter) FormatDataset(d schema.Dataset) error {
	src := d.Source
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", src.ID)
	if src.Description != "" {
		_, _ = fmt.Fprintf(f.writer, "%s\n\n", src.Description)
	}

	_, _ = fmt.Fprintf(f.writer, "- **Source:** %s\n", src.Name)
	_, _ = fmt.Fprintf(f.writer, "- **Version:** %s\n", src.Version)
	_, _ = fmt.Fprintf(f.writer, "- **Granularity:** %s\n", src.Granularity)
	_, _ = fmt.Fprintf(f.writer, "- **Census year:** %d\n", src.CensusYear)
	if src.URL != "" {
		_, _ = fmt.Fprintf(f.writer, "- **URL:** %s\n", src.URL)
	}
	if d.Table != nil {
		_, _ = fmt.Fprintf(f.writer, "- **Rows:** %d\n", d.Table.RowCount)
	}
	_, _ = fmt.Fprintln(f.writer)

	if d.Table != nil {
		f.FormatColumns(d.Table, variableDescriptions(d.Variables))
	}
	return nil
}

// FormatColumns writes the column list of a wide table
func (f *MarkdownFormatter) FormatColumns(table *schema.Table, descriptions map[string]string) {
	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)

	for _, col := range table.Columns {
		line := fmt.Sprintf("- **%s:** %s", col.Name, col.Type)
		if isPrimaryKey(col.Name, table.PrimaryKey) {
			line += ", PK"
		}
		if desc := descriptions[col.Name]; desc != "" {
			line += " - " + desc
		}
		_, _ = fmt.Fprintln(f.writer, line)
	}
	_, _ = fmt.Fprintln(f.writer)
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
