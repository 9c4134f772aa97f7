package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tordrt/sdohload/internal/schema"
)

const (
	formatMarkdown = "markdown"
	formatText     = "text"
)

// ValidFormat reports whether name is a supported output format
func ValidFormat(name string) bool {
	return name == formatText || name == formatMarkdown
}

// MultiFileFormatter writes datasets to multiple files in a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes an overview file plus one file per dataset
func (f *MultiFileFormatter) Format(datasets []schema.Dataset) error {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeOverview(datasets); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, d := range datasets {
		if err := f.writeDatasetFile(d); err != nil {
			return fmt.Errorf("failed to write dataset file for %s: %w", d.Source.ID, err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeOverview(datasets []schema.Dataset) error {
	ext := f.getFileExtension()
	file, err := os.Create(filepath.Join(f.OutputDir, "_overview"+ext))
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	sorted := make([]schema.Dataset, len(datasets))
	copy(sorted, datasets)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Source.ID < sorted[j].Source.ID
	})

	if f.OutputFormat == formatMarkdown {
		_, _ = fmt.Fprintf(file, "# SDoH Overview\n\n")
		_, _ = fmt.Fprintf(file, "Each dataset has a corresponding file: `<table_name>%s`\n\n", ext)
		_, _ = fmt.Fprintf(file, "## Datasets\n\n")
		for _, d := range sorted {
			_, _ = fmt.Fprintf(file, "- **%s** (%s)\n", d.Source.ID, overviewSummary(d))
		}
		return nil
	}

	_, _ = fmt.Fprintf(file, "SDOH OVERVIEW\n")
	_, _ = fmt.Fprintf(file, "Each dataset has a file: <table_name>%s\n\n", ext)
	for _, d := range sorted {
		_, _ = fmt.Fprintf(file, "%s (%s)\n", d.Source.ID, overviewSummary(d))
	}
	return nil
}

func (f *MultiFileFormatter) writeDatasetFile(d schema.Dataset) error {
	file, err := os.Create(filepath.Join(f.OutputDir, d.Source.ID+f.getFileExtension()))
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if f.OutputFormat == formatMarkdown {
		return NewMarkdownFormatter(file).FormatDataset(d)
	}
	return NewTextFormatter(file).FormatDataset(d)
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == formatMarkdown {
		return ".md"
	}
	return ".txt"
}

func overviewSummary(d schema.Dataset) string {
	parts := []string{
		string(d.Source.Granularity),
		fmt.Sprintf("census %d", d.Source.CensusYear),
		fmt.Sprintf("%d variables", len(d.Variables)),
	}
	if d.Table != nil {
		parts = append(parts, fmt.Sprintf("%d rows", d.Table.RowCount))
	}
	return strings.Join(parts, ", ")
}

func variableDescriptions(vars []schema.CatalogEntry) map[string]string {
	m := make(map[string]string, len(vars))
	for _, v := range vars {
		m[v.ID] = v.Description
	}
	return m
}

func isPrimaryKey(name string, primaryKey []string) bool {
	for _, pk := range primaryKey {
		if pk == name {
			return true
		}
	}
	return false
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
