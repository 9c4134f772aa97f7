package ingest

import (
	"github.com/tordrt/sdohload/internal/db"
	"github.com/tordrt/sdohload/internal/schema"
)

// CatalogWriter builds the statements that register a dataset in the shared
// catalog. It executes nothing; the Coordinator runs what it stages.
type CatalogWriter struct {
	dialect    db.Dialect
	schemaName string
	batchSize  int
}

// NewCatalogWriter creates a catalog writer for the given dialect and schema
func NewCatalogWriter(dialect db.Dialect, schemaName string, batchSize int) *CatalogWriter {
	return &CatalogWriter{dialect: dialect, schemaName: schemaName, batchSize: batchSize}
}

// SourceEntryFor builds the sdoh_source row of a dataset
func SourceEntryFor(key schema.DatasetKey, url, description string, censusYear int) schema.SourceEntry {
	return schema.SourceEntry{
		ID:          key.TableName(),
		Name:        key.Source,
		Version:     key.Version,
		URL:         url,
		Description: description,
		Granularity: key.Granularity,
		CensusYear:  censusYear,
	}
}

// CatalogEntriesFor builds one sdoh row per variable
func CatalogEntriesFor(vars []schema.Variable, key schema.DatasetKey, censusYear int) []schema.CatalogEntry {
	entries := make([]schema.CatalogEntry, len(vars))
	for i, v := range vars {
		entries[i] = schema.CatalogEntry{
			ID:          v.Name,
			Description: v.Description,
			CensusYear:  censusYear,
			Level:       key.Granularity,
			Source:      key.Source,
			Version:     key.Version,
		}
	}
	return entries
}

// StageSourceEntry builds the INSERT for one sdoh_source row. The relation's
// primary key is what rejects a second load of the same dataset.
func (w *CatalogWriter) StageSourceEntry(e schema.SourceEntry) db.Statement {
	return db.Statement{
		SQL:  db.InsertSQL(w.dialect, w.schemaName, schema.SourceTable, db.SourceColumns),
		Args: []any{e.ID, e.Name, e.Version, e.URL, e.Description, string(e.Granularity), e.CensusYear},
	}
}

// StageCatalogEntries builds one batched INSERT over all variable rows
func (w *CatalogWriter) StageCatalogEntries(entries []schema.CatalogEntry) db.Batch {
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{e.ID, e.Description, e.CensusYear, string(e.Level), e.Source, e.Version}
	}
	return db.Batch{
		SQL:  db.InsertSQL(w.dialect, w.schemaName, schema.CatalogTable, db.CatalogColumns),
		Rows: rows,
		Size: w.batchSize,
	}
}

// StageRemoval builds the DELETEs that undo a dataset's catalog rows
func (w *CatalogWriter) StageRemoval(key schema.DatasetKey) []db.Statement {
	d := w.dialect
	q := d.Quote
	return []db.Statement{
		{
			SQL: "DELETE FROM " + d.Qualify(w.schemaName, schema.CatalogTable) +
				" WHERE " + q("source") + " = " + d.Placeholder(1) +
				" AND " + q("version") + " = " + d.Placeholder(2) +
				" AND " + q("level") + " = " + d.Placeholder(3),
			Args: []any{key.Source, key.Version, string(key.Granularity)},
		},
		{
			SQL:  "DELETE FROM " + d.Qualify(w.schemaName, schema.SourceTable) + " WHERE " + q("id") + " = " + d.Placeholder(1),
			Args: []any{key.TableName()},
		},
	}
}
