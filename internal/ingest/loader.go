package ingest

import (
	"fmt"
	"strings"

	"github.com/tordrt/sdohload/internal/db"
	"github.com/tordrt/sdohload/internal/schema"
)

// TableLoader builds the DDL and row inserts of a dataset's wide table
type TableLoader struct {
	dialect    db.Dialect
	schemaName string
	batchSize  int
}

// NewTableLoader creates a table loader for the given dialect and schema
func NewTableLoader(dialect db.Dialect, schemaName string, batchSize int) *TableLoader {
	return &TableLoader{dialect: dialect, schemaName: schemaName, batchSize: batchSize}
}

// WideTable names the physical table of a dataset and its key column
func (l *TableLoader) WideTable(key schema.DatasetKey, columns []string) schema.WideTable {
	return schema.WideTable{
		Name:      key.TableName(),
		KeyColumn: key.Granularity.KeyColumn(),
		Columns:   columns,
	}
}

// DeriveTableDDL builds CREATE TABLE with an integer key and one bounded text column per variable
func (l *TableLoader) DeriveTableDDL(t schema.WideTable) (db.Statement, error) {
	if err := l.validate(t); err != nil {
		return db.Statement{}, err
	}

	defs := make([]string, 0, len(t.Columns)+1)
	defs = append(defs, fmt.Sprintf("%s %s PRIMARY KEY", l.dialect.Quote(t.KeyColumn), l.dialect.KeyType()))
	for _, c := range t.Columns {
		defs = append(defs, l.dialect.Quote(c)+" "+l.dialect.TextType())
	}

	return db.Statement{
		SQL: fmt.Sprintf("CREATE TABLE %s (%s)", l.dialect.Qualify(l.schemaName, t.Name), strings.Join(defs, ", ")),
	}, nil
}

// BatchInsert builds a single INSERT template bound once per record
func (l *TableLoader) BatchInsert(t schema.WideTable, records []schema.Record) (db.Batch, error) {
	if err := l.validate(t); err != nil {
		return db.Batch{}, err
	}

	columns := append([]string{t.KeyColumn}, t.Columns...)
	rows := make([][]any, len(records))
	for i, r := range records {
		if len(r.Values) != len(t.Columns) {
			return db.Batch{}, newError(KindSchema, "geographic id %d has %d values, table has %d columns", r.Key, len(r.Values), len(t.Columns))
		}
		row := make([]any, 0, len(columns))
		row = append(row, r.Key)
		for _, v := range r.Values {
			if v == nil {
				row = append(row, nil)
			} else {
				row = append(row, *v)
			}
		}
		rows[i] = row
	}

	return db.Batch{
		SQL:  db.InsertSQL(l.dialect, l.schemaName, t.Name, columns),
		Rows: rows,
		Size: l.batchSize,
	}, nil
}

// DropTable builds the compensating DROP for a table this load created
func (l *TableLoader) DropTable(t schema.WideTable) db.Statement {
	return db.Statement{SQL: "DROP TABLE IF EXISTS " + l.dialect.Qualify(l.schemaName, t.Name)}
}

func (l *TableLoader) validate(t schema.WideTable) error {
	if err := ValidateIdentifier(t.Name); err != nil {
		return err
	}
	if err := ValidateIdentifier(t.KeyColumn); err != nil {
		return err
	}
	for _, c := range t.Columns {
		if err := ValidateIdentifier(c); err != nil {
			return err
		}
		if strings.EqualFold(c, t.KeyColumn) {
			return newError(KindNaming, "column %q collides with the key column", c)
		}
	}
	if len(t.Columns) > MaxDataColumns {
		return newError(KindColumnLimit, "%d variables; tables support at most %d", len(t.Columns), MaxDataColumns)
	}
	return nil
}
