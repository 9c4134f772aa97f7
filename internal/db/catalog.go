package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/tordrt/sdohload/internal/schema"
)

// SourceColumns are the columns of the sdoh_source relation, in insert order
var SourceColumns = []string{"id", "name", "version", "url", "description", "granularity", "census_year"}

// CatalogColumns are the columns of the sdoh relation, in insert order
var CatalogColumns = []string{"id", "description", "census_year", "level", "source", "version"}

// EnsureCatalog creates the schema and both catalog relations if they are missing
func EnsureCatalog(ctx context.Context, s Store) error {
	d := s.Dialect()

	if ddl := d.CreateSchema(s.Schema()); ddl != "" {
		if err := s.Exec(ctx, Statement{SQL: ddl}); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", s.Schema(), err)
		}
	}

	q := d.Quote
	sourceDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s varchar(64) PRIMARY KEY,
		%s varchar(64) NOT NULL,
		%s varchar(64) NOT NULL,
		%s text,
		%s text,
		%s varchar(16) NOT NULL,
		%s integer NOT NULL
	)`, d.Qualify(s.Schema(), schema.SourceTable),
		q("id"), q("name"), q("version"), q("url"), q("description"), q("granularity"), q("census_year"))

	catalogDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s varchar(64) NOT NULL,
		%s text,
		%s integer NOT NULL,
		%s varchar(16) NOT NULL,
		%s varchar(64) NOT NULL,
		%s varchar(64) NOT NULL,
		PRIMARY KEY (%s)
	)`, d.Qualify(s.Schema(), schema.CatalogTable),
		q("id"), q("description"), q("census_year"), q("level"), q("source"), q("version"),
		strings.Join([]string{q("id"), q("source"), q("version")}, ", "))

	for _, ddl := range []string{sourceDDL, catalogDDL} {
		if err := s.Exec(ctx, Statement{SQL: ddl}); err != nil {
			return fmt.Errorf("failed to create catalog table: %w", err)
		}
	}
	return nil
}

// InsertSQL builds a parameterized INSERT for the given relation and columns.
// Identifiers are quoted by the dialect; values are always bound.
func InsertSQL(d Dialect, schemaName, table string, columns []string) string {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
		params[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Qualify(schemaName, table), strings.Join(quoted, ", "), strings.Join(params, ", "))
}
