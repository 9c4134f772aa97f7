package db

import (
	"context"
	"fmt"

	"github.com/tordrt/sdohload/internal/schema"
)

// Inspector reads the catalog and loaded wide tables back from a store
type Inspector struct {
	store Store
}

// NewInspector creates a new inspector
func NewInspector(store Store) *Inspector {
	return &Inspector{store: store}
}

// Sources returns every registered dataset, ordered by table identifier
func (i *Inspector) Sources(ctx context.Context) ([]schema.SourceEntry, error) {
	return i.sources(ctx, "")
}

// Source returns the registered dataset with the given table identifier, or nil
func (i *Inspector) Source(ctx context.Context, id string) (*schema.SourceEntry, error) {
	entries, err := i.sources(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (i *Inspector) sources(ctx context.Context, id string) ([]schema.SourceEntry, error) {
	d := i.store.Dialect()
	q := d.Quote
	st := Statement{SQL: fmt.Sprintf("SELECT %s, %s, %s, %s, %s, %s, %s FROM %s",
		q("id"), q("name"), q("version"), q("url"), q("description"), q("granularity"), q("census_year"),
		d.Qualify(i.store.Schema(), schema.SourceTable))}
	if id != "" {
		st.SQL += fmt.Sprintf(" WHERE %s = %s", q("id"), d.Placeholder(1))
		st.Args = []any{id}
	}
	st.SQL += " ORDER BY " + q("id")

	var entries []schema.SourceEntry
	err := i.store.Query(ctx, st, func(row Scanner) error {
		var e schema.SourceEntry
		var url, desc *string
		var granularity string
		if err := row.Scan(&e.ID, &e.Name, &e.Version, &url, &desc, &granularity, &e.CensusYear); err != nil {
			return err
		}
		e.URL = deref(url)
		e.Description = deref(desc)
		e.Granularity = schema.Granularity(granularity)
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", schema.SourceTable, err)
	}
	return entries, nil
}

// Variables returns the catalog entries registered for a dataset
func (i *Inspector) Variables(ctx context.Context, key schema.DatasetKey) ([]schema.CatalogEntry, error) {
	d := i.store.Dialect()
	q := d.Quote
	st := Statement{
		SQL: fmt.Sprintf("SELECT %s, %s, %s, %s, %s, %s FROM %s WHERE %s = %s AND %s = %s AND %s = %s ORDER BY %s",
			q("id"), q("description"), q("census_year"), q("level"), q("source"), q("version"),
			d.Qualify(i.store.Schema(), schema.CatalogTable),
			q("source"), d.Placeholder(1), q("version"), d.Placeholder(2), q("level"), d.Placeholder(3),
			q("id")),
		Args: []any{key.Source, key.Version, string(key.Granularity)},
	}

	var entries []schema.CatalogEntry
	err := i.store.Query(ctx, st, func(row Scanner) error {
		var e schema.CatalogEntry
		var desc *string
		var level string
		if err := row.Scan(&e.ID, &desc, &e.CensusYear, &level, &e.Source, &e.Version); err != nil {
			return err
		}
		e.Description = deref(desc)
		e.Level = schema.Granularity(level)
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", schema.CatalogTable, err)
	}
	return entries, nil
}

// TableExists reports whether a physical table with the given name exists
func (i *Inspector) TableExists(ctx context.Context, name string) (bool, error) {
	var count int64
	err := i.store.Query(ctx, i.store.Dialect().TableExistsQuery(i.store.Schema(), name), func(row Scanner) error {
		return row.Scan(&count)
	})
	if err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", name, err)
	}
	return count > 0, nil
}

// DescribeTable extracts columns, primary key and row count of a physical table
func (i *Inspector) DescribeTable(ctx context.Context, name string) (*schema.Table, error) {
	table := &schema.Table{Name: name}

	err := i.store.Query(ctx, i.store.Dialect().ColumnsQuery(i.store.Schema(), name), func(row Scanner) error {
		var col schema.Column
		var pk bool
		if err := row.Scan(&col.Name, &col.Type, &col.Nullable, &pk); err != nil {
			return err
		}
		if pk {
			table.PrimaryKey = append(table.PrimaryKey, col.Name)
		}
		table.Columns = append(table.Columns, col)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("table %s not found", name)
	}

	count := Statement{SQL: "SELECT count(*) FROM " + i.store.Dialect().Qualify(i.store.Schema(), name)}
	err = i.store.Query(ctx, count, func(row Scanner) error {
		return row.Scan(&table.RowCount)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	return table, nil
}

// Describe assembles catalog entries and physical table details for the given
// table identifiers. If ids is empty, every registered dataset is described.
func (i *Inspector) Describe(ctx context.Context, ids []string) ([]schema.Dataset, error) {
	var sources []schema.SourceEntry
	if len(ids) == 0 {
		all, err := i.Sources(ctx)
		if err != nil {
			return nil, err
		}
		sources = all
	} else {
		for _, id := range ids {
			src, err := i.Source(ctx, id)
			if err != nil {
				return nil, err
			}
			if src == nil {
				return nil, fmt.Errorf("dataset %s is not loaded", id)
			}
			sources = append(sources, *src)
		}
	}

	datasets := make([]schema.Dataset, 0, len(sources))
	for _, src := range sources {
		key := schema.DatasetKey{Source: src.Name, Version: src.Version, Granularity: src.Granularity}
		vars, err := i.Variables(ctx, key)
		if err != nil {
			return nil, err
		}
		table, err := i.DescribeTable(ctx, src.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to describe %s: %w", src.ID, err)
		}
		datasets = append(datasets, schema.Dataset{Source: src, Variables: vars, Table: table})
	}
	return datasets, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
