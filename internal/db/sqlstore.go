package db

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLStore is a Store over database/sql, shared by the SQLite and MySQL backends
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	schema  string
}

// NewSQLStore wraps an open database handle
func NewSQLStore(db *sql.DB, dialect Dialect, schemaName string) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, schema: schemaName}
}

func (s *SQLStore) Dialect() Dialect { return s.dialect }
func (s *SQLStore) Schema() string   { return s.schema }

// GetDB returns the underlying database connection
func (s *SQLStore) GetDB() *sql.DB { return s.db }

// Close closes the database connection
func (s *SQLStore) Close() error { return s.db.Close() }

// Begin opens a transaction that only Commit or Rollback ends. Statements
// inside it still observe their own contexts.
func (s *SQLStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

func (s *SQLStore) Exec(ctx context.Context, st Statement) error {
	_, err := s.db.ExecContext(ctx, st.SQL, st.Args...)
	return err
}

func (s *SQLStore) Query(ctx context.Context, st Statement, fn func(Scanner) error) error {
	rows, err := s.db.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Exec(ctx context.Context, st Statement) error {
	_, err := t.tx.ExecContext(ctx, st.SQL, st.Args...)
	return err
}

// ExecBatch prepares the template once and executes it per row,
// checking for cancellation between batches of b.Size rows
func (t *sqlTx) ExecBatch(ctx context.Context, b Batch) error {
	if len(b.Rows) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(ctx, b.SQL)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	size := batchSize(b)
	for i, row := range b.Rows {
		if i%size == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return nil
}

func (t *sqlTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *sqlTx) Rollback(context.Context) error { return t.tx.Rollback() }
