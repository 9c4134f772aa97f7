package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation = "23505"
	pgDuplicateTable  = "42P07"
)

// PostgresDialect is the PostgreSQL flavour. DDL is transactional.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) Quote(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}

func (PostgresDialect) Qualify(schemaName, table string) string {
	if schemaName == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schemaName, table}.Sanitize()
}

func (PostgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (PostgresDialect) KeyType() string          { return "bigint" }
func (PostgresDialect) TextType() string         { return "varchar(255)" }
func (PostgresDialect) TransactionalDDL() bool   { return true }

func (PostgresDialect) IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation || pgErr.Code == pgDuplicateTable
	}
	return false
}

func (d PostgresDialect) CreateSchema(schemaName string) string {
	if schemaName == "" {
		return ""
	}
	return "CREATE SCHEMA IF NOT EXISTS " + d.Quote(schemaName)
}

func (PostgresDialect) ColumnsQuery(schemaName, table string) Statement {
	return Statement{
		SQL: `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES',
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name
					AND tc.table_schema = kcu.table_schema
				WHERE tc.constraint_type = 'PRIMARY KEY'
					AND tc.table_schema = c.table_schema
					AND tc.table_name = c.table_name
					AND kcu.column_name = c.column_name
			)
		FROM information_schema.columns c
		WHERE c.table_schema = COALESCE(NULLIF($1, ''), current_schema()) AND c.table_name = $2
		ORDER BY c.ordinal_position
	`,
		Args: []any{schemaName, table},
	}
}

func (PostgresDialect) TableExistsQuery(schemaName, table string) Statement {
	return Statement{
		SQL: `
		SELECT count(*)
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema()) AND table_name = $2
	`,
		Args: []any{schemaName, table},
	}
}

// PostgresStore manages a pool of PostgreSQL connections
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(ctx context.Context, connString, schemaName string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool, schema: schemaName}, nil
}

func (s *PostgresStore) Dialect() Dialect { return PostgresDialect{} }
func (s *PostgresStore) Schema() string   { return s.schema }

// GetPool returns the underlying connection pool
func (s *PostgresStore) GetPool() *pgxpool.Pool { return s.pool }

// Close closes every pooled connection
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &postgresTx{tx: tx}, nil
}

func (s *PostgresStore) Exec(ctx context.Context, st Statement) error {
	_, err := s.pool.Exec(ctx, st.SQL, st.Args...)
	return err
}

func (s *PostgresStore) Query(ctx context.Context, st Statement, fn func(Scanner) error) error {
	rows, err := s.pool.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) Exec(ctx context.Context, st Statement) error {
	_, err := t.tx.Exec(ctx, st.SQL, st.Args...)
	return err
}

// ExecBatch queues the template once per row and sends the queue in round trips of b.Size rows
func (t *postgresTx) ExecBatch(ctx context.Context, b Batch) error {
	size := batchSize(b)
	for start := 0; start < len(b.Rows); start += size {
		end := min(start+size, len(b.Rows))

		batch := &pgx.Batch{}
		for _, row := range b.Rows[start:end] {
			batch.Queue(b.SQL, row...)
		}

		results := t.tx.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		if err := results.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (t *postgresTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *postgresTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
