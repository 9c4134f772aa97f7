// Package db provides the backing stores the ingestion engine writes to.
//
// Each backend pairs a connection with a Dialect describing how identifiers
// are quoted, how parameters are bound, and whether schema-definition
// statements can take part in a transaction.
package db

import "context"

// DefaultBatchSize is the number of rows sent per batch when none is configured
const DefaultBatchSize = 1000

// Statement is one SQL statement with bound arguments
type Statement struct {
	SQL  string
	Args []any
}

// Batch is one statement template executed once per row
type Batch struct {
	SQL  string
	Rows [][]any
	Size int
}

// Scanner reads the current row of a result set
type Scanner interface {
	Scan(dest ...any) error
}

// Dialect describes the SQL flavour of a backend
type Dialect interface {
	Name() string
	Quote(ident string) string
	Qualify(schemaName, table string) string
	Placeholder(n int) string
	KeyType() string
	TextType() string
	// TransactionalDDL reports whether CREATE TABLE can share a transaction with the writes around it
	TransactionalDDL() bool
	// IsConflict reports whether err is a uniqueness violation or an already-existing table
	IsConflict(err error) bool
	CreateSchema(schemaName string) string
	ColumnsQuery(schemaName, table string) Statement
	TableExistsQuery(schemaName, table string) Statement
}

// Tx is an open transaction
type Tx interface {
	Exec(ctx context.Context, st Statement) error
	ExecBatch(ctx context.Context, b Batch) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is a connection to a backing store
type Store interface {
	Dialect() Dialect
	Schema() string
	Begin(ctx context.Context) (Tx, error)
	Exec(ctx context.Context, st Statement) error
	Query(ctx context.Context, st Statement, fn func(Scanner) error) error
	Close() error
}

func batchSize(b Batch) int {
	if b.Size <= 0 {
		return DefaultBatchSize
	}
	return b.Size
}
