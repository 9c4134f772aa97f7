package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// sqliteParams serialize writers up front so concurrent loads wait instead of failing with SQLITE_BUSY
const sqliteParams = "_busy_timeout=10000&_txlock=immediate"

// SQLiteDialect is the SQLite flavour. DDL is transactional; schemas are not used.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (d SQLiteDialect) Qualify(schemaName, table string) string {
	if schemaName == "" {
		return d.Quote(table)
	}
	return d.Quote(schemaName) + "." + d.Quote(table)
}

func (SQLiteDialect) Placeholder(int) string     { return "?" }
func (SQLiteDialect) KeyType() string            { return "integer" }
func (SQLiteDialect) TextType() string           { return "varchar(255)" }
func (SQLiteDialect) TransactionalDDL() bool     { return true }
func (SQLiteDialect) CreateSchema(string) string { return "" }

func (SQLiteDialect) IsConflict(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code == sqlite3.ErrConstraint {
		return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return se.Code == sqlite3.ErrError && strings.Contains(se.Error(), "already exists")
}

func (SQLiteDialect) ColumnsQuery(_, table string) Statement {
	return Statement{
		SQL:  `SELECT name, type, "notnull" = 0, pk > 0 FROM pragma_table_info(?) ORDER BY cid`,
		Args: []any{table},
	}
}

func (SQLiteDialect) TableExistsQuery(_, table string) Statement {
	return Statement{
		SQL:  `SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
		Args: []any{table},
	}
}

// NewSQLiteStore opens a SQLite database file
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&" + sqliteParams
	} else {
		dsn += "?" + sqliteParams
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewSQLStore(db, SQLiteDialect{}, ""), nil
}
