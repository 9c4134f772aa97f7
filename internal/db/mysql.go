package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const (
	mysqlDupEntry    = 1062
	mysqlTableExists = 1050
)

// MySQLDialect is the MySQL flavour. CREATE TABLE commits implicitly, so
// table creation cannot be rolled back with the writes around it.
type MySQLDialect struct{}

func (MySQLDialect) Name() string { return "mysql" }

func (MySQLDialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (d MySQLDialect) Qualify(schemaName, table string) string {
	if schemaName == "" {
		return d.Quote(table)
	}
	return d.Quote(schemaName) + "." + d.Quote(table)
}

func (MySQLDialect) Placeholder(int) string { return "?" }
func (MySQLDialect) KeyType() string        { return "bigint" }

// TextType is TEXT rather than varchar(255): 1599 varchar(255) columns overflow
// InnoDB's 65535-byte row limit. Value length is capped before insert instead.
func (MySQLDialect) TextType() string           { return "text" }
func (MySQLDialect) TransactionalDDL() bool     { return false }
func (MySQLDialect) CreateSchema(string) string { return "" }

func (MySQLDialect) IsConflict(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDupEntry || me.Number == mysqlTableExists
	}
	return false
}

func (MySQLDialect) ColumnsQuery(schemaName, table string) Statement {
	return Statement{
		SQL: `
		SELECT column_name, data_type, is_nullable = 'YES', column_key = 'PRI'
		FROM information_schema.columns
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_name = ?
		ORDER BY ordinal_position
	`,
		Args: []any{schemaName, table},
	}
}

func (MySQLDialect) TableExistsQuery(schemaName, table string) Statement {
	return Statement{
		SQL: `
		SELECT count(*)
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_name = ?
	`,
		Args: []any{schemaName, table},
	}
}

// NewMySQLStore creates a new MySQL store
func NewMySQLStore(ctx context.Context, connString, schemaName string) (*SQLStore, error) {
	db, err := sql.Open("mysql", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewSQLStore(db, MySQLDialect{}, schemaName), nil
}

// ParseDatabaseName extracts the database name from a MySQL connection string
func ParseDatabaseName(connString string) (string, error) {
	cfg, err := mysql.ParseDSN(connString)
	if err != nil {
		return "", fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("connection string names no database")
	}
	return cfg.DBName, nil
}
