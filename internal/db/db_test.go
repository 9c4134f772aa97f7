package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tordrt/sdohload/internal/schema"
)

func openSQLite(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open SQLite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEnsureCatalogIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)

	for i := 0; i < 2; i++ {
		if err := EnsureCatalog(ctx, store); err != nil {
			t.Fatalf("EnsureCatalog run %d failed: %v", i+1, err)
		}
	}

	inspector := NewInspector(store)
	for _, name := range []string{schema.SourceTable, schema.CatalogTable} {
		exists, err := inspector.TableExists(ctx, name)
		if err != nil {
			t.Fatalf("TableExists failed: %v", err)
		}
		if !exists {
			t.Errorf("Expected table %s to exist", name)
		}
	}

	catalog, err := inspector.DescribeTable(ctx, schema.CatalogTable)
	if err != nil {
		t.Fatalf("DescribeTable failed: %v", err)
	}
	wantPK := []string{"id", "source", "version"}
	if len(catalog.PrimaryKey) != len(wantPK) {
		t.Fatalf("Expected primary key %v, got %v", wantPK, catalog.PrimaryKey)
	}
	for i, pk := range wantPK {
		if catalog.PrimaryKey[i] != pk {
			t.Errorf("Expected primary key %v, got %v", wantPK, catalog.PrimaryKey)
		}
	}

	sources, err := inspector.Sources(ctx)
	if err != nil {
		t.Fatalf("Sources failed: %v", err)
	}
	if len(sources) != 0 {
		t.Errorf("Expected empty catalog, got %d sources", len(sources))
	}
}

func TestSQLiteConflictClassification(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)
	if err := EnsureCatalog(ctx, store); err != nil {
		t.Fatal(err)
	}
	d := store.Dialect()

	insert := Statement{
		SQL:  InsertSQL(d, "", schema.SourceTable, SourceColumns),
		Args: []any{"a_1_zip", "a", "1", "", "", "zip", 2020},
	}
	if err := store.Exec(ctx, insert); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	err := store.Exec(ctx, insert)
	if err == nil || !d.IsConflict(err) {
		t.Errorf("Expected duplicate primary key to be a conflict, got %v", err)
	}

	create := Statement{SQL: `CREATE TABLE "dup" (x integer)`}
	if err := store.Exec(ctx, create); err != nil {
		t.Fatal(err)
	}
	err = store.Exec(ctx, create)
	if err == nil || !d.IsConflict(err) {
		t.Errorf("Expected existing table to be a conflict, got %v", err)
	}

	err = store.Exec(ctx, Statement{SQL: `SELECT * FROM "missing"`})
	if err == nil || d.IsConflict(err) {
		t.Errorf("Expected missing table not to be a conflict, got %v", err)
	}
}

func TestSQLiteTransactionBatches(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)
	if err := store.Exec(ctx, Statement{SQL: `CREATE TABLE "t" ("k" integer PRIMARY KEY, "v" varchar(255))`}); err != nil {
		t.Fatal(err)
	}

	rows := [][]any{{int64(1), "a"}, {int64(2), nil}, {int64(3), "c"}}
	batch := Batch{SQL: InsertSQL(store.Dialect(), "", "t", []string{"k", "v"}), Rows: rows, Size: 2}

	// rolled back batches leave nothing behind
	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.ExecBatch(ctx, batch); err != nil {
		t.Fatalf("ExecBatch failed: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatal(err)
	}
	table, err := NewInspector(store).DescribeTable(ctx, "t")
	if err != nil {
		t.Fatal(err)
	}
	if table.RowCount != 0 {
		t.Errorf("Expected 0 rows after rollback, got %d", table.RowCount)
	}

	tx, err = store.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.ExecBatch(ctx, batch); err != nil {
		t.Fatalf("ExecBatch failed: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	table, err = NewInspector(store).DescribeTable(ctx, "t")
	if err != nil {
		t.Fatal(err)
	}
	if table.RowCount != 3 {
		t.Errorf("Expected 3 rows, got %d", table.RowCount)
	}
}

func TestSQLiteTransactionOutlivesBeginContext(t *testing.T) {
	store := openSQLite(t)
	if err := store.Exec(context.Background(), Statement{SQL: `CREATE TABLE "t" ("k" integer PRIMARY KEY)`}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Exec(ctx, Statement{SQL: `INSERT INTO "t" ("k") VALUES (?)`, Args: []any{int64(1)}}); err != nil {
		t.Fatal(err)
	}
	cancel()

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit after cancellation failed: %v", err)
	}
	table, err := NewInspector(store).DescribeTable(context.Background(), "t")
	if err != nil {
		t.Fatal(err)
	}
	if table.RowCount != 1 {
		t.Errorf("Expected 1 row, got %d", table.RowCount)
	}
}

func TestDescribeUnknownDataset(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)
	if err := EnsureCatalog(ctx, store); err != nil {
		t.Fatal(err)
	}

	if _, err := NewInspector(store).Describe(ctx, []string{"nope_1_zip"}); err == nil {
		t.Error("Expected error for unknown dataset")
	}
	if _, err := NewInspector(store).DescribeTable(ctx, "nope"); err == nil {
		t.Error("Expected error for unknown table")
	}
}

func TestDialectQuoting(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		schema  string
		want    string
	}{
		{"postgres qualified", PostgresDialect{}, "sdoh", `"sdoh"."pov-rate"`},
		{"postgres bare", PostgresDialect{}, "", `"pov-rate"`},
		{"sqlite", SQLiteDialect{}, "", `"pov-rate"`},
		{"mysql qualified", MySQLDialect{}, "sdoh", "`sdoh`.`pov-rate`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.Qualify(tt.schema, "pov-rate"); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}

	if got := (PostgresDialect{}).Placeholder(3); got != "$3" {
		t.Errorf("Expected $3, got %s", got)
	}
	if got := (MySQLDialect{}).Quote("a`b"); got != "`a``b`" {
		t.Errorf("Expected escaped backtick, got %s", got)
	}
}

func TestConflictClassification(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		err     error
		want    bool
	}{
		{"postgres unique", PostgresDialect{}, &pgconn.PgError{Code: "23505"}, true},
		{"postgres duplicate table", PostgresDialect{}, &pgconn.PgError{Code: "42P07"}, true},
		{"postgres other", PostgresDialect{}, &pgconn.PgError{Code: "42601"}, false},
		{"mysql duplicate entry", MySQLDialect{}, &mysql.MySQLError{Number: 1062}, true},
		{"mysql table exists", MySQLDialect{}, &mysql.MySQLError{Number: 1050}, true},
		{"mysql other", MySQLDialect{}, &mysql.MySQLError{Number: 1146}, false},
		{"plain error", MySQLDialect{}, errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.IsConflict(tt.err); got != tt.want {
				t.Errorf("IsConflict(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseDatabaseName(t *testing.T) {
	name, err := ParseDatabaseName("user:pass@tcp(localhost:3306)/sdoh")
	if err != nil {
		t.Fatalf("ParseDatabaseName failed: %v", err)
	}
	if name != "sdoh" {
		t.Errorf("Expected sdoh, got %s", name)
	}
	if _, err := ParseDatabaseName("user:pass@tcp(localhost:3306)/"); err == nil {
		t.Error("Expected error for missing database name")
	}
}
