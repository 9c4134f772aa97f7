//go:build integration
// +build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tordrt/sdohload"
	"github.com/tordrt/sdohload/internal/db"
	"github.com/tordrt/sdohload/internal/ingest"
	"github.com/tordrt/sdohload/internal/schema"
)

// testParams writes a two-variable tract dataset under a source name unique to this run
func testParams(t *testing.T) sdohload.Params {
	t.Helper()
	dir := t.TempDir()
	desc := filepath.Join(dir, "vars.csv")
	data := filepath.Join(dir, "data.csv")
	write(t, desc, "variable,description\nMed Inc,Median household income\nPct Poverty,Percent below poverty\n")
	write(t, data, "GEOID,Med Inc,Pct Poverty\n1001020100,50000,12.5\n1001020200,,8.1\n1001020300,61000,\n")

	return sdohload.Params{
		Source:         fmt.Sprintf("it%d", time.Now().UnixNano()%1e9),
		Version:        "2023",
		CensusYear:     2020,
		Granularity:    "tract",
		GeoIDColumn:    "GEOID",
		URL:            "https://example.org/it",
		Description:    "Integration dataset",
		DescriptorPath: desc,
		DataPath:       data,
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

// cleanupDataset removes a dataset's catalog rows and table after the test
func cleanupDataset(t *testing.T, e *sdohload.Engine, key schema.DatasetKey) {
	t.Helper()
	t.Cleanup(func() {
		ctx := context.Background()
		store := e.Store()
		stmts := ingest.NewCatalogWriter(store.Dialect(), store.Schema(), 0).StageRemoval(key)
		loader := ingest.NewTableLoader(store.Dialect(), store.Schema(), 0)
		stmts = append(stmts, loader.DropTable(loader.WideTable(key, nil)))
		for _, st := range stmts {
			if err := store.Exec(ctx, st); err != nil {
				t.Logf("cleanup of %s: %v", key, err)
			}
		}
	})
}

// verifyDataset checks the catalog and wide table of a loaded test dataset
func verifyDataset(t *testing.T, e *sdohload.Engine, key schema.DatasetKey) {
	t.Helper()
	datasets, err := e.Describe(context.Background(), key.TableName())
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if len(datasets) != 1 {
		t.Fatalf("Expected 1 dataset, got %d", len(datasets))
	}
	d := datasets[0]

	if len(d.Variables) != 2 {
		t.Errorf("Expected 2 variables, got %d", len(d.Variables))
	}
	verifyPrimaryKey(t, d.Table, []string{"TRACTFIPS"})
	verifyColumns(t, d.Table, []string{"TRACTFIPS", "med_inc", "pct_poverty"})
	if d.Table.RowCount != 3 {
		t.Errorf("Expected 3 rows, got %d", d.Table.RowCount)
	}
}

// verifyAbsent checks that nothing of a dataset exists
func verifyAbsent(t *testing.T, e *sdohload.Engine, key schema.DatasetKey) {
	t.Helper()
	ctx := context.Background()
	inspector := db.NewInspector(e.Store())

	src, err := inspector.Source(ctx, key.TableName())
	if err != nil {
		t.Fatalf("Source lookup failed: %v", err)
	}
	if src != nil {
		t.Errorf("Source entry for %s should not exist", key)
	}
	vars, err := inspector.Variables(ctx, key)
	if err != nil {
		t.Fatalf("Variables lookup failed: %v", err)
	}
	if len(vars) != 0 {
		t.Errorf("Expected no catalog entries for %s, got %d", key, len(vars))
	}
	exists, err := inspector.TableExists(ctx, key.TableName())
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if exists {
		t.Errorf("Table %s should not exist", key.TableName())
	}
}

// verifyColumns checks that expected columns exist in a table
func verifyColumns(t *testing.T, table *schema.Table, expectedColumns []string) {
	t.Helper()

	columnMap := make(map[string]bool)
	for _, col := range table.Columns {
		columnMap[col.Name] = true
	}

	for _, colName := range expectedColumns {
		if !columnMap[colName] {
			t.Errorf("Expected column %s not found in %s table", colName, table.Name)
		}
	}
}

// verifyPrimaryKey checks that a table has the expected primary key
func verifyPrimaryKey(t *testing.T, table *schema.Table, expectedPK []string) {
	t.Helper()

	if len(table.PrimaryKey) != len(expectedPK) {
		t.Errorf("Expected primary key %v, got %v", expectedPK, table.PrimaryKey)
		return
	}

	for i, pk := range expectedPK {
		if table.PrimaryKey[i] != pk {
			t.Errorf("Expected primary key %v, got %v", expectedPK, table.PrimaryKey)
			return
		}
	}
}

// runLoadSuite exercises load, conflict and rollback against one backend
func runLoadSuite(t *testing.T, url string) {
	ctx := context.Background()

	e, err := sdohload.Open(ctx, url, nil)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", url, err)
	}
	defer e.Close()

	t.Run("load", func(t *testing.T) {
		p := testParams(t)
		cleanupDataset(t, e, p.Key())

		ok, msg := e.LoadDataset(ctx, p)
		if !ok {
			t.Fatalf("Load failed: %s", msg)
		}
		verifyDataset(t, e, p.Key())

		ok, msg = e.LoadDataset(ctx, p)
		if ok {
			t.Fatal("Expected second load to conflict")
		}
		t.Logf("second load: %s", msg)
		verifyDataset(t, e, p.Key())
	})

	t.Run("duplicate key rolls back", func(t *testing.T) {
		p := testParams(t)
		cleanupDataset(t, e, p.Key())
		write(t, p.DataPath, "GEOID,Med Inc,Pct Poverty\n1,1,1\n1,2,2\n")

		o := e.Load(ctx, p)
		if o.Success() {
			t.Fatal("Expected duplicate key failure")
		}
		verifyAbsent(t, e, p.Key())
	})

	t.Run("concurrent loads of one key", func(t *testing.T) {
		p := testParams(t)
		cleanupDataset(t, e, p.Key())

		results := make(chan bool, 4)
		for i := 0; i < 4; i++ {
			go func() {
				ok, _ := e.LoadDataset(ctx, p)
				results <- ok
			}()
		}
		wins := 0
		for i := 0; i < 4; i++ {
			if <-results {
				wins++
			}
		}
		if wins != 1 {
			t.Errorf("Expected exactly one successful load, got %d", wins)
		}
		verifyDataset(t, e, p.Key())
	})
}
