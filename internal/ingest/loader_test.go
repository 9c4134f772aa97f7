package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/sdohload/internal/db"
	"github.com/tordrt/sdohload/internal/schema"
)

var testKey = schema.DatasetKey{Source: "test", Version: "2023", Granularity: schema.Tract}

func TestDeriveTableDDL(t *testing.T) {
	tests := []struct {
		name    string
		dialect db.Dialect
		schema  string
		want    string
	}{
		{
			name:    "postgres",
			dialect: db.PostgresDialect{},
			schema:  "sdoh",
			want:    `CREATE TABLE "sdoh"."test_2023_tract" ("TRACTFIPS" bigint PRIMARY KEY, "med_inc" varchar(255), "pov-rate" varchar(255))`,
		},
		{
			name:    "sqlite",
			dialect: db.SQLiteDialect{},
			want:    `CREATE TABLE "test_2023_tract" ("TRACTFIPS" integer PRIMARY KEY, "med_inc" varchar(255), "pov-rate" varchar(255))`,
		},
		{
			name:    "mysql",
			dialect: db.MySQLDialect{},
			want:    "CREATE TABLE `test_2023_tract` (`TRACTFIPS` bigint PRIMARY KEY, `med_inc` text, `pov-rate` text)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewTableLoader(tt.dialect, tt.schema, 100)
			st, err := l.DeriveTableDDL(l.WideTable(testKey, []string{"med_inc", "pov-rate"}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.SQL)
			assert.Empty(t, st.Args)
		})
	}
}

func TestDeriveTableDDLRejectsUnsafeIdentifiers(t *testing.T) {
	l := NewTableLoader(db.PostgresDialect{}, "sdoh", 100)

	_, err := l.DeriveTableDDL(l.WideTable(testKey, []string{`x" varchar(1)); DROP TABLE sdoh; --`}))
	assert.ErrorIs(t, err, ErrNaming)

	_, err = l.DeriveTableDDL(l.WideTable(testKey, []string{"tractfips"}))
	assert.ErrorIs(t, err, ErrNaming)

	bad := schema.DatasetKey{Source: "a b", Version: "1", Granularity: schema.Zip}
	_, err = l.DeriveTableDDL(l.WideTable(bad, []string{"v"}))
	assert.ErrorIs(t, err, ErrNaming)
}

func TestBatchInsert(t *testing.T) {
	l := NewTableLoader(db.PostgresDialect{}, "sdoh", 2)
	v := "50000"
	records := []schema.Record{
		{Key: 12345, Values: []*string{&v, nil}},
		{Key: 67890, Values: []*string{nil, nil}},
	}

	b, err := l.BatchInsert(l.WideTable(testKey, []string{"med_inc", "poverty"}), records)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "sdoh"."test_2023_tract" ("TRACTFIPS", "med_inc", "poverty") VALUES ($1, $2, $3)`, b.SQL)
	assert.Equal(t, 2, b.Size)
	assert.Equal(t, [][]any{
		{int64(12345), "50000", nil},
		{int64(67890), nil, nil},
	}, b.Rows)
}

func TestBatchInsertRejectsShortRecords(t *testing.T) {
	l := NewTableLoader(db.SQLiteDialect{}, "", 10)
	_, err := l.BatchInsert(l.WideTable(testKey, []string{"a", "b"}), []schema.Record{{Key: 1, Values: []*string{nil}}})
	assert.ErrorIs(t, err, ErrSchema)
}

func TestDropTable(t *testing.T) {
	l := NewTableLoader(db.MySQLDialect{}, "", 10)
	st := l.DropTable(l.WideTable(testKey, nil))
	assert.Equal(t, "DROP TABLE IF EXISTS `test_2023_tract`", st.SQL)
}

func TestCatalogWriter(t *testing.T) {
	w := NewCatalogWriter(db.PostgresDialect{}, "sdoh", 500)

	src := w.StageSourceEntry(SourceEntryFor(testKey, "https://example.org", "Test data", 2020))
	assert.Equal(t,
		`INSERT INTO "sdoh"."sdoh_source" ("id", "name", "version", "url", "description", "granularity", "census_year") VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		src.SQL)
	assert.Equal(t, []any{"test_2023_tract", "test", "2023", "https://example.org", "Test data", "tract", 2020}, src.Args)

	vars := []schema.Variable{{Name: "med_inc", Description: "Median income"}, {Name: "poverty"}}
	cat := w.StageCatalogEntries(CatalogEntriesFor(vars, testKey, 2020))
	assert.Equal(t,
		`INSERT INTO "sdoh"."sdoh" ("id", "description", "census_year", "level", "source", "version") VALUES ($1, $2, $3, $4, $5, $6)`,
		cat.SQL)
	assert.Equal(t, [][]any{
		{"med_inc", "Median income", 2020, "tract", "test", "2023"},
		{"poverty", "", 2020, "tract", "test", "2023"},
	}, cat.Rows)
	assert.Equal(t, 500, cat.Size)

	removal := w.StageRemoval(testKey)
	require.Len(t, removal, 2)
	assert.Equal(t, `DELETE FROM "sdoh"."sdoh" WHERE "source" = $1 AND "version" = $2 AND "level" = $3`, removal[0].SQL)
	assert.Equal(t, []any{"test_2023_tract"}, removal[1].Args)
}
