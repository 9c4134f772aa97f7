package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
datasets:
  - name: places
    source: places
    version: "2023"
    census_year: 2020
    granularity: tract
    geo_id_column: LocationID
    url: https://example.org/places.zip
    description: PLACES local health estimates
    descriptor: places/descriptor.csv
    data: places/data.csv
  - name: ruca
    source: ruca
    version: "2010"
    census_year: 2010
    granularity: tract
    geo_id_column: TRACTFIPS
    descriptor: ruca/descriptor.csv
    data: ruca/data.xlsx
`

func TestParse(t *testing.T) {
	r, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, r.Datasets, 2)

	places := r.Datasets[0]
	assert.Equal(t, "2023", places.Version)
	assert.Equal(t, 2020, places.CensusYear)
	assert.Equal(t, "places_2023_tract", places.Key().TableName())
	assert.Equal(t, []string{"places", "ruca"}, r.Names())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "datasets: []", "no datasets"},
		{"unknown field", "datasets:\n  - name: a\n    colour: red\n", "colour"},
		{"missing fields", "datasets:\n  - name: a\n    source: a\n", "missing data, descriptor, geo_id_column, granularity, version"},
		{
			"duplicate name",
			"datasets:\n" +
				"  - {name: a, source: a, version: '1', granularity: tract, geo_id_column: g, descriptor: d, data: x}\n" +
				"  - {name: a, source: b, version: '1', granularity: tract, geo_id_column: g, descriptor: d, data: x}\n",
			"listed twice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSelect(t *testing.T) {
	r, err := Parse([]byte(sample))
	require.NoError(t, err)

	all, err := r.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := r.Select([]string{"ruca"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "ruca", some[0].Name)

	_, err = r.Select([]string{"svi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "svi is not a valid SDoH dataset")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datasets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, r.Datasets, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestShippedRegistry(t *testing.T) {
	r, err := Load(filepath.Join("..", "..", "datasets.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"places", "ahrq", "fea", "cre", "ruca", "hl"}, r.Names())
	for _, d := range r.Datasets {
		assert.True(t, d.Key().Granularity.Valid(), d.Name)
	}
}
