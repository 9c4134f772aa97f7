package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/sdohload/internal/schema"
	"github.com/tordrt/sdohload/internal/tabular"
)

func descriptorTable(rows ...[]string) *tabular.Table {
	return &tabular.Table{Header: []string{"variable", "description"}, Rows: rows}
}

func TestValidateDescriptor(t *testing.T) {
	desc := descriptorTable(
		[]string{"Med Inc", "Median income"},
		[]string{"POV-RATE", ""},
		[]string{"uninsured_pct", "Percent uninsured"},
	)

	vars, err := ValidateDescriptor(desc, schema.Tract, 2020)
	require.NoError(t, err)
	assert.Equal(t, []schema.Variable{
		{Name: "med_inc", Description: "Median income"},
		{Name: "pov-rate", Description: ""},
		{Name: "uninsured_pct", Description: "Percent uninsured"},
	}, vars)
}

func TestValidateDescriptorErrors(t *testing.T) {
	tests := []struct {
		name        string
		table       *tabular.Table
		granularity schema.Granularity
		year        int
		wantErr     error
		wantInMsg   string
	}{
		{
			name:        "missing description column",
			table:       &tabular.Table{Header: []string{"variable"}, Rows: [][]string{{"a"}}},
			granularity: schema.County,
			year:        2010,
			wantErr:     ErrSchema,
		},
		{
			name:        "missing variable column",
			table:       &tabular.Table{Header: []string{"name", "description"}},
			granularity: schema.County,
			year:        2010,
			wantErr:     ErrSchema,
		},
		{
			name:        "unknown granularity",
			table:       descriptorTable([]string{"a", "b"}),
			granularity: "state",
			year:        2010,
			wantErr:     ErrDomain,
			wantInMsg:   "state",
		},
		{
			name:        "unsupported census year",
			table:       descriptorTable([]string{"a", "b"}),
			granularity: schema.Zip,
			year:        2000,
			wantErr:     ErrDomain,
			wantInMsg:   "2000",
		},
		{
			name:        "illegal character",
			table:       descriptorTable([]string{"income$", "b"}),
			granularity: schema.Zip,
			year:        2020,
			wantErr:     ErrNaming,
			wantInMsg:   "income$",
		},
		{
			name:        "empty name",
			table:       descriptorTable([]string{"  ", "b"}),
			granularity: schema.Zip,
			year:        2020,
			wantErr:     ErrNaming,
		},
		{
			name:        "duplicate after normalization",
			table:       descriptorTable([]string{"Med Inc", "first"}, []string{"med_inc", "second"}),
			granularity: schema.BlockGroup,
			year:        2020,
			wantErr:     ErrNaming,
			wantInMsg:   "med_inc",
		},
		{
			name:        "name too long",
			table:       descriptorTable([]string{strings.Repeat("x", MaxIdentifierLength+1), "b"}),
			granularity: schema.Tract,
			year:        2020,
			wantErr:     ErrNaming,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateDescriptor(tt.table, tt.granularity, tt.year)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
			if tt.wantInMsg != "" {
				assert.Contains(t, err.Error(), tt.wantInMsg)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"Med Inc":      "med_inc",
		" padded ":     "padded",
		"tab\tsep":     "tab_sep",
		"Two  Spaces":  "two__spaces",
		"already_ok-1": "already_ok-1",
	}
	for in, want := range tests {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateKey(t *testing.T) {
	ok := schema.DatasetKey{Source: "places", Version: "2022", Granularity: schema.Tract}
	assert.NoError(t, ValidateKey(ok))

	bad := schema.DatasetKey{Source: "places; drop", Version: "2022", Granularity: schema.Tract}
	assert.ErrorIs(t, ValidateKey(bad), ErrNaming)

	missing := schema.DatasetKey{Version: "2022", Granularity: schema.Tract}
	assert.ErrorIs(t, ValidateKey(missing), ErrDomain)
}
