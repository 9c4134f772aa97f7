package ingest

import (
	"strings"

	"github.com/tordrt/sdohload/internal/schema"
	"github.com/tordrt/sdohload/internal/tabular"
)

const (
	variableColumn    = "variable"
	descriptionColumn = "description"
)

// ValidateDescriptor checks a variable-description table and returns its
// variables in descriptor order.
//
// Names are normalized before validation. Two rows that normalize to the same
// name are rejected rather than merged.
func ValidateDescriptor(t *tabular.Table, granularity schema.Granularity, censusYear int) ([]schema.Variable, error) {
	if err := ValidateDomain(granularity, censusYear); err != nil {
		return nil, err
	}

	varIdx, descIdx := headerIndex(t, variableColumn), headerIndex(t, descriptionColumn)
	if varIdx < 0 || descIdx < 0 {
		return nil, newError(KindSchema, "variable description file must have columns for 'variable' and 'description'")
	}

	vars := make([]schema.Variable, 0, len(t.Rows))
	seen := make(map[string]string, len(t.Rows))
	for _, row := range t.Rows {
		raw := row[varIdx]
		name := NormalizeName(raw)
		if err := ValidateIdentifier(name); err != nil {
			return nil, err
		}
		if prev, ok := seen[name]; ok {
			return nil, newError(KindNaming, "duplicate variable %q (from %q and %q)", name, prev, raw)
		}
		seen[name] = raw
		vars = append(vars, schema.Variable{Name: name, Description: strings.TrimSpace(row[descIdx])})
	}
	return vars, nil
}

func headerIndex(t *tabular.Table, name string) int {
	for i, h := range t.Header {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}
