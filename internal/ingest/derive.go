package ingest

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tordrt/sdohload/internal/schema"
	"github.com/tordrt/sdohload/internal/tabular"
)

// MaxDataColumns is the store's per-table column limit less the key column
const MaxDataColumns = 1599

// Derived is a validated data table: its data columns and its rows keyed by geographic id
type Derived struct {
	Columns []string
	Records []schema.Record
	// Dropped counts rows removed because every field repeated an earlier row
	Dropped int
}

// DeriveSchema validates a data table for loading.
//
// Rows that repeat an earlier row in every field are dropped first; after
// that, two rows sharing a geographic id is an error. The key column is
// removed from the data columns. Empty cells become NULL.
func DeriveSchema(t *tabular.Table, geoIDColumn string) (*Derived, error) {
	header := make([]string, len(t.Header))
	for i, h := range t.Header {
		header[i] = NormalizeName(h)
	}

	keyName := NormalizeName(geoIDColumn)
	keyIdx := -1
	for i, h := range header {
		if h == keyName {
			keyIdx = i
			break
		}
	}
	if keyIdx < 0 {
		return nil, newError(KindSchema, "geographic id column %q not found in data file", geoIDColumn)
	}

	dataIdx := make([]int, 0, len(header)-1)
	for i := range header {
		if i != keyIdx {
			dataIdx = append(dataIdx, i)
		}
	}

	// full-row duplicates go first, then the key must be unique
	seenRows := make(map[string]struct{}, len(t.Rows))
	seenKeys := make(map[int64]struct{}, len(t.Rows))
	records := make([]schema.Record, 0, len(t.Rows))
	dropped := 0
	for n, row := range t.Rows {
		rawKey := strings.TrimSpace(row[keyIdx])
		key, err := strconv.ParseInt(rawKey, 10, 64)
		if err != nil {
			return nil, newError(KindSchema, "row %d: geographic id %q is not an integer", n+1, rawKey)
		}

		fingerprint := rowFingerprint(key, row, dataIdx)
		if _, dup := seenRows[fingerprint]; dup {
			dropped++
			continue
		}
		seenRows[fingerprint] = struct{}{}

		if _, dup := seenKeys[key]; dup {
			return nil, newError(KindDuplicateKey, "geographic id %d appears in rows with different values", key)
		}
		seenKeys[key] = struct{}{}

		values := make([]*string, len(dataIdx))
		for j, idx := range dataIdx {
			v := strings.TrimSpace(row[idx])
			if v == "" {
				continue
			}
			if utf8.RuneCountInString(v) > schema.MaxTextLength {
				return nil, newError(KindSchema, "geographic id %d: value of %q exceeds %d characters", key, header[idx], schema.MaxTextLength)
			}
			values[j] = &v
		}
		records = append(records, schema.Record{Key: key, Values: values})
	}

	columns := make([]string, len(dataIdx))
	seenCols := make(map[string]struct{}, len(dataIdx))
	for j, idx := range dataIdx {
		name := header[idx]
		if err := ValidateIdentifier(name); err != nil {
			return nil, err
		}
		if _, dup := seenCols[name]; dup {
			return nil, newError(KindNaming, "duplicate column %q", name)
		}
		seenCols[name] = struct{}{}
		columns[j] = name
	}

	if len(columns) > MaxDataColumns {
		return nil, newError(KindColumnLimit,
			"%d variables; tables support at most %d, split the data into multiple datasets", len(columns), MaxDataColumns)
	}

	return &Derived{Columns: columns, Records: records, Dropped: dropped}, nil
}

func rowFingerprint(key int64, row []string, dataIdx []int) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(key, 10))
	for _, idx := range dataIdx {
		b.WriteByte(0)
		b.WriteString(strings.TrimSpace(row[idx]))
	}
	return b.String()
}
