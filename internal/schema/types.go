package schema

import (
	"strings"
	"time"
)

// Catalog relation names shared by every dataset
const (
	SourceTable  = "sdoh_source"
	CatalogTable = "sdoh"
)

// MaxTextLength is the cap on every wide-table value
const MaxTextLength = 255

// Granularity is the geographic resolution of a dataset
type Granularity string

const (
	Zip        Granularity = "zip"
	County     Granularity = "county"
	Tract      Granularity = "tract"
	BlockGroup Granularity = "blockgroup"
)

// Granularities lists every accepted granularity in display order
var Granularities = []Granularity{Zip, County, Tract, BlockGroup}

// Valid reports whether g is one of the accepted granularities
func (g Granularity) Valid() bool {
	for _, v := range Granularities {
		if g == v {
			return true
		}
	}
	return false
}

// KeyColumn returns the primary key column of a wide table at this granularity, e.g. TRACTFIPS
func (g Granularity) KeyColumn() string {
	return strings.ToUpper(string(g)) + "FIPS"
}

// CensusYears lists the accepted census boundary years
var CensusYears = []int{2010, 2020}

// ValidCensusYear reports whether y is an accepted census boundary year
func ValidCensusYear(y int) bool {
	for _, v := range CensusYears {
		if y == v {
			return true
		}
	}
	return false
}

// DatasetKey identifies one ingestion unit and its physical table
type DatasetKey struct {
	Source      string
	Version     string
	Granularity Granularity
}

// TableName derives the physical table identifier: source_version_granularity
func (k DatasetKey) TableName() string {
	return k.Source + "_" + k.Version + "_" + string(k.Granularity)
}

func (k DatasetKey) String() string {
	return k.TableName()
}

// Variable is one validated descriptor row
type Variable struct {
	Name        string
	Description string
}

// SourceEntry is one row of the sdoh_source relation
type SourceEntry struct {
	ID          string
	Name        string
	Version     string
	URL         string
	Description string
	Granularity Granularity
	CensusYear  int
}

// CatalogEntry is one row of the sdoh relation
type CatalogEntry struct {
	ID          string
	Description string
	CensusYear  int
	Level       Granularity
	Source      string
	Version     string
}

// WideTable describes a per-dataset physical table
type WideTable struct {
	Name      string
	KeyColumn string
	Columns   []string
}

// Record is one wide-table row. A nil value is stored as NULL.
type Record struct {
	Key    int64
	Values []*string
}

// Table represents a database table as read back from the store
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
	RowCount   int64
}

// Column represents a table column
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Dataset is a loaded dataset as described by the catalog and the store
type Dataset struct {
	Source    SourceEntry
	Variables []CatalogEntry
	Table     *Table
}

// LoadResult is the outcome of one dataset in a batch
type LoadResult struct {
	Name      string
	Table     string
	Success   bool
	State     string
	Message   string
	Variables int
	Rows      int
	Duration  time.Duration
}
