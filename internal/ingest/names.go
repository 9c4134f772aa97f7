package ingest

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/tordrt/sdohload/internal/schema"
)

// MaxIdentifierLength is PostgreSQL's identifier limit; longer names would be silently truncated
const MaxIdentifierLength = 63

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// NormalizeName replaces whitespace with underscores and lowercases the result,
// so the name stored in the catalog is the one the store resolves the column by.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, name)
	return strings.ToLower(name)
}

// ValidateIdentifier checks name against the identifier allow-list. Nothing
// reaches a schema-definition statement without passing it.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return newError(KindNaming, "names must be alphanumeric (with dash/underscore): %q", name)
	}
	if len(name) > MaxIdentifierLength {
		return newError(KindNaming, "name longer than %d characters: %q", MaxIdentifierLength, name)
	}
	return nil
}

// ValidateDomain checks granularity and census year against their allowed values
func ValidateDomain(granularity schema.Granularity, censusYear int) error {
	if !granularity.Valid() {
		return newError(KindDomain, "granularity must be one of 'zip', 'county', 'tract', or 'blockgroup', got %q", granularity)
	}
	if !schema.ValidCensusYear(censusYear) {
		return newError(KindDomain, "census boundary year must be 2010 or 2020, got %d", censusYear)
	}
	return nil
}

// ValidateKey checks a dataset key and the table name it derives
func ValidateKey(key schema.DatasetKey) error {
	if key.Source == "" || key.Version == "" {
		return newError(KindDomain, "source and version are required")
	}
	for _, part := range []string{key.Source, key.Version, key.TableName()} {
		if err := ValidateIdentifier(part); err != nil {
			return err
		}
	}
	return nil
}
