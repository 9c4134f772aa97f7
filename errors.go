package sdohload

import "github.com/tordrt/sdohload/internal/ingest"

// Error is a failed load with its kind. Match kinds with errors.Is against
// the sentinels below.
type Error = ingest.Error

// Load failure kinds
var (
	// ErrSchema: a descriptor or data file is malformed or unreadable
	ErrSchema = ingest.ErrSchema
	// ErrDomain: unknown granularity or census year, or a missing source/version
	ErrDomain = ingest.ErrDomain
	// ErrNaming: a variable, column or table name is not a safe identifier
	ErrNaming = ingest.ErrNaming
	// ErrDuplicateKey: two distinct data rows share a geographic id
	ErrDuplicateKey = ingest.ErrDuplicateKey
	// ErrColumnLimit: the data file has more columns than a table may hold
	ErrColumnLimit = ingest.ErrColumnLimit
	// ErrConflict: the dataset is already loaded
	ErrConflict = ingest.ErrConflict
	// ErrTableExists is reported exactly like ErrConflict
	ErrTableExists = ingest.ErrTableExists
	// ErrStorage: the store failed; the load was rolled back
	ErrStorage = ingest.ErrStorage
)
