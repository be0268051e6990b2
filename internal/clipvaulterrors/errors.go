// Package clipvaulterrors holds the sentinel errors shared across store,
// fulltext, fuzzy, search and query packages, plus a machine-readable error
// classification for the search API contract.
package clipvaulterrors

import "errors"

// Sentinel errors, matched with errors.Is by callers. Each is wrapped with
// %w at its origin so context survives up the call stack.
var (
	// ErrNotFound is returned when a lookup by id or hash has no match.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateHash indicates a write raced another insert of the same
	// content_hash; callers should retry as a dedup lookup.
	ErrDuplicateHash = errors.New("duplicate content hash")

	// ErrPathViolation indicates a storage_ref does not resolve under
	// <db_dir>/content/.
	ErrPathViolation = errors.New("storage path escapes content directory")

	// ErrExternalIO indicates an external blob read/write failed.
	ErrExternalIO = errors.New("external blob io failed")

	// ErrStorageBusy indicates SQLITE_BUSY was returned after retries were
	// exhausted.
	ErrStorageBusy = errors.New("storage busy")

	// ErrStorageCorrupted is returned by Store.Upsert while the store's
	// corruption flag is set. No code in this module sets that flag, and
	// writes other than Upsert do not check it.
	ErrStorageCorrupted = errors.New("storage corrupted")

	// ErrInvalidQuery indicates a regex query failed to compile, or a query
	// has no searchable terms (empty or punctuation only).
	ErrInvalidQuery = errors.New("invalid query")

	// ErrTimeout indicates a search exceeded its deadline.
	ErrTimeout = errors.New("search timed out")

	// ErrCancelled indicates a search was superseded or aborted.
	ErrCancelled = errors.New("search cancelled")

	// ErrClosed indicates an operation was attempted on a closed Store or
	// SearchEngine.
	ErrClosed = errors.New("already closed")

	// ErrSnapshotCorrupt indicates a disk-cached index snapshot failed
	// checksum verification, header (magic/version) validation or decoding.
	ErrSnapshotCorrupt = errors.New("index snapshot corrupt")
)

// Kind is the machine-readable error classification from spec §7.
type Kind string

const (
	KindInvalidQuery     Kind = "invalid_query"
	KindTimeout          Kind = "timeout"
	KindCancelled        Kind = "cancelled"
	KindStorageBusy      Kind = "storage_busy"
	KindStorageCorrupted Kind = "storage_corrupted"
	KindExternalIO       Kind = "external_io"
	KindPathViolation    Kind = "path_violation"
)

// SearchError wraps an underlying error with a Kind so callers can branch on
// classification without string-matching error text.
type SearchError struct {
	Kind Kind
	Err  error
}

func (e *SearchError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}

	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// NewSearchError builds a *SearchError classifying err under kind.
func NewSearchError(kind Kind, err error) *SearchError {
	return &SearchError{Kind: kind, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) a *SearchError,
// falling back to inspecting well-known sentinels, and otherwise returns "".
func KindOf(err error) Kind {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Kind
	}

	switch {
	case errors.Is(err, ErrInvalidQuery):
		return KindInvalidQuery
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrStorageBusy):
		return KindStorageBusy
	case errors.Is(err, ErrStorageCorrupted):
		return KindStorageCorrupted
	case errors.Is(err, ErrExternalIO):
		return KindExternalIO
	case errors.Is(err, ErrPathViolation):
		return KindPathViolation
	default:
		return ""
	}
}
