// Package store implements the durable, content-addressed clipboard record
// store: SQLite-backed rows plus an external-content FTS index, inline vs.
// external blob storage, deduplication, pinning and cleanup.
package store

import (
	"time"

	"github.com/google/uuid"
)

// RecordType enumerates the clipboard content kinds a Record can hold.
type RecordType string

const (
	TypeText  RecordType = "text"
	TypeRTF   RecordType = "rtf"
	TypeHTML  RecordType = "html"
	TypeImage RecordType = "image"
	TypeFile  RecordType = "file"
)

// Record is the stored unit: one clipboard history entry.
type Record struct {
	ID           uuid.UUID
	Type         RecordType
	ContentHash  string
	PlainText    string
	Note         string
	AppBundleID  string
	CreatedAt    time.Time
	LastUsedAt   time.Time
	UseCount     int64
	IsPinned     bool
	SizeBytes    int64
	StorageRef   string // empty => inline payload
	ThumbnailRef string
}

// IsInline reports whether the record's payload is stored in-row rather than
// as an external blob.
func (r *Record) IsInline() bool {
	return r.StorageRef == ""
}

// Ingested is what the out-of-scope clipboard-polling collaborator hands the
// store for a newly observed clipboard change. PlainText is assumed to
// already be extracted (HTML/RTF extraction heuristics are that
// collaborator's concern, not the store's).
type Ingested struct {
	Type        RecordType
	PlainText   string
	Note        string
	AppBundleID string
	// Payload is the raw bytes to hash/store. For text-bearing types this is
	// typically the UTF-8 encoding of PlainText; for image/file types it is
	// the actual binary payload.
	Payload []byte
	// PayloadExt is the file extension to use if Payload is stored
	// externally as an image (e.g. "png"); ignored for non-image types.
	PayloadExt string
}

// CleanupMode selects how thorough perform_cleanup is.
type CleanupMode int

const (
	// CleanupLight enforces retention limits only; cheap enough to run on
	// the ingest hot path.
	CleanupLight CleanupMode = iota
	// CleanupFull additionally sweeps orphaned content/ files and runs a
	// WAL checkpoint.
	CleanupFull
)

// CleanupSettings mirrors the subset of SettingsStore options that bound
// perform_cleanup (spec §4.1).
type CleanupSettings struct {
	MaxItems          int
	MaxSmallStorageMB int64
	MaxLargeStorageMB int64
	ImagesOnly        bool
}

// QueryOptions filters fetch_recent-style listings. Zero values mean "no
// filter".
type QueryOptions struct {
	Limit      int
	Offset     int
	AppFilter  string
	TypeFilter RecordType
}
