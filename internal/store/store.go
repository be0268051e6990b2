package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/clipvault/core/internal/clipvaultlog"
	"github.com/clipvault/core/internal/eventbus"
	"github.com/clipvault/core/internal/fsx"
	"github.com/clipvault/core/internal/normalize"
)

// inlineThreshold is the maximum payload size stored in-row; payloads at or
// above this size are written externally under content/ (spec §5 resource
// limits: "Inline payload threshold: 512 KiB").
const inlineThreshold = 512 * 1024

// Store wires the SQLite index, the external blob directory and the event
// bus together. It runs as a serialized executor: all mutating operations
// take writeMu, matching spec §4.1's "Store runs as a serialized executor".
// Reads do not take writeMu, but openSqlite caps the pool at one
// connection, so reads and writes share that connection and run one at a
// time; there are no separate read-only connections.
type Store struct {
	dir        string
	contentDir string

	db  *sql.DB
	fs  fsx.FS
	aw  *fsx.AtomicWriter
	bus *eventbus.Bus
	log zerolog.Logger

	writeMu sync.Mutex

	// dataVersion is the monotonic "known_data_version" counter (spec §4.1,
	// GLOSSARY): it advances on every committed mutation so SearchEngine can
	// gate cache validity against it.
	dataVersion atomic.Uint64

	closed  atomic.Bool
	corrupt atomic.Bool
}

// Option configures Store construction.
type Option func(*Store)

// WithFS overrides the filesystem implementation, for example with
// fsx.Chaos or an in-memory fake.
func WithFS(fs fsx.FS) Option {
	return func(s *Store) { s.fs = fs }
}

// WithEventBus attaches an existing bus rather than creating a private one,
// so callers (SearchEngine) can share a single bus across components.
func WithEventBus(bus *eventbus.Bus) Option {
	return func(s *Store) { s.bus = bus }
}

// Open initializes the database directory: creates content/ if missing,
// opens (or creates) clipboard.db, and runs migrations when the stored
// schema version doesn't match currentSchemaVersion.
func Open(ctx context.Context, dir string, opts ...Option) (*Store, error) {
	if ctx == nil {
		return nil, errors.New("open store: context is nil")
	}

	if dir == "" {
		return nil, errors.New("open store: directory is empty")
	}

	dbDir := filepath.Clean(dir)

	s := &Store{
		dir: dbDir,
		log: clipvaultlog.WithComponent("store"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.fs == nil {
		s.fs = fsx.NewReal()
	}

	if s.bus == nil {
		s.bus = eventbus.New()
	}

	s.aw = fsx.NewAtomicWriter(s.fs)
	s.contentDir = filepath.Join(dbDir, contentDirName)

	if err := s.fs.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("open store: create db dir: %w", err)
	}

	if err := s.fs.MkdirAll(s.contentDir, 0o750); err != nil {
		return nil, fmt.Errorf("open store: create content dir: %w", err)
	}

	db, err := openSqlite(ctx, filepath.Join(dbDir, "clipboard.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s.db = db

	version, err := storedSchemaVersion(ctx, db)
	if err != nil {
		_ = s.Close()

		return nil, fmt.Errorf("open store: %w", err)
	}

	if version != currentSchemaVersion {
		s.log.Info().Int("from", version).Int("to", currentSchemaVersion).Msg("migrating schema")

		if err := createSchema(ctx, db); err != nil {
			_ = s.Close()

			return nil, fmt.Errorf("open store: migrate schema: %w", err)
		}
	}

	if err := s.syncExternalSizesLocked(ctx); err != nil {
		// Reconciliation failures are non-fatal: Store still opens and
		// serves existing rows, just with possibly stale size_bytes until
		// the next successful reconciliation.
		s.log.Warn().Err(err).Msg("sync external sizes on open")
	}

	s.dataVersion.Store(1)

	return s, nil
}

// Close releases the database handle. Idempotent; safe to call on a nil
// Store.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}

	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	if s.db == nil {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	return nil
}

// Bus returns the event bus records are published on, so SearchEngine can
// Subscribe.
func (s *Store) Bus() *eventbus.Bus {
	return s.bus
}

// DataVersion returns the current known_data_version.
func (s *Store) DataVersion() uint64 {
	return s.dataVersion.Load()
}

// IsCorrupted reports whether the sticky storage_corrupted flag is set
// (spec §7: "set a sticky is_database_corrupted flag; block further
// writes; allow read-only fallback").
func (s *Store) IsCorrupted() bool {
	return s.corrupt.Load()
}

func (s *Store) checkOpen() error {
	if s == nil || s.closed.Load() || s.db == nil {
		return ErrClosed
	}

	return nil
}

func (s *Store) bumpDataVersion() {
	s.dataVersion.Add(1)
}

// hashPayload computes the content_hash for an ingested item, per spec
// §4.1's normalization rule: text-bearing types hash the normalized text;
// image/file types hash the raw payload bytes.
func hashPayload(ing *Ingested) string {
	h := sha256.New()

	switch ing.Type {
	case TypeImage, TypeFile:
		h.Write(ing.Payload)
	default:
		h.Write([]byte(normalize.HashableText(ing.PlainText)))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// DBDir exposes the database directory for components (FullTextIndex,
// FuzzyIndex) that need to derive sibling snapshot file paths.
func (s *Store) DBDir() string {
	return s.dir
}

// DB exposes the underlying connection so FullTextIndex can run FTS5/LIKE
// queries directly against the same schema Store maintains, without Store
// re-exporting a query method per access pattern.
func (s *Store) DB() *sql.DB {
	return s.db
}
