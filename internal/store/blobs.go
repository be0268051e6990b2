package store

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/clipvault/core/internal/clipvaulterrors"
)

// writeExternalBlob writes payload to a new file under content/ for id,
// atomically (temp file + fsync + rename), and returns the storage_ref to
// persist on the row. Failure leaves no partial file behind: AtomicWriter's
// cleanup removes the temp file on any error.
func (s *Store) writeExternalBlob(id uuid.UUID, typ RecordType, ext string, payload []byte) (string, error) {
	path, err := blobPath(s.dir, id, typ, ext)
	if err != nil {
		return "", err
	}

	if err := s.aw.Write(path, bytes.NewReader(payload), s.aw.DefaultOptions()); err != nil {
		return "", fmt.Errorf("%w: write blob: %v", clipvaulterrors.ErrExternalIO, err)
	}

	return path, nil
}

// removeExternalBlob deletes the external file at storageRef, logging but
// never failing the caller's operation (spec §4.1: "delete ... removes the
// external file *after* the DB deletion commits; file removal errors are
// logged only").
func (s *Store) removeExternalBlob(storageRef string) {
	if storageRef == "" {
		return
	}

	if err := requireUnderContentDir(s.dir, storageRef); err != nil {
		s.log.Error().Err(err).Str("storage_ref", storageRef).Msg("refusing to remove blob outside content dir")

		return
	}

	if err := s.fs.Remove(storageRef); err != nil && !os.IsNotExist(err) {
		s.log.Warn().Err(err).Str("storage_ref", storageRef).Msg("remove external blob")
	}
}

// syncExternalSizesLocked reconciles size_bytes with on-disk sizes for every
// row with a non-empty storage_ref (invariant 6). Run once at Open and
// exposed as SyncExternalSizes for periodic full-cleanup reconciliation.
func (s *Store) syncExternalSizesLocked(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, storage_ref, size_bytes FROM clipboard_items WHERE storage_ref != ''`)
	if err != nil {
		return fmt.Errorf("sync external sizes: query: %w", err)
	}

	type fix struct {
		id   string
		size int64
	}

	var fixes []fix

	for rows.Next() {
		var (
			id         string
			storageRef string
			recordedSz int64
		)

		if err := rows.Scan(&id, &storageRef, &recordedSz); err != nil {
			_ = rows.Close()

			return fmt.Errorf("sync external sizes: scan: %w", err)
		}

		if err := requireUnderContentDir(s.dir, storageRef); err != nil {
			s.log.Error().Err(err).Str("id", id).Msg("path violation during size sync")

			continue
		}

		info, statErr := s.fs.Stat(storageRef)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				s.log.Warn().Str("id", id).Str("storage_ref", storageRef).Msg("external blob missing during size sync")
			}

			continue
		}

		if info.Size() != recordedSz {
			fixes = append(fixes, fix{id: id, size: info.Size()})
		}
	}

	if err := rows.Err(); err != nil {
		_ = rows.Close()

		return fmt.Errorf("sync external sizes: rows: %w", err)
	}

	_ = rows.Close()

	for _, f := range fixes {
		_, err := s.db.ExecContext(ctx, `UPDATE clipboard_items SET size_bytes = ? WHERE id = ?`, f.size, f.id)
		if err != nil {
			return fmt.Errorf("sync external sizes: update %s: %w", f.id, err)
		}
	}

	return nil
}

// SyncExternalSizes is the public, locked entry point for invariant-6
// reconciliation; perform_cleanup(full) calls this.
func (s *Store) SyncExternalSizes(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.syncExternalSizesLocked(ctx)
}

// sweepOrphanBlobs removes files under content/ that have no corresponding
// clipboard_items row. Only run during perform_cleanup(full): spec §4.1
// says orphan sweeping is skipped in light mode to keep the ingest hot path
// cheap.
func (s *Store) sweepOrphanBlobs(ctx context.Context) (removed int, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT storage_ref FROM clipboard_items WHERE storage_ref != ''`)
	if err != nil {
		return 0, fmt.Errorf("sweep orphans: query refs: %w", err)
	}

	known := make(map[string]struct{})

	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			_ = rows.Close()

			return 0, fmt.Errorf("sweep orphans: scan: %w", err)
		}

		known[filepath.Base(ref)] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		_ = rows.Close()

		return 0, fmt.Errorf("sweep orphans: rows: %w", err)
	}

	_ = rows.Close()

	entries, err := s.fs.ReadDir(s.contentDir)
	if err != nil {
		return 0, fmt.Errorf("sweep orphans: read content dir: %w", err)
	}

	const maxSweepIterations = maxCleanupIterations

	for i, entry := range entries {
		if i >= maxSweepIterations {
			s.log.Warn().Int("remaining", len(entries)-i).Msg("orphan sweep stopped at iteration bound")

			break
		}

		if entry.IsDir() {
			continue
		}

		if strings.HasPrefix(entry.Name(), ".") {
			continue // in-flight atomic-write temp files
		}

		if _, ok := known[entry.Name()]; ok {
			continue
		}

		full := filepath.Join(s.contentDir, entry.Name())
		if err := s.fs.Remove(full); err != nil && !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", full).Msg("remove orphan blob")

			continue
		}

		removed++
	}

	return removed, nil
}
