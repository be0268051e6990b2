package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clipvault/core/internal/clipvaulterrors"
	"github.com/clipvault/core/internal/eventbus"
)

// Upsert implements spec §4.1's upsert(ingested) -> Record: on a content_hash
// match it bumps last_used_at/use_count on the existing live record (dedup
// hit); otherwise it inserts a new row, writing the payload externally first
// if it crosses inlineThreshold.
//
// On disk-write failure no row is inserted. If the file write succeeds but
// the DB insert fails, the orphaned file is best-effort removed; failure to
// remove is logged only (it will be swept by a future full cleanup).
func (s *Store) Upsert(ctx context.Context, ing *Ingested) (*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if s.corrupt.Load() {
		return nil, clipvaulterrors.ErrStorageCorrupted
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	hash := hashPayload(ing)

	if existing, err := s.findByHashLocked(ctx, hash); err != nil {
		return nil, err
	} else if existing != nil {
		return s.bumpDedupHitLocked(ctx, existing)
	}

	id, err := newUUIDv7()
	if err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}

	// Timestamps are persisted as whole Unix seconds; truncate so the
	// returned record matches what FindByID reads back.
	now := uuidV7Time(id).Truncate(time.Second)

	rec := &Record{
		ID:          id,
		Type:        ing.Type,
		ContentHash: hash,
		PlainText:   ing.PlainText,
		Note:        "",
		AppBundleID: ing.AppBundleID,
		CreatedAt:   now,
		LastUsedAt:  now,
		UseCount:    1,
		IsPinned:    false,
		SizeBytes:   int64(len(ing.Payload)),
	}

	var writtenBlob string

	if len(ing.Payload) >= inlineThreshold {
		path, err := s.writeExternalBlob(id, ing.Type, ing.PayloadExt, ing.Payload)
		if err != nil {
			return nil, fmt.Errorf("upsert: %w", err)
		}

		rec.StorageRef = path
		writtenBlob = path
	}

	if err := s.insertRowLocked(ctx, rec, ing); err != nil {
		if writtenBlob != "" {
			s.removeExternalBlob(writtenBlob)
		}

		return nil, fmt.Errorf("upsert: %w", err)
	}

	s.bumpDataVersion()
	s.bus.Publish(eventbus.Event{Kind: eventbus.NewItem, RecordID: rec.ID.String()})

	return rec, nil
}

func (s *Store) insertRowLocked(ctx context.Context, rec *Record, _ *Ingested) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clipboard_items (
			id, type, content_hash, plain_text, note, app_bundle_id,
			created_at, last_used_at, use_count, is_pinned, size_bytes,
			storage_ref, thumbnail_ref
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(),
		string(rec.Type),
		rec.ContentHash,
		rec.PlainText,
		rec.Note,
		rec.AppBundleID,
		rec.CreatedAt.Unix(),
		rec.LastUsedAt.Unix(),
		rec.UseCount,
		boolToInt(rec.IsPinned),
		rec.SizeBytes,
		rec.StorageRef,
		rec.ThumbnailRef,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return fmt.Errorf("%w: %v", clipvaulterrors.ErrDuplicateHash, err)
		}

		if isBusyErr(err) {
			return fmt.Errorf("%w: %v", clipvaulterrors.ErrStorageBusy, err)
		}

		return err
	}

	return nil
}

// bumpDedupHitLocked updates last_used_at/use_count for an existing live
// record with a matching content_hash (invariant 1) and returns the updated
// record. No FTS reindex occurs: plain_text/note are unchanged, and the
// AFTER UPDATE trigger's WHEN clause skips reindexing in that case.
func (s *Store) bumpDedupHitLocked(ctx context.Context, existing *Record) (*Record, error) {
	now := time.Now().UTC().Truncate(time.Second)

	_, err := s.db.ExecContext(ctx, `
		UPDATE clipboard_items SET last_used_at = ?, use_count = use_count + 1 WHERE id = ?`,
		now.Unix(), existing.ID.String())
	if err != nil {
		return nil, fmt.Errorf("bump dedup hit: %w", err)
	}

	existing.LastUsedAt = now
	existing.UseCount++

	s.bumpDataVersion()
	s.bus.Publish(eventbus.Event{Kind: eventbus.ItemUpdated, RecordID: existing.ID.String()})

	return existing, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

// isUniqueConstraintErr and isBusyErr inspect the mattn/go-sqlite3 driver's
// error text directly: that driver doesn't expose a typed SQLITE_BUSY/
// SQLITE_CONSTRAINT_UNIQUE error in older releases the way database/sql
// callers might expect, so matching on message is the pragmatic approach
// (mirrors how the driver's own tests assert on error strings).
func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}

	return strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "SQLITE_BUSY")
}
