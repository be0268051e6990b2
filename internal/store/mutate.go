package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/clipvault/core/internal/clipvaulterrors"
	"github.com/clipvault/core/internal/eventbus"
)

// SetPin implements spec §4.1's set_pin(id, bool).
func (s *Store) SetPin(ctx context.Context, id string, pinned bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	parsed, err := parseUUID(id)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE clipboard_items SET is_pinned = ? WHERE id = ?`,
		boolToInt(pinned), parsed.String())
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}

	if err := requireRowAffected(res); err != nil {
		return err
	}

	s.bumpDataVersion()
	s.bus.Publish(eventbus.Event{Kind: eventbus.ItemUpdated, RecordID: parsed.String()})

	return nil
}

// UpdateNote implements spec §4.1's update_note(id, text). Note is indexed
// (§3), so this is a plain_text/note-changing update and the FTS trigger
// will reindex this row.
func (s *Store) UpdateNote(ctx context.Context, id string, note string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	parsed, err := parseUUID(id)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE clipboard_items SET note = ? WHERE id = ?`, note, parsed.String())
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}

	if err := requireRowAffected(res); err != nil {
		return err
	}

	s.bumpDataVersion()
	s.bus.Publish(eventbus.Event{Kind: eventbus.ItemUpdated, RecordID: parsed.String()})

	return nil
}

// Delete implements spec §4.1's delete(id): the row is removed inside a
// transaction; the external file (if any) is removed only after that
// transaction commits, and removal errors are logged but never fail the
// operation.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	parsed, err := parseUUID(id)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var storageRef string

	row := s.db.QueryRowContext(ctx, `SELECT storage_ref FROM clipboard_items WHERE id = ?`, parsed.String())
	if err := row.Scan(&storageRef); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return clipvaulterrors.ErrNotFound
		}

		return fmt.Errorf("delete: lookup: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM clipboard_items WHERE id = ?`, parsed.String())
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	if err := requireRowAffected(res); err != nil {
		return err
	}

	s.removeExternalBlob(storageRef)

	s.bumpDataVersion()
	s.bus.Publish(eventbus.Event{Kind: eventbus.ItemDeleted, RecordID: parsed.String()})

	return nil
}

// maxParallelBlobDeletes bounds concurrent external-file removals during
// DeleteAllExceptPinned (spec §5: "Concurrent external file deletions capped
// (≈ 8)").
const maxParallelBlobDeletes = 8

// DeleteAllExceptPinned implements spec §4.1's delete_all_except_pinned():
// the row batch-delete is transactional; external file removal runs through
// a bounded worker pool so it never blocks the control thread on a large
// corpus.
func (s *Store) DeleteAllExceptPinned(ctx context.Context) (deleted int, err error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, storage_ref FROM clipboard_items WHERE is_pinned = 0`)
	if err != nil {
		return 0, fmt.Errorf("delete all except pinned: query: %w", err)
	}

	var victims []blobVictim

	for rows.Next() {
		var v blobVictim
		if err := rows.Scan(&v.id, &v.storageRef); err != nil {
			_ = rows.Close()

			return 0, fmt.Errorf("delete all except pinned: scan: %w", err)
		}

		victims = append(victims, v)
	}

	if err := rows.Err(); err != nil {
		_ = rows.Close()

		return 0, fmt.Errorf("delete all except pinned: rows: %w", err)
	}

	_ = rows.Close()

	if len(victims) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("delete all except pinned: begin tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM clipboard_items WHERE is_pinned = 0`); err != nil {
		_ = tx.Rollback()

		return 0, fmt.Errorf("delete all except pinned: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("delete all except pinned: commit: %w", err)
	}

	go s.removeBlobsBounded(victims)

	s.bumpDataVersion()

	for _, v := range victims {
		s.bus.Publish(eventbus.Event{Kind: eventbus.ItemDeleted, RecordID: v.id})
	}

	return len(victims), nil
}

// blobVictim pairs a record id with its (possibly empty) storage_ref for the
// bounded blob-removal pool in DeleteAllExceptPinned.
type blobVictim struct {
	id         string
	storageRef string
}

func (s *Store) removeBlobsBounded(victims []blobVictim) {
	sem := make(chan struct{}, maxParallelBlobDeletes)

	var wg sync.WaitGroup

	for _, v := range victims {
		if v.storageRef == "" {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(ref string) {
			defer wg.Done()
			defer func() { <-sem }()

			s.removeExternalBlob(ref)
		}(v.storageRef)
	}

	wg.Wait()
}

func requireRowAffected(res interface {
	RowsAffected() (int64, error)
}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		return clipvaulterrors.ErrNotFound
	}

	return nil
}
