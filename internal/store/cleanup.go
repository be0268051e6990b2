package store

import (
	"context"
	"fmt"

	"github.com/clipvault/core/internal/eventbus"
)

// maxCleanupIterations bounds perform_cleanup's eviction loop (spec §9 open
// question: "pick a value large enough to reach a fixed point on realistic
// corpora (>= 100) and document it"). At 200, an all-pinned corpus or a
// corpus already under every limit terminates in a single pass; a corpus
// that needs more than 200 evictions per call will finish over successive
// cleanup invocations rather than stalling the ingest path.
const maxCleanupIterations = 200

// PerformCleanup implements spec §4.1's perform_cleanup(mode, settings): LRU
// eviction by last_used_at (never pinned) against max_items, inline/external
// storage caps, and an optional images-only restriction. CleanupFull
// additionally sweeps orphaned content/ files and runs a WAL checkpoint.
func (s *Store) PerformCleanup(ctx context.Context, mode CleanupMode, settings CleanupSettings) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.evictOverLimitsLocked(ctx, settings); err != nil {
		return fmt.Errorf("perform cleanup: %w", err)
	}

	if mode != CleanupFull {
		return nil
	}

	if err := s.syncExternalSizesLocked(ctx); err != nil {
		s.log.Warn().Err(err).Msg("sync external sizes during full cleanup")
	}

	removed, err := s.sweepOrphanBlobs(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("sweep orphan blobs during full cleanup")
	} else if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("swept orphan blobs")
	}

	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(PASSIVE)`); err != nil {
		s.log.Warn().Err(err).Msg("wal checkpoint during full cleanup")
	}

	return nil
}

// evictOverLimitsLocked repeatedly evicts the least-recently-used
// non-pinned record that violates one of the configured limits, up to
// maxCleanupIterations times, so a cleanup call always terminates.
func (s *Store) evictOverLimitsLocked(ctx context.Context, settings CleanupSettings) error {
	for i := 0; i < maxCleanupIterations; i++ {
		victim, ok, err := s.findCleanupVictimLocked(ctx, settings)
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}

		if err := s.deleteLocked(ctx, victim.id, victim.storageRef); err != nil {
			return fmt.Errorf("evict %s: %w", victim.id, err)
		}

		s.bumpDataVersion()
		s.bus.Publish(eventbus.Event{Kind: eventbus.ItemDeleted, RecordID: victim.id})
	}

	s.log.Warn().Int("max_iterations", maxCleanupIterations).Msg("cleanup stopped at iteration bound; limits may still be exceeded")

	return nil
}

// findCleanupVictimLocked picks the single eviction candidate for the first
// violated limit, checked in fixed order: max_items, then the inline
// storage cap, then the external storage cap. Returns ok=false once nothing
// violates a configured limit.
func (s *Store) findCleanupVictimLocked(ctx context.Context, settings CleanupSettings) (blobVictim, bool, error) {
	typeClause := ""
	if settings.ImagesOnly {
		typeClause = " AND type = 'image'"
	}

	if settings.MaxItems > 0 {
		var count int

		row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clipboard_items WHERE is_pinned = 0`+typeClause)
		if err := row.Scan(&count); err != nil {
			return blobVictim{}, false, fmt.Errorf("count items: %w", err)
		}

		if count > settings.MaxItems {
			return s.lruVictimLocked(ctx, typeClause)
		}
	}

	if settings.MaxSmallStorageMB > 0 {
		overBudget, err := s.storageOverBudgetLocked(ctx, "storage_ref = ''", settings.MaxSmallStorageMB)
		if err != nil {
			return blobVictim{}, false, err
		}

		if overBudget {
			return s.lruVictimLocked(ctx, " AND storage_ref = ''"+typeClause)
		}
	}

	if settings.MaxLargeStorageMB > 0 {
		overBudget, err := s.storageOverBudgetLocked(ctx, "storage_ref != ''", settings.MaxLargeStorageMB)
		if err != nil {
			return blobVictim{}, false, err
		}

		if overBudget {
			return s.lruVictimLocked(ctx, " AND storage_ref != ''"+typeClause)
		}
	}

	return blobVictim{}, false, nil
}

func (s *Store) storageOverBudgetLocked(ctx context.Context, whereStorage string, maxMB int64) (bool, error) {
	var totalBytes int64

	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size_bytes), 0) FROM clipboard_items WHERE is_pinned = 0 AND `+whereStorage)
	if err := row.Scan(&totalBytes); err != nil {
		return false, fmt.Errorf("sum size_bytes: %w", err)
	}

	return totalBytes > maxMB*1024*1024, nil
}

// lruVictimLocked returns the least-recently-used non-pinned row matching
// extraWhere (already includes its own " AND ..." prefix or is empty).
func (s *Store) lruVictimLocked(ctx context.Context, extraWhere string) (blobVictim, bool, error) {
	query := `SELECT id, storage_ref FROM clipboard_items WHERE is_pinned = 0` + extraWhere + `
		ORDER BY last_used_at ASC, id ASC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query)

	var v blobVictim

	if err := row.Scan(&v.id, &v.storageRef); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return blobVictim{}, false, nil
		}

		return blobVictim{}, false, fmt.Errorf("find lru victim: %w", err)
	}

	return v, true, nil
}

// deleteLocked is Delete's body, reused by the eviction loop which already
// holds writeMu.
func (s *Store) deleteLocked(ctx context.Context, id, storageRef string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM clipboard_items WHERE id = ?`, id); err != nil {
		return err
	}

	s.removeExternalBlob(storageRef)

	return nil
}
