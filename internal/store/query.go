package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/clipvault/core/internal/clipvaulterrors"
)

// recordColumns lists the columns, in order, every scanRecord call expects.
const recordColumns = `id, type, content_hash, plain_text, note, app_bundle_id,
	created_at, last_used_at, use_count, is_pinned, size_bytes, storage_ref, thumbnail_ref`

// FetchRecent implements spec §4.1's fetch_recent(limit, offset) -> [Record],
// ordered by (is_pinned DESC, last_used_at DESC, id ASC).
func (s *Store) FetchRecent(ctx context.Context, opts QueryOptions) ([]Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var (
		clauses []string
		args    []any
	)

	if opts.AppFilter != "" {
		clauses = append(clauses, "app_bundle_id = ?")
		args = append(args, opts.AppFilter)
	}

	if opts.TypeFilter != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(opts.TypeFilter))
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 500
	}

	query := fmt.Sprintf(`SELECT %s FROM clipboard_items%s
		ORDER BY is_pinned DESC, last_used_at DESC, id ASC
		LIMIT ? OFFSET ?`, recordColumns, where)

	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch recent: %w", err)
	}

	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

// FindByID implements spec §4.1's find_by_id(id).
func (s *Store) FindByID(ctx context.Context, id string) (*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	parsed, err := parseUUID(id)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM clipboard_items WHERE id = ?`, recordColumns), parsed.String())

	rec, err := scanRecordRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, clipvaulterrors.ErrNotFound
		}

		return nil, fmt.Errorf("find by id: %w", err)
	}

	return rec, nil
}

// FindByHash implements spec §4.1's find_by_hash(hash).
func (s *Store) FindByHash(ctx context.Context, hash string) (*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rec, err := s.findByHashLocked(ctx, hash)
	if err != nil {
		return nil, err
	}

	if rec == nil {
		return nil, clipvaulterrors.ErrNotFound
	}

	return rec, nil
}

// findByHashLocked returns (nil, nil) on no match, distinguishing "not
// found" from an error for Upsert's dedup check.
func (s *Store) findByHashLocked(ctx context.Context, hash string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM clipboard_items WHERE content_hash = ?`, recordColumns), hash)

	rec, err := scanRecordRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("find by hash: %w", err)
	}

	return rec, nil
}

// FindByIDs batch-hydrates records for a candidate ID set in one query,
// avoiding the N+1 fetch spec §4.3 warns against. Order is unspecified;
// callers sort after hydration. Missing IDs are silently omitted.
func (s *Store) FindByIDs(ctx context.Context, ids []string) ([]Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []Record{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))

	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT %s FROM clipboard_items WHERE id IN (%s)`,
		recordColumns, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find by ids: %w", err)
	}

	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

func scanRecordRow(row *sql.Row) (*Record, error) {
	var rec Record

	var (
		typ          string
		createdAt    int64
		lastUsedAt   int64
		isPinnedInt  int
	)

	err := row.Scan(
		&rec.ID, &typ, &rec.ContentHash, &rec.PlainText, &rec.Note, &rec.AppBundleID,
		&createdAt, &lastUsedAt, &rec.UseCount, &isPinnedInt, &rec.SizeBytes,
		&rec.StorageRef, &rec.ThumbnailRef,
	)
	if err != nil {
		return nil, err
	}

	rec.Type = RecordType(typ)
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.LastUsedAt = time.Unix(lastUsedAt, 0).UTC()
	rec.IsPinned = isPinnedInt != 0

	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record

	for rows.Next() {
		var (
			rec         Record
			typ         string
			createdAt   int64
			lastUsedAt  int64
			isPinnedInt int
		)

		err := rows.Scan(
			&rec.ID, &typ, &rec.ContentHash, &rec.PlainText, &rec.Note, &rec.AppBundleID,
			&createdAt, &lastUsedAt, &rec.UseCount, &isPinnedInt, &rec.SizeBytes,
			&rec.StorageRef, &rec.ThumbnailRef,
		)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		rec.Type = RecordType(typ)
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		rec.LastUsedAt = time.Unix(lastUsedAt, 0).UTC()
		rec.IsPinned = isPinnedInt != 0

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if records == nil {
		records = []Record{}
	}

	return records, nil
}
