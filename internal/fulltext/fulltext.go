// Package fulltext implements the exact/BM25 search tier: an external-content
// FTS5 match over (plain_text, note), with a parameterized LIKE scan as a
// fallback for substring-class patterns FTS5's tokenizer misses (CJK runs,
// identifiers containing "_" or "-").
package fulltext

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clipvault/core/internal/clipvaultlog"
	"github.com/clipvault/core/internal/clipvaulterrors"
)

// Sort selects the ordering FTS and LIKE queries apply.
type Sort string

const (
	SortRecent    Sort = "recent"
	SortRelevance Sort = "relevance"
)

// Filters narrows a search to a subset of clipboard_items, mirroring the
// query request's app_filter/type_filter fields.
type Filters struct {
	AppBundleID string
	Type        string
}

// Candidate is one matched record id with its relevance score. Score is the
// raw (already-negated, higher-is-better) bm25 value under SortRelevance and
// 0 under SortRecent, where FTS provides no ranking signal.
type Candidate struct {
	ID    string
	Score float64
}

// Index runs FTS5/LIKE queries against the clipboard_items/clipboard_fts
// tables Store's schema creates. It holds no state of its own — all of its
// data lives in the shared database connection.
type Index struct {
	db  *sql.DB
	log zerolog.Logger
}

// New builds a FullTextIndex over db. db should be the same connection Store
// opened, so queries see records as soon as Store commits them.
func New(db *sql.DB) *Index {
	return &Index{
		db:  db,
		log: clipvaultlog.WithComponent("fulltext"),
	}
}

// Search runs the FTS match query for query under filters/sort, returning
// candidate ids ordered per spec §4.2. An empty result does not necessarily
// mean no match exists — callers should fall back to LikeScan and then the
// fuzzy pipeline before concluding there are no results.
func (ix *Index) Search(ctx context.Context, query string, sort Sort, filters Filters, limit, offset int) ([]Candidate, error) {
	match := BuildMatchExpression(query)
	if match == "" {
		return nil, clipvaulterrors.ErrInvalidQuery
	}

	var (
		clauses = []string{"clipboard_fts MATCH ?"}
		args    = []any{match}
	)

	clauses, args = appendFilters(clauses, args, filters)

	orderBy := "ci.is_pinned DESC, bm25(clipboard_fts) ASC, ci.last_used_at DESC, ci.id ASC"
	if sort == SortRecent {
		orderBy = "ci.is_pinned DESC, ci.last_used_at DESC, ci.id ASC"
	}

	q := fmt.Sprintf(`
		SELECT ci.id, bm25(clipboard_fts)
		FROM clipboard_fts
		JOIN clipboard_items ci ON ci.rowid = clipboard_fts.rowid
		WHERE %s
		ORDER BY %s
		LIMIT ? OFFSET ?`, strings.Join(clauses, " AND "), orderBy)

	args = append(args, limitOrDefault(limit), offset)

	rows, err := ix.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}

	defer func() { _ = rows.Close() }()

	return scanCandidates(rows, sort)
}

// LikeScan is the substring fallback: a parameterized LIKE '%term%' scan
// over plain_text and note, with SQL wildcard characters escaped so user
// input can't inject its own wildcards. It carries no relevance score, so it
// only ever runs under SortRecent ordering (or SortRelevance degrades to
// last_used_at order, since there's no bm25 signal to sort by).
func (ix *Index) LikeScan(ctx context.Context, query string, filters Filters, limit, offset int) ([]Candidate, error) {
	term := strings.TrimSpace(query)
	if term == "" {
		return nil, clipvaulterrors.ErrInvalidQuery
	}

	pattern := "%" + escapeLike(term) + "%"

	clauses := []string{"(ci.plain_text LIKE ? ESCAPE '\\' OR ci.note LIKE ? ESCAPE '\\')"}
	args := []any{pattern, pattern}

	clauses, args = appendFilters(clauses, args, filters)

	q := fmt.Sprintf(`
		SELECT ci.id
		FROM clipboard_items ci
		WHERE %s
		ORDER BY ci.is_pinned DESC, ci.last_used_at DESC, ci.id ASC
		LIMIT ? OFFSET ?`, strings.Join(clauses, " AND "))

	args = append(args, limitOrDefault(limit), offset)

	rows, err := ix.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fulltext like scan: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var candidates []Candidate

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("fulltext like scan: scan: %w", err)
		}

		candidates = append(candidates, Candidate{ID: id})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fulltext like scan: rows: %w", err)
	}

	return candidates, nil
}

// Rebuild recomputes clipboard_fts from clipboard_items (the external-content
// FTS5 'rebuild' special insert), used when a corruption check flags the
// index as suspect.
func (ix *Index) Rebuild(ctx context.Context) error {
	_, err := ix.db.ExecContext(ctx, `INSERT INTO clipboard_fts(clipboard_fts) VALUES ('rebuild')`)
	if err != nil {
		return fmt.Errorf("fulltext rebuild: %w", err)
	}

	return nil
}

func appendFilters(clauses []string, args []any, filters Filters) ([]string, []any) {
	if filters.AppBundleID != "" {
		clauses = append(clauses, "ci.app_bundle_id = ?")
		args = append(args, filters.AppBundleID)
	}

	if filters.Type != "" {
		clauses = append(clauses, "ci.type = ?")
		args = append(args, filters.Type)
	}

	return clauses, args
}

func scanCandidates(rows *sql.Rows, sort Sort) ([]Candidate, error) {
	var candidates []Candidate

	for rows.Next() {
		var (
			id    string
			score float64
		)

		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("fulltext search: scan: %w", err)
		}

		c := Candidate{ID: id}
		if sort == SortRelevance {
			// bm25() returns more-negative-is-better; negate so higher
			// always means more relevant, matching callers' expectations.
			c.Score = -score
		}

		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fulltext search: rows: %w", err)
	}

	return candidates, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 500
	}

	return limit
}
