package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver, built with the sqlite_fts5 tag
)

// currentSchemaVersion is stored in SQLite's user_version pragma (spec §6:
// "PRAGMA user_version = 2 after migration"). Bump this whenever the schema
// changes; a mismatch on Open re-runs createSchema, which creates any
// missing tables, indices and triggers and then records this version.
const currentSchemaVersion = 2

// sqliteBusyTimeout is the time SQLite waits for a lock before returning
// SQLITE_BUSY, in milliseconds.
const sqliteBusyTimeout = 10000

// openSqlite opens the main database and applies the configured pragmas.
// Requires the binary to be built with the sqlite_fts5 tag so clipboard_fts
// (external-content FTS5) is available.
func openSqlite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("open sqlite: path is empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// The store is a single serialized writer; one open connection avoids
	// SQLITE_BUSY from self-contention and keeps WAL checkpointing simple.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

// applyPragmas configures the SQLite connection in a single batch statement.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		PRAGMA busy_timeout = %d;
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = FULL;
		PRAGMA mmap_size = 268435456;
		PRAGMA cache_size = -20000;
		PRAGMA temp_store = MEMORY;
		PRAGMA foreign_keys = ON;
	`, sqliteBusyTimeout))
	if err != nil {
		return fmt.Errorf("apply pragmas: %w", err)
	}

	return nil
}

// storedSchemaVersion reads PRAGMA user_version.
func storedSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	row := db.QueryRowContext(ctx, "PRAGMA user_version")

	var version int

	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}

	return version, nil
}

// setSchemaVersion writes PRAGMA user_version. SQLite does not allow binding
// parameters to pragmas, hence the fmt.Sprintf; version is always the
// compile-time constant currentSchemaVersion, never user input.
func setSchemaVersion(ctx context.Context, db *sql.DB, version int) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version))
	if err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// createSchema creates the clipboard_items table, its indices, the
// external-content FTS5 table and the update triggers that keep it in sync
// (spec §6). Safe to call against a fresh or existing database: every
// statement uses IF NOT EXISTS.
func createSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS clipboard_items (
			id            TEXT PRIMARY KEY,
			type          TEXT NOT NULL,
			content_hash  TEXT NOT NULL UNIQUE,
			plain_text    TEXT NOT NULL,
			note          TEXT NOT NULL DEFAULT '',
			app_bundle_id TEXT NOT NULL DEFAULT '',
			created_at    INTEGER NOT NULL,
			last_used_at  INTEGER NOT NULL,
			use_count     INTEGER NOT NULL DEFAULT 1,
			is_pinned     INTEGER NOT NULL DEFAULT 0,
			size_bytes    INTEGER NOT NULL DEFAULT 0,
			storage_ref   TEXT NOT NULL DEFAULT '',
			thumbnail_ref TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_type_last_used ON clipboard_items(type, last_used_at)`,
		`CREATE INDEX IF NOT EXISTS idx_pinned_last_used ON clipboard_items(is_pinned, last_used_at)`,
		`CREATE INDEX IF NOT EXISTS idx_content_hash ON clipboard_items(content_hash)`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS clipboard_fts USING fts5(
			plain_text,
			note,
			content='clipboard_items',
			content_rowid='rowid',
			tokenize='unicode61'
		)`,

		// Triggers keep clipboard_fts in lockstep with clipboard_items.
		// The UPDATE trigger's WHEN clause is the critical piece: it fires
		// only when plain_text or note actually changed, never on
		// last_used_at/use_count bumps, so dedup hits don't pay FTS
		// reindexing cost (spec §6, §4.1 "FTS update discipline").
		`CREATE TRIGGER IF NOT EXISTS clipboard_ai AFTER INSERT ON clipboard_items BEGIN
			INSERT INTO clipboard_fts(rowid, plain_text, note) VALUES (new.rowid, new.plain_text, new.note);
		END`,
		`CREATE TRIGGER IF NOT EXISTS clipboard_ad AFTER DELETE ON clipboard_items BEGIN
			INSERT INTO clipboard_fts(clipboard_fts, rowid, plain_text, note) VALUES ('delete', old.rowid, old.plain_text, old.note);
		END`,
		`CREATE TRIGGER IF NOT EXISTS clipboard_au AFTER UPDATE OF plain_text, note ON clipboard_items
			WHEN old.plain_text IS NOT new.plain_text OR old.note IS NOT new.note
		BEGIN
			INSERT INTO clipboard_fts(clipboard_fts, rowid, plain_text, note) VALUES ('delete', old.rowid, old.plain_text, old.note);
			INSERT INTO clipboard_fts(rowid, plain_text, note) VALUES (new.rowid, new.plain_text, new.note);
		END`,
	}

	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}

	if err := setSchemaVersion(ctx, db, currentSchemaVersion); err != nil {
		return err
	}

	return nil
}

// rebuildFTS repopulates clipboard_fts from clipboard_items (its 'rebuild'
// command is the external-content-FTS5 idiom for "recompute from the source
// table"). Nothing in this package calls it.
func rebuildFTS(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `INSERT INTO clipboard_fts(clipboard_fts) VALUES ('rebuild')`)
	if err != nil {
		return fmt.Errorf("rebuild fts: %w", err)
	}

	return nil
}
