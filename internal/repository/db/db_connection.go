package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// single writer: the control loop
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", p, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

// synchronous=FULL: a write is on disk before the call returns.
var pragmas = []string{
	"PRAGMA journal_mode = WAL;",
	"PRAGMA synchronous = FULL;",
	"PRAGMA busy_timeout = 5000;",
}

const schemaNVM = `
CREATE TABLE IF NOT EXISTS nvm (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    data BLOB NOT NULL
);
`

const schemaDispenseMarker = `
CREATE TABLE IF NOT EXISTS dispense_marker (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    in_progress BOOLEAN NOT NULL,
    requested INTEGER NOT NULL,
    dispensed INTEGER NOT NULL,
    single_shot BOOLEAN NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaFeedEvents = `
CREATE TABLE IF NOT EXISTS feed_events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    description TEXT NOT NULL,
    meta TEXT
);
CREATE INDEX IF NOT EXISTS idx_feed_events_occurred_at ON feed_events (occurred_at);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaNVM,
		schemaDispenseMarker,
		schemaFeedEvents,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
