package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates the roast database file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir %q: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// one writer: the roaster's recorder
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaRoasts = `
CREATE TABLE IF NOT EXISTS roasts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    automatic BOOLEAN NOT NULL,
    strategy TEXT,
    profile_path TEXT,
    final_bean_temp INTEGER,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    export_path TEXT
);
`

const schemaRoastTicks = `
CREATE TABLE IF NOT EXISTS roast_ticks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    roast_id TEXT NOT NULL,
    recorded_at TIMESTAMP NOT NULL,
    roast_time INTEGER NOT NULL,
    temp_bean INTEGER NOT NULL,
    temp_air INTEGER NOT NULL,
    temp_fire INTEGER NOT NULL,
    temp_goal INTEGER NOT NULL,
    temp_cooler INTEGER NOT NULL,
    servo_position INTEGER NOT NULL,
    flags INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_roast_ticks_roast ON roast_ticks (roast_id, id);
`

const schemaRoastEvents = `
CREATE TABLE IF NOT EXISTS roast_events (
    id TEXT PRIMARY KEY,
    roast_id TEXT,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    message TEXT NOT NULL,
    meta TEXT
);
`

const schemaOperators = `
CREATE TABLE IF NOT EXISTS operators (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
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
		schemaRoasts,
		schemaRoastTicks,
		schemaRoastEvents,
		schemaOperators,
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
