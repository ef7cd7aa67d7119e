// Package store persists simulation runs to SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the SQLite run store.
const schemaV1 = `
-- One row per simulation run
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    seed INTEGER NOT NULL,
    g REAL NOT NULL,
    v0 REAL NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    density REAL NOT NULL,
    flow TEXT,                 -- 'none', 'poiseuille'
    started_at TEXT NOT NULL,
    finished_at TEXT,
    steps INTEGER DEFAULT 0,
    final_time REAL DEFAULT 0
);

-- Every applied kinetic event of a run (written when event recording is on)
CREATE TABLE IF NOT EXISTS events (
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    step INTEGER NOT NULL,
    time REAL NOT NULL,
    dt REAL NOT NULL,
    type TEXT NOT NULL,        -- 'flip', 'rotate-cw', 'rotate-ccw', 'hop', 'advect'
    x INTEGER NOT NULL,
    y INTEGER NOT NULL,
    outcome TEXT NOT NULL,     -- 'moved', 'reflected', 'absorbed', 'blocked'
    PRIMARY KEY (run_id, step)
);
CREATE INDEX IF NOT EXISTS idx_events_run_type ON events(run_id, type);

-- Periodic lattice snapshots for offline rendering and analysis
CREATE TABLE IF NOT EXISTS snapshots (
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    step INTEGER NOT NULL,
    time REAL NOT NULL,
    particles INTEGER NOT NULL,
    energy REAL NOT NULL,
    polarization REAL NOT NULL,
    grid TEXT NOT NULL,        -- rendered glyph grid
    PRIMARY KEY (run_id, step)
);

CREATE TABLE IF NOT EXISTS schema_meta (
    version INTEGER NOT NULL
);
`

// InitSchema creates the tables if they do not exist and stamps the schema
// version.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_meta`).Scan(&count); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if count == 0 {
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_meta (version) VALUES (?)`, SchemaVersion); err != nil {
			return fmt.Errorf("failed to stamp schema version: %w", err)
		}
	}
	return nil
}
