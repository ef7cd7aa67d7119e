package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lvmc-sim/lvmc-sim/sim/trace"
)

// RunParams captures the configuration persisted with each run.
type RunParams struct {
	Seed    int64
	G       float64
	V0      float64
	Width   int
	Height  int
	Density float64
	Flow    string // "none" or a profile name like "poiseuille"
}

// Snapshot is one persisted lattice observation.
type Snapshot struct {
	Step         int
	Time         float64
	Particles    int
	Energy       float64
	Polarization float64
	Grid         string
}

// RunStore persists simulation runs, their events and lattice snapshots to
// a SQLite database.
type RunStore struct {
	db *sql.DB
}

// Open creates or opens the run database at path. Use ":memory:" for an
// ephemeral store in tests.
func Open(path string) (*RunStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return &RunStore{db: db}, nil
}

// Close releases the database handle.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// BeginRun inserts a run row and returns its ID.
func (s *RunStore) BeginRun(ctx context.Context, p RunParams) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (seed, g, v0, width, height, density, flow, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Seed, p.G, p.V0, p.Width, p.Height, p.Density, p.Flow,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun stamps the run's completion time, step count and final clock.
func (s *RunStore) FinishRun(ctx context.Context, runID int64, steps int, finalTime float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, steps = ?, final_time = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), steps, finalTime, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", runID, err)
	}
	return nil
}

// WriteEvents persists a batch of trace records for a run in one
// transaction.
func (s *RunStore) WriteEvents(ctx context.Context, runID int64, events []trace.EventRecord) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (run_id, step, time, dt, type, x, y, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, runID, e.Step, e.Time, e.Dt, e.Type, e.X, e.Y, e.Outcome); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert event %d: %w", e.Step, err)
		}
	}
	return tx.Commit()
}

// WriteSnapshot persists one lattice observation.
func (s *RunStore) WriteSnapshot(ctx context.Context, runID int64, snap Snapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (run_id, step, time, particles, energy, polarization, grid)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, snap.Step, snap.Time, snap.Particles, snap.Energy, snap.Polarization, snap.Grid)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot at step %d: %w", snap.Step, err)
	}
	return nil
}

// EventCounts returns the per-type event counts recorded for a run.
func (s *RunStore) EventCounts(ctx context.Context, runID int64) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM events WHERE run_id = ? GROUP BY type`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}

// Snapshots returns a run's snapshots in step order.
func (s *RunStore) Snapshots(ctx context.Context, runID int64) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, time, particles, energy, polarization, grid
		 FROM snapshots WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()
	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.Step, &snap.Time, &snap.Particles, &snap.Energy, &snap.Polarization, &snap.Grid); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
