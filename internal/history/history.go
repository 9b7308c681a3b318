// Package history keeps a persistent journal of orchestration runs and log
// entries in a sqlite database under the backup root.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite journal database.
type DB struct {
	db *sql.DB
}

// RunStatus is the outcome of one orchestration run.
type RunStatus string

const (
	RunInProgress RunStatus = "in_progress"
	RunSuccess    RunStatus = "success"
	RunPartial    RunStatus = "partial" // completed, but a step failed with a warning
	RunFailed     RunStatus = "failed"
)

// Run is one recorded orchestration run.
type Run struct {
	ID          int64
	Mode        string // "full" or "incr"
	Status      RunStatus
	Message     string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Open opens (creating if necessary) the journal database at path.
func Open(path string) (*DB, error) {
	var db *sql.DB
	var err error
	maxRetries := 5
	baseDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(baseDelay * time.Duration(1<<uint(attempt-1)))
		}

		db, err = sql.Open("sqlite", path)
		if err != nil {
			continue
		}

		pragmas := []string{
			"PRAGMA busy_timeout = 10000",
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
		}
		pragmaFailed := false
		for _, pragma := range pragmas {
			if _, err = db.Exec(pragma); err != nil {
				db.Close()
				pragmaFailed = true
				break
			}
		}
		if pragmaFailed {
			continue
		}

		if err = createSchema(db); err != nil {
			db.Close()
			continue
		}
		return &DB{db: db}, nil
	}
	return nil, fmt.Errorf("failed to open journal database after %d attempts: %w", maxRetries, err)
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mode TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		run_id INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON logs(run_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Handle exposes the underlying connection for the logger's sink.
func (d *DB) Handle() *sql.DB { return d.db }

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }

// StartRun records the beginning of an orchestration run and returns its id.
func (d *DB) StartRun(ctx context.Context, mode string) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		"INSERT INTO runs (mode, status, started_at) VALUES (?, ?, ?)",
		mode, RunInProgress, time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("record run start: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}
	return id, nil
}

// FinishRun records a run's outcome.
func (d *DB) FinishRun(ctx context.Context, id int64, status RunStatus, message string) error {
	_, err := d.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, message = ?, completed_at = ? WHERE id = ?",
		status, message, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("record run outcome: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, most recent first.
func (d *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx,
		"SELECT id, mode, status, COALESCE(message, ''), started_at, completed_at FROM runs ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var r Run
		var status string
		var completed sql.NullTime
		if err := rows.Scan(&r.ID, &r.Mode, &status, &r.Message, &r.StartedAt, &completed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = RunStatus(status)
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
