package logging

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// Logger provides structured logging with both console and database output
type Logger struct {
	db      *sql.DB
	console io.Writer
	mu      sync.Mutex
}

// LogEntry represents a single log entry
type LogEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	RunID     int64     `json:"runId"` // orchestration run this entry belongs to, 0 if none
}

// New creates a new Logger using an existing database connection.
// The caller is responsible for closing the database connection.
func New(db *sql.DB, console io.Writer) *Logger {
	if console == nil {
		console = os.Stdout
	}
	return &Logger{db: db, console: console}
}

// Log writes a log entry to both console and database
func (l *Logger) Log(level LogLevel, runID int64, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	message := fmt.Sprintf(format, args...)
	timestamp := time.Now()

	fmt.Fprintf(l.console, "%s %s: %s\n", timestamp.Format("2006-01-02 15:04:05"), level, message)

	if l.db == nil {
		return
	}
	_, err := l.db.Exec(
		"INSERT INTO logs (timestamp, level, message, run_id) VALUES (?, ?, ?, ?)",
		timestamp, string(level), message, nullInt(runID),
	)
	if err != nil {
		// If DB write fails, at least we have console output
		fmt.Fprintf(l.console, "ERROR: failed to write to log database: %v\n", err)
	}
}

// Info logs an info-level message
func (l *Logger) Info(format string, args ...any) {
	l.Log(LevelInfo, 0, format, args...)
}

// Warn logs a warning-level message
func (l *Logger) Warn(format string, args ...any) {
	l.Log(LevelWarn, 0, format, args...)
}

// Error logs an error-level message
func (l *Logger) Error(format string, args ...any) {
	l.Log(LevelError, 0, format, args...)
}

// Debug logs a debug-level message
func (l *Logger) Debug(format string, args ...any) {
	l.Log(LevelDebug, 0, format, args...)
}

// QueryOptions defines filters for querying logs
type QueryOptions struct {
	RunID int64
	Level LogLevel
	Since time.Time
	Until time.Time
	Limit int
}

// Query retrieves log entries based on filters
func (l *Logger) Query(opts QueryOptions) ([]LogEntry, error) {
	query := "SELECT id, timestamp, level, message, COALESCE(run_id, 0) FROM logs WHERE 1=1"
	args := []any{}

	if opts.RunID != 0 {
		query += " AND run_id = ?"
		args = append(args, opts.RunID)
	}
	if opts.Level != "" {
		query += " AND level = ?"
		args = append(args, string(opts.Level))
	}
	if !opts.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, opts.Since)
	}
	if !opts.Until.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, opts.Until)
	}

	query += " ORDER BY timestamp DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	// Initialize as empty slice so JSON encodes as [] instead of null
	entries := make([]LogEntry, 0)
	for rows.Next() {
		var e LogEntry
		var levelStr string
		if err := rows.Scan(&e.ID, &e.Timestamp, &levelStr, &e.Message, &e.RunID); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Level = LogLevel(levelStr)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// PruneOldLogs removes log entries older than the specified duration
func (l *Logger) PruneOldLogs(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := l.db.Exec("DELETE FROM logs WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune logs: %w", err)
	}
	return result.RowsAffected()
}

// nullInt returns a sql.NullInt64 for use with nullable columns
func nullInt(i int64) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: i, Valid: true}
}

// RunLogger wraps a Logger with the id of the orchestration run in progress
type RunLogger struct {
	logger *Logger
	runID  int64
}

// ForRun creates a RunLogger attributing entries to one orchestration run
func (l *Logger) ForRun(runID int64) *RunLogger {
	return &RunLogger{logger: l, runID: runID}
}

// Info logs an info-level message with run context
func (rl *RunLogger) Info(format string, args ...any) {
	rl.logger.Log(LevelInfo, rl.runID, format, args...)
}

// Warn logs a warning-level message with run context
func (rl *RunLogger) Warn(format string, args ...any) {
	rl.logger.Log(LevelWarn, rl.runID, format, args...)
}

// Error logs an error-level message with run context
func (rl *RunLogger) Error(format string, args ...any) {
	rl.logger.Log(LevelError, rl.runID, format, args...)
}
