// Package ledger records which MET commands have run, so repeated runs of the
// same configuration can skip work that already completed.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Command states.
const (
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

// ErrUnknownCommand is returned by Finish for a key that was never begun.
var ErrUnknownCommand = errors.New("ledger: command not begun")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    app         TEXT NOT NULL,
    started_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS commands (
    run_key     TEXT PRIMARY KEY,
    app         TEXT NOT NULL,
    run_id      TEXT NOT NULL,
    command     TEXT NOT NULL,
    state       TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    started_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS commands_app ON commands(app);
`

// Entry is one recorded command.
type Entry struct {
	Key        string
	App        string
	RunID      string
	Command    string
	State      string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Ledger is a SQLite-backed record of command outcomes.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at path, creating its directory if
// needed.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}
	// SQLite has a single writer; one pooled connection keeps the pragmas
	// below in effect for every statement.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("ledger: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: create schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// StartRun records the start of a wrapper run.
func (l *Ledger) StartRun(ctx context.Context, runID, app string) error {
	const q = `INSERT INTO runs (run_id, app) VALUES (?, ?) ON CONFLICT(run_id) DO NOTHING`
	if _, err := l.db.ExecContext(ctx, q, runID, app); err != nil {
		return fmt.Errorf("ledger: start run %s: %w", runID, err)
	}
	return nil
}

// Begin marks key as running under runID. A key seen before is reset, so a
// forced rerun replaces the earlier outcome.
func (l *Ledger) Begin(ctx context.Context, key, app, runID, command string) error {
	const q = `
		INSERT INTO commands (run_key, app, run_id, command, state)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_key) DO UPDATE SET
			app         = excluded.app,
			run_id      = excluded.run_id,
			command     = excluded.command,
			state       = excluded.state,
			error       = '',
			started_at  = CURRENT_TIMESTAMP,
			finished_at = NULL`
	if _, err := l.db.ExecContext(ctx, q, key, app, runID, command, StateRunning); err != nil {
		return fmt.Errorf("ledger: begin %q: %w", key, err)
	}
	return nil
}

// Finish records the outcome of key. A nil runErr marks it done.
func (l *Ledger) Finish(ctx context.Context, key string, runErr error) error {
	state, msg := StateDone, ""
	if runErr != nil {
		state, msg = StateFailed, runErr.Error()
	}
	const q = `UPDATE commands SET state = ?, error = ?, finished_at = CURRENT_TIMESTAMP WHERE run_key = ?`
	res, err := l.db.ExecContext(ctx, q, state, msg, key)
	if err != nil {
		return fmt.Errorf("ledger: finish %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: finish %q rows affected: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, key)
	}
	return nil
}

// Completed reports whether key finished successfully.
func (l *Ledger) Completed(ctx context.Context, key string) (bool, error) {
	var state string
	err := l.db.QueryRowContext(ctx, "SELECT state FROM commands WHERE run_key = ?", key).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: state of %q: %w", key, err)
	}
	return state == StateDone, nil
}

// Entries returns the recorded commands of app, or of every app when app is
// empty, oldest first.
func (l *Ledger) Entries(ctx context.Context, app string) ([]Entry, error) {
	q := `SELECT run_key, app, run_id, command, state, error, started_at, finished_at FROM commands`
	var args []any
	if app != "" {
		q += ` WHERE app = ?`
		args = append(args, app)
	}
	q += ` ORDER BY started_at, rowid`

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query commands: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var started string
		var finished sql.NullString
		if err := rows.Scan(&e.Key, &e.App, &e.RunID, &e.Command, &e.State, &e.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("ledger: scan command: %w", err)
		}
		if e.StartedAt, err = parseTimestamp(started); err != nil {
			return nil, fmt.Errorf("ledger: parse start of %q: %w", e.Key, err)
		}
		if finished.Valid {
			if e.FinishedAt, err = parseTimestamp(finished.String); err != nil {
				return nil, fmt.Errorf("ledger: parse finish of %q: %w", e.Key, err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate commands: %w", err)
	}
	return out, nil
}

// Forget deletes the recorded commands of app and returns how many were
// removed.
func (l *Ledger) Forget(ctx context.Context, app string) (int64, error) {
	res, err := l.db.ExecContext(ctx, "DELETE FROM commands WHERE app = ?", app)
	if err != nil {
		return 0, fmt.Errorf("ledger: forget %q: %w", app, err)
	}
	return res.RowsAffected()
}

// timestampFormats lists the formats SQLite drivers may produce for
// CURRENT_TIMESTAMP.
var timestampFormats = []string{
	time.RFC3339,
	time.DateTime,
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}
