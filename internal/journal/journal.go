// Package journal keeps a SQLite record of evaluation runs and the outcome
// of every action evaluated in them.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// ErrRunNotFound is returned when a run id is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    manifest    TEXT NOT NULL,
    started_at  TEXT NOT NULL,
    finished_at TEXT NOT NULL DEFAULT '',
    evaluated   INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0,
    mutations   INTEGER NOT NULL DEFAULT 0,
    error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS action_results (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT NOT NULL REFERENCES runs(run_id),
    action_id  INTEGER NOT NULL,
    name       TEXT NOT NULL DEFAULT '',
    kind       TEXT NOT NULL,
    status     TEXT NOT NULL,
    error      TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS action_results_run ON action_results(run_id);
`

// Run is one evaluation run.
type Run struct {
	ID         string
	Manifest   string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is open
	Evaluated  int
	Failed     int
	Mutations  int
	Error      string
}

// ActionResult is the outcome of one action in a run.
type ActionResult struct {
	RunID    string
	ActionID uint64
	Name     string
	Kind     string
	Status   string
	Error    string
}

// Journal is a SQLite database in WAL mode with a single connection.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path, enables WAL mode and busy
// timeout, and creates the schema if it does not exist.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}

	// SQLite has a single writer; one connection keeps the PRAGMAs below
	// in effect for every statement.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// BeginRun records the start of a run.
func (j *Journal) BeginRun(ctx context.Context, runID, manifest string) error {
	const q = `INSERT INTO runs (run_id, manifest, started_at) VALUES (?, ?, ?)`
	if _, err := j.db.ExecContext(ctx, q, runID, manifest, now()); err != nil {
		return fmt.Errorf("journal: begin run %s: %w", runID, err)
	}
	return nil
}

// RecordActions stores action outcomes in a single transaction.
func (j *Journal) RecordActions(ctx context.Context, results []ActionResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin tx for actions: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const q = `
		INSERT INTO action_results (run_id, action_id, name, kind, status, error)
		VALUES (?, ?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("journal: prepare action insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.ExecContext(ctx, r.RunID, int64(r.ActionID), r.Name, r.Kind, r.Status, r.Error); err != nil {
			return fmt.Errorf("journal: insert action %d: %w", r.ActionID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal: commit actions: %w", err)
	}
	return nil
}

// FinishRun stores the totals of a run. runErr may be nil.
func (j *Journal) FinishRun(ctx context.Context, runID string, evaluated, failed, mutations int, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	const q = `
		UPDATE runs SET finished_at = ?, evaluated = ?, failed = ?, mutations = ?, error = ?
		WHERE run_id = ?`
	res, err := j.db.ExecContext(ctx, q, now(), evaluated, failed, mutations, msg, runID)
	if err != nil {
		return fmt.Errorf("journal: finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Runs returns the most recent runs, newest first. An empty manifest
// returns runs of every manifest.
func (j *Journal) Runs(ctx context.Context, manifest string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
		SELECT run_id, manifest, started_at, finished_at, evaluated, failed, mutations, error
		FROM runs
		WHERE ? = '' OR manifest = ?
		ORDER BY rowid DESC
		LIMIT ?`
	rows, err := j.db.QueryContext(ctx, q, manifest, manifest, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.Manifest, &started, &finished, &r.Evaluated, &r.Failed, &r.Mutations, &r.Error); err != nil {
			return nil, fmt.Errorf("journal: scan run: %w", err)
		}
		if r.StartedAt, err = parseTimestamp(started); err != nil {
			return nil, fmt.Errorf("journal: parse run timestamp: %w", err)
		}
		if finished != "" {
			if r.FinishedAt, err = parseTimestamp(finished); err != nil {
				return nil, fmt.Errorf("journal: parse run timestamp: %w", err)
			}
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate runs: %w", err)
	}
	return runs, nil
}

// Actions returns the action outcomes of a run in the order they were
// recorded.
func (j *Journal) Actions(ctx context.Context, runID string) ([]ActionResult, error) {
	var exists int
	err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE run_id = ?", runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("journal: lookup run %s: %w", runID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	const q = `
		SELECT run_id, action_id, name, kind, status, error
		FROM action_results WHERE run_id = ? ORDER BY id`
	rows, err := j.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("journal: query actions: %w", err)
	}
	defer rows.Close()

	var out []ActionResult
	for rows.Next() {
		var (
			r  ActionResult
			id int64
		)
		if err := rows.Scan(&r.RunID, &id, &r.Name, &r.Kind, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("journal: scan action: %w", err)
		}
		r.ActionID = uint64(id)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate actions: %w", err)
	}
	return out, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// timestampFormats lists the layouts accepted when reading timestamps back.
var timestampFormats = []string{
	time.RFC3339Nano,
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
