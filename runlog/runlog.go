// Package runlog keeps a SQLite history of extraction runs: one row per run
// plus one row per fund outcome.
//
// The history powers two things the CSV artifact cannot: recovery detection
// (a clean run after a failed one triggers an all-clear notification) and
// post-hoc inspection of which funds failed when.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/fundwatch/scrape"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at   INTEGER NOT NULL,
	finished_at  INTEGER NOT NULL,
	targets      INTEGER NOT NULL,
	succeeded    INTEGER NOT NULL,
	failed       INTEGER NOT NULL,
	fatal        INTEGER NOT NULL DEFAULT 0,
	fatal_reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS run_outcomes (
	run_id         INTEGER NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	fund           TEXT NOT NULL,
	url            TEXT NOT NULL,
	status         TEXT NOT NULL,
	reason         TEXT NOT NULL DEFAULT '',
	attempts       INTEGER NOT NULL,
	price          REAL,
	effective_date TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_outcomes_run ON run_outcomes(run_id);
`

// DB is an open run history database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path and applies the
// production pragmas and schema. Use ":memory:" in tests.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("runlog: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("runlog: apply schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("runlog: ping: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error { return d.db.Close() }

// Run summarises one invocation.
type Run struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	Targets     int
	Succeeded   int
	Failed      int
	Fatal       bool
	FatalReason string
}

// Clean reports whether the run completed with every fund succeeding.
func (r Run) Clean() bool { return !r.Fatal && r.Failed == 0 }

// RecordRun inserts a run and its outcomes in one transaction and returns
// the run ID.
func (d *DB) RecordRun(ctx context.Context, run Run, outcomes []scrape.Outcome) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("runlog: begin: %w", err)
	}
	defer tx.Rollback()

	fatal := 0
	if run.Fatal {
		fatal = 1
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (started_at, finished_at, targets, succeeded, failed, fatal, fatal_reason)
		VALUES (?,?,?,?,?,?,?)`,
		run.StartedAt.Unix(), run.FinishedAt.Unix(),
		run.Targets, run.Succeeded, run.Failed, fatal, run.FatalReason)
	if err != nil {
		return 0, fmt.Errorf("runlog: insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("runlog: run id: %w", err)
	}

	for _, o := range outcomes {
		status := "failed"
		reason := string(o.Reason)
		var price sql.NullFloat64
		var date sql.NullString
		if o.OK() {
			status = "success"
			reason = ""
			price = sql.NullFloat64{Float64: o.Record.Price, Valid: true}
			date = sql.NullString{String: o.Record.EffectiveDate.Format(scrape.DateLayout), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_outcomes (run_id, fund, url, status, reason, attempts, price, effective_date)
			VALUES (?,?,?,?,?,?,?,?)`,
			runID, o.Target.Label(), o.Target.URL, status, reason, o.Attempts, price, date)
		if err != nil {
			return 0, fmt.Errorf("runlog: insert outcome: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("runlog: commit: %w", err)
	}
	return runID, nil
}

// LastRun returns the most recent recorded run, or nil when the history is
// empty.
func (d *DB) LastRun(ctx context.Context) (*Run, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT started_at, finished_at, targets, succeeded, failed, fatal, fatal_reason
		FROM runs ORDER BY run_id DESC LIMIT 1`)

	var r Run
	var started, finished int64
	var fatal int
	err := row.Scan(&started, &finished, &r.Targets, &r.Succeeded, &r.Failed, &fatal, &r.FatalReason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("runlog: last run: %w", err)
	}
	r.StartedAt = time.Unix(started, 0)
	r.FinishedAt = time.Unix(finished, 0)
	r.Fatal = fatal == 1
	return &r, nil
}

// Cleanup deletes runs older than the retention threshold. Outcome rows go
// with their run via the cascade. Zero or negative days keeps everything.
func (d *DB) Cleanup(ctx context.Context, days int) error {
	if days <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -days).Unix()
	if _, err := d.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff); err != nil {
		return fmt.Errorf("runlog: cleanup: %w", err)
	}
	return nil
}
