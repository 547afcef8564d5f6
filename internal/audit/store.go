// Package audit persists a local history of gate runs to SQLite.
// The log is strictly append-only from the gate's point of view:
// verdicts never depend on past runs.
package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"changeguard/internal/guard"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the audit database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the audit database at path. The database is
// configured with WAL mode and a single-writer connection pool; Open is
// idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect audit db: %w", err)
	}

	// SQLite allows one writer at a time; a larger pool just trades
	// SQLITE_BUSY errors for queueing.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply audit schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun appends one completed gate run and its violations.
func (s *Store) RecordRun(ctx context.Context, rep *guard.Report, startedAt, finishedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, started_at, finished_at, base_name, base_ref, head_ref, skipped, passed, violation_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rep.RunID,
		startedAt.UTC().Format(time.RFC3339Nano),
		finishedAt.UTC().Format(time.RFC3339Nano),
		rep.BaseName,
		rep.BaseRef,
		rep.HeadRef,
		boolToInt(rep.Skipped),
		boolToInt(rep.Passed()),
		len(rep.Violations),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", rep.RunID, err)
	}

	for i, v := range rep.Violations {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO violations (run_id, position, file, changeset_id, author)
			VALUES (?, ?, ?, ?, ?)
		`, rep.RunID, i, v.File, v.ID, v.Author)
		if err != nil {
			return fmt.Errorf("record violation %d of run %s: %w", i, rep.RunID, err)
		}
	}

	return tx.Commit()
}

// RunSummary is one row of the recorded run history.
type RunSummary struct {
	RunID          string
	StartedAt      time.Time
	BaseName       string
	HeadRef        string
	Skipped        bool
	Passed         bool
	ViolationCount int
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, base_name, head_ref, skipped, passed, violation_count
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started string
		var skipped, passed int
		if err := rows.Scan(&r.RunID, &started, &r.BaseName, &r.HeadRef, &skipped, &passed, &r.ViolationCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at of %s: %w", r.RunID, err)
		}
		r.Skipped = skipped != 0
		r.Passed = passed != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Violations returns the recorded findings of one run, in report order.
func (s *Store) Violations(ctx context.Context, runID string) ([]guard.Violation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file, changeset_id, author
		FROM violations
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	defer rows.Close()

	var out []guard.Violation
	for rows.Next() {
		var v guard.Violation
		if err := rows.Scan(&v.File, &v.ID, &v.Author); err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
