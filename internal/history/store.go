// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history records every data build run in a small SQLite ledger so
// the outcome of past runs can be inspected after the log lines are gone.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	dbFile = "history.db"

	// timeLayout has fixed-width fractional seconds so started_at sorts
	// lexically in time order.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Run is one recorded data build.
type Run struct {
	ID          string        `json:"id" yaml:"id"`
	Variant     string        `json:"variant" yaml:"variant"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Interpreter string        `json:"interpreter" yaml:"interpreter"`
	ExitCode    int           `json:"exit_code" yaml:"exit_code"`
	Outcome     string        `json:"outcome" yaml:"outcome"`
	Reason      string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Records     int           `json:"records" yaml:"records"`

	// ArtifactSHA256 is the hex digest of the published file, empty unless
	// the run published.
	ArtifactSHA256 string `json:"artifact_sha256,omitempty" yaml:"artifact_sha256,omitempty"`
}

// Store manages the run history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at dir/history.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			variant TEXT NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			interpreter TEXT,
			exit_code INTEGER,
			outcome TEXT NOT NULL,
			reason TEXT,
			records INTEGER NOT NULL DEFAULT 0,
			artifact_sha256 TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_variant_started ON runs(variant, started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record inserts run, assigning a new ID when run.ID is empty. It returns the
// stored run.
func (s *Store) Record(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.StartedAt = run.StartedAt.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, variant, started_at, duration_ms, interpreter, exit_code,
			outcome, reason, records, artifact_sha256)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Variant, run.StartedAt.Format(timeLayout), run.Duration.Milliseconds(),
		run.Interpreter, run.ExitCode, run.Outcome, run.Reason, run.Records, run.ArtifactSHA256,
	)
	if err != nil {
		return Run{}, fmt.Errorf("recording run %s: %w", run.ID, err)
	}
	return run, nil
}

// List returns the most recent runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, variant, started_at, duration_ms, interpreter, exit_code,
		outcome, reason, records, artifact_sha256
		FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Last returns the most recent run of variant. ok is false when the variant
// has never run.
func (s *Store) Last(ctx context.Context, variant string) (Run, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, variant, started_at, duration_ms, interpreter, exit_code,
			outcome, reason, records, artifact_sha256
		FROM runs WHERE variant = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`,
		variant,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run         Run
		startedAt   string
		durationMS  int64
		interpreter sql.NullString
		exitCode    sql.NullInt64
		reason      sql.NullString
		digest      sql.NullString
	)
	if err := sc.Scan(&run.ID, &run.Variant, &startedAt, &durationMS, &interpreter, &exitCode,
		&run.Outcome, &reason, &run.Records, &digest); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}

	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parsing started_at of run %s: %w", run.ID, err)
	}
	run.StartedAt = t
	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.Interpreter = interpreter.String
	run.ExitCode = int(exitCode.Int64)
	run.Reason = reason.String
	run.ArtifactSHA256 = digest.String
	return run, nil
}
