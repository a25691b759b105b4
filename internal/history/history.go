// Package history keeps a local record of migration runs in a sqlite
// database, one row per run plus one row per thread outcome. The record is a
// sidecar: recording failures must never fail a migration, so callers log
// and continue when this package returns an error.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/specbook/internal/migrate"
	"github.com/specbook/pkg/models"
)

// DefaultPath is where the run history lives unless configured otherwise.
const DefaultPath = "specbook_history.db"

// Store is an open run-history database.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the history database at path. The
// special path ":memory:" keeps it in memory, which tests use.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	dsn := path
	if path != ":memory:" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve history db path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history db directory: %w", err)
		}
		dsn = abs
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrateSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrateSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			source_path TEXT NOT NULL,
			dest_path TEXT NOT NULL,
			threads INTEGER NOT NULL,
			messages INTEGER NOT NULL,
			placed INTEGER NOT NULL,
			lost INTEGER NOT NULL,
			anchored INTEGER NOT NULL,
			same_sheet INTEGER NOT NULL,
			overflow INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_threads (
			run_id TEXT NOT NULL,
			root_id TEXT NOT NULL,
			origin_sheet TEXT NOT NULL,
			origin_ref TEXT NOT NULL,
			anchor TEXT NOT NULL,
			dest_sheet TEXT NOT NULL,
			dest_ref TEXT NOT NULL,
			strategy TEXT NOT NULL,
			failure TEXT NOT NULL,
			secret_hints TEXT NOT NULL,
			message_count INTEGER NOT NULL,
			PRIMARY KEY(run_id, root_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}
	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return fmt.Errorf("failed to apply history schema: %w", err)
		}
	}
	return nil
}

// RunInfo identifies one migration run for the record.
type RunInfo struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	SourcePath string
	DestPath   string
}

// RecordRun stores a run and its per-thread outcomes. Re-recording the same
// run id replaces the earlier record.
func (s *Store) RecordRun(run RunInfo, sum *migrate.Summary) error {
	if run.ID == "" {
		return fmt.Errorf("run id must not be empty")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(
		`INSERT INTO runs(id, started_at, finished_at, source_path, dest_path, threads, messages, placed, lost, anchored, same_sheet, overflow)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
			started_at=excluded.started_at, finished_at=excluded.finished_at,
			source_path=excluded.source_path, dest_path=excluded.dest_path,
			threads=excluded.threads, messages=excluded.messages,
			placed=excluded.placed, lost=excluded.lost,
			anchored=excluded.anchored, same_sheet=excluded.same_sheet, overflow=excluded.overflow`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.SourcePath,
		run.DestPath,
		sum.Threads,
		sum.Messages,
		sum.Placed,
		sum.Lost,
		sum.ByStrategy[models.StrategyAnchored],
		sum.ByStrategy[models.StrategySameSheet],
		sum.ByStrategy[models.StrategyOverflow],
	); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	if _, err = tx.Exec(`DELETE FROM run_threads WHERE run_id=?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear earlier thread records: %w", err)
	}
	for _, out := range sum.Outcomes {
		root := out.Thread.Root
		if _, err = tx.Exec(
			`INSERT INTO run_threads(run_id, root_id, origin_sheet, origin_ref, anchor, dest_sheet, dest_ref, strategy, failure, secret_hints, message_count)
			 VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
			run.ID,
			root.ID,
			root.Sheet,
			root.Ref,
			root.Anchor,
			out.Sheet,
			out.Ref,
			string(out.Strategy),
			string(out.Failure),
			strings.Join(out.SecretHints, ","),
			out.Thread.Size(),
		); err != nil {
			return fmt.Errorf("failed to record thread outcome: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit history record: %w", err)
	}
	return nil
}

// RunRecord is one stored run.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	SourcePath string
	DestPath   string
	Threads    int
	Messages   int
	Placed     int
	Lost       int
	Anchored   int
	SameSheet  int
	Overflow   int
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, source_path, dest_path, threads, messages, placed, lost, anchored, same_sheet, overflow
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished string
		if err := rows.Scan(&rec.ID, &started, &finished, &rec.SourcePath, &rec.DestPath,
			&rec.Threads, &rec.Messages, &rec.Placed, &rec.Lost,
			&rec.Anchored, &rec.SameSheet, &rec.Overflow); err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run records: %w", err)
	}
	return out, nil
}

// ThreadRecord is one stored per-thread outcome.
type ThreadRecord struct {
	RunID        string
	RootID       string
	OriginSheet  string
	OriginRef    string
	Anchor       string
	DestSheet    string
	DestRef      string
	Strategy     string
	Failure      string
	SecretHints  []string
	MessageCount int
}

// Migrated reports whether the recorded thread was placed.
func (t ThreadRecord) Migrated() bool {
	return t.Failure == ""
}

// RunThreads returns the thread outcomes of one run in recorded order.
func (s *Store) RunThreads(runID string) ([]ThreadRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, root_id, origin_sheet, origin_ref, anchor, dest_sheet, dest_ref, strategy, failure, secret_hints, message_count
		 FROM run_threads WHERE run_id=? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query thread records: %w", err)
	}
	defer rows.Close()

	var out []ThreadRecord
	for rows.Next() {
		var rec ThreadRecord
		var hints string
		if err := rows.Scan(&rec.RunID, &rec.RootID, &rec.OriginSheet, &rec.OriginRef, &rec.Anchor,
			&rec.DestSheet, &rec.DestRef, &rec.Strategy, &rec.Failure, &hints, &rec.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan thread record: %w", err)
		}
		if hints != "" {
			rec.SecretHints = strings.Split(hints, ",")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read thread records: %w", err)
	}
	return out, nil
}
