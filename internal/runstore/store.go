// Package runstore keeps an optional SQLite history of pipeline runs for the
// history command. Checkpoints, not this store, drive resumption.
package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mediaorganizer/internal/pipeline"
)

// FileName is the database created inside the state directory.
const FileName = "history.db"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store persists run summaries.
type Store struct {
	db   *sql.DB
	path string
}

// Run is a recorded pipeline run.
type Run struct {
	ID           string
	LibraryDir   string
	Status       pipeline.State
	StartedAt    time.Time
	FinishedAt   time.Time
	AbortedStage string
	AbortReason  string
	Stages       []StageRow
	ErrorCount   int
}

// StageRow is one stage of a recorded run.
type StageRow struct {
	Stage     string
	State     pipeline.State
	Expected  int
	Processed int
	Skipped   int
	Failed    int
	Duration  time.Duration
	Reason    string
}

// Open initializes or connects to the history database in dir and applies migrations.
func Open(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}
	dbPath := filepath.Join(dir, FileName)
	// Per-connection pragmas go in the DSN so every pooled connection gets them.
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal mode: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores a run summary with its stage results and item errors.
func (s *Store) Record(ctx context.Context, libraryDir string, summary pipeline.Summary) error {
	if strings.TrimSpace(summary.RunID) == "" {
		return errors.New("record run: empty run id")
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin record tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, library_dir, status, started_at, finished_at, aborted_stage, abort_reason)
             VALUES (?, ?, ?, ?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET status = excluded.status, finished_at = excluded.finished_at,
                 aborted_stage = excluded.aborted_stage, abort_reason = excluded.abort_reason`,
			summary.RunID,
			libraryDir,
			string(summary.Status),
			formatTime(summary.StartedAt),
			nullableTime(summary.FinishedAt),
			nullableString(summary.AbortedStage),
			nullableString(summary.AbortReason),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM stage_results WHERE run_id = ?", summary.RunID); err != nil {
			return fmt.Errorf("clear stage results: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM item_errors WHERE run_id = ?", summary.RunID); err != nil {
			return fmt.Errorf("clear item errors: %w", err)
		}

		for i, report := range summary.Stages {
			res := report.Result
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO stage_results (run_id, position, stage, state, expected, processed, skipped, failed, duration_ms, reason)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				summary.RunID, i, report.Name, string(report.State),
				res.Expected, res.Processed, res.Skipped, res.Failed,
				res.Duration.Milliseconds(), nullableString(report.Reason),
			); err != nil {
				return fmt.Errorf("insert stage %s: %w", report.Name, err)
			}
		}
		for _, itemErr := range summary.ItemErrors() {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO item_errors (run_id, stage, path, message) VALUES (?, ?, ?, ?)",
				summary.RunID, itemErr.Stage, itemErr.Path, itemErr.Message,
			); err != nil {
				return fmt.Errorf("insert item error: %w", err)
			}
		}
		return tx.Commit()
	})
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.library_dir, r.status, r.started_at, r.finished_at, r.aborted_stage, r.abort_reason,
                (SELECT COUNT(1) FROM item_errors e WHERE e.run_id = r.id)
         FROM runs r ORDER BY r.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run          Run
			status       string
			startedRaw   string
			finishedRaw  sql.NullString
			abortedStage sql.NullString
			abortReason  sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.LibraryDir, &status, &startedRaw, &finishedRaw, &abortedStage, &abortReason, &run.ErrorCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = pipeline.State(status)
		run.StartedAt = parseTime(startedRaw)
		run.FinishedAt = parseTime(finishedRaw.String)
		run.AbortedStage = abortedStage.String
		run.AbortReason = abortReason.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		stages, err := s.stages(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Stages = stages
	}
	return runs, nil
}

func (s *Store) stages(ctx context.Context, runID string) ([]StageRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, state, expected, processed, skipped, failed, duration_ms, reason
         FROM stage_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var out []StageRow
	for rows.Next() {
		var (
			row        StageRow
			state      string
			durationMS int64
			reason     sql.NullString
		)
		if err := rows.Scan(&row.Stage, &state, &row.Expected, &row.Processed, &row.Skipped, &row.Failed, &durationMS, &reason); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		row.State = pipeline.State(state)
		row.Duration = time.Duration(durationMS) * time.Millisecond
		row.Reason = reason.String
		out = append(out, row)
	}
	return out, rows.Err()
}

// Prune removes runs that started before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", formatTime(cutoff))
		if err != nil {
			return fmt.Errorf("prune runs: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
