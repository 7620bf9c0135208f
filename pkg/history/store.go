package history

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/core-tools/hsu-netstatus/pkg/errors"
	"github.com/core-tools/hsu-netstatus/pkg/report"
)

// DefaultRecentLimit is used by Recent when the caller passes a non-positive limit
const DefaultRecentLimit = 10

// timeLayout is fixed width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite ledger of monitor runs. Log contents stay in the log files.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database file and migrates the schema
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, errors.NewIOError("unable to open history database", err).WithContext("history_db", path)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewIOError("unable to ping history database", err).WithContext("history_db", path)
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, errors.NewIOError("failed to migrate history database", err).WithContext("history_db", path)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Path() string { return s.path }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	log_dir     TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at DESC);

CREATE TABLE IF NOT EXISTS analyzer_results (
	run_id      TEXT NOT NULL,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL,
	command     TEXT NOT NULL,
	log_file    TEXT NOT NULL,
	status      TEXT NOT NULL,
	exit_code   INTEGER NOT NULL,
	pid         INTEGER NOT NULL,
	started_at  TEXT,
	duration_ns INTEGER NOT NULL,
	log_size    INTEGER NOT NULL,
	error       TEXT,
	PRIMARY KEY (run_id, position),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Record stores a finished run and every analyzer result in one transaction
func (s *Store) Record(ctx context.Context, runReport *report.RunReport) error {
	if runReport == nil {
		return errors.NewValidationError("run report cannot be nil", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewIOError("could not begin transaction", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT id FROM runs WHERE id = ?`, runReport.ID).Scan(&existing)
	if err == nil {
		return errors.NewConflictError("run already recorded", nil).WithContext("run_id", runReport.ID)
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return errors.NewIOError("failed to look up run", err).WithContext("run_id", runReport.ID)
	}

	insertRun := `
INSERT INTO runs (id, log_dir, started_at, finished_at, succeeded, failed, skipped)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertRun,
		runReport.ID, runReport.LogDir,
		formatTime(runReport.StartedAt), formatTime(runReport.FinishedAt),
		runReport.Succeeded(), runReport.Failed(), runReport.Skipped(),
	); err != nil {
		return errors.NewIOError("failed to insert run", err).WithContext("run_id", runReport.ID)
	}

	insertResult := `
INSERT INTO analyzer_results (run_id, position, name, description, command, log_file, status,
	exit_code, pid, started_at, duration_ns, log_size, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for i, res := range runReport.Results {
		if _, err := tx.ExecContext(ctx, insertResult,
			runReport.ID, i, res.Name, res.Description, res.Command, res.LogFile, string(res.Status),
			res.ExitCode, res.PID, nullableTime(res.StartedAt), int64(res.Duration), res.LogSize, nullableString(res.Error),
		); err != nil {
			return errors.NewIOError("failed to insert analyzer result", err).
				WithContext("run_id", runReport.ID).
				WithContext("analyzer", res.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewIOError("failed to commit transaction", err).WithContext("run_id", runReport.ID)
	}
	return nil
}

// Recent returns the latest runs, newest first, with their analyzer results
func (s *Store) Recent(ctx context.Context, limit int) ([]*report.RunReport, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	query := `SELECT id, log_dir, started_at, finished_at FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.NewIOError("failed to query runs", err)
	}

	var runs []*report.RunReport
	for rows.Next() {
		var run report.RunReport
		var startedAt, finishedAt string
		if err := rows.Scan(&run.ID, &run.LogDir, &startedAt, &finishedAt); err != nil {
			rows.Close()
			return nil, errors.NewIOError("failed to scan run", err)
		}
		if run.StartedAt, err = parseTime(startedAt); err != nil {
			rows.Close()
			return nil, errors.NewIOError("corrupt run start time", err).WithContext("run_id", run.ID)
		}
		if run.FinishedAt, err = parseTime(finishedAt); err != nil {
			rows.Close()
			return nil, errors.NewIOError("corrupt run finish time", err).WithContext("run_id", run.ID)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.NewIOError("failed to iterate runs", err)
	}
	rows.Close()

	for _, run := range runs {
		results, err := s.results(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		run.Results = results
	}
	return runs, nil
}

func (s *Store) results(ctx context.Context, runID string) ([]report.AnalyzerResult, error) {
	query := `
SELECT name, description, command, log_file, status, exit_code, pid, started_at, duration_ns, log_size, error
FROM analyzer_results WHERE run_id = ? ORDER BY position`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, errors.NewIOError("failed to query analyzer results", err).WithContext("run_id", runID)
	}
	defer rows.Close()

	var results []report.AnalyzerResult
	for rows.Next() {
		var res report.AnalyzerResult
		var status string
		var startedAt, errText sql.NullString
		var durationNs int64
		if err := rows.Scan(&res.Name, &res.Description, &res.Command, &res.LogFile, &status,
			&res.ExitCode, &res.PID, &startedAt, &durationNs, &res.LogSize, &errText); err != nil {
			return nil, errors.NewIOError("failed to scan analyzer result", err).WithContext("run_id", runID)
		}
		res.Status = report.Status(status)
		res.Duration = time.Duration(durationNs)
		res.Error = errText.String
		if startedAt.Valid {
			if res.StartedAt, err = parseTime(startedAt.String); err != nil {
				return nil, errors.NewIOError("corrupt analyzer start time", err).
					WithContext("run_id", runID).
					WithContext("analyzer", res.Name)
			}
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIOError("failed to iterate analyzer results", err).WithContext("run_id", runID)
	}
	return results, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(timeLayout, value)
}

func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
