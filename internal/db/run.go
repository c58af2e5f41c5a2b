package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newhook/testrun/internal/logparser"
	trsignal "github.com/newhook/testrun/internal/signal"
)

// timeLayout sorts lexically in the same order as time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrRunNotFound is returned when no run matches an id or prefix.
var ErrRunNotFound = errors.New("run not found")

// Run is a stored test run.
type Run struct {
	ID          string
	LogPath     string
	Dialect     string
	Branch      string
	CommitID    string
	TestType    string
	Status      string
	Passed      int
	Failed      int
	Skipped     int
	Uploaded    bool
	RemoteID    string
	UploadError string
	CreatedAt   time.Time
}

// Total returns the number of test cases in the run.
func (r *Run) Total() int {
	return r.Passed + r.Failed + r.Skipped
}

// ListOptions filters ListRuns.
type ListOptions struct {
	Branch string
	Limit  int
}

const runColumns = `id, log_path, dialect, branch, commit_id, test_type, status,
	passed, failed, skipped, uploaded, remote_id, upload_error, created_at`

// SaveRun stores run and its test cases. An empty ID is replaced with a new
// UUID and a zero CreatedAt with the current time; both are written back to run.
func (db *DB) SaveRun(ctx context.Context, run *Run, cases []logparser.TestCase) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.Passed, run.Failed, run.Skipped = 0, 0, 0
	for _, tc := range cases {
		switch tc.Status {
		case logparser.StatusPassed:
			run.Passed++
		case logparser.StatusFailed:
			run.Failed++
		case logparser.StatusSkipped:
			run.Skipped++
		}
	}

	trsignal.BlockSignals()
	defer trsignal.UnblockSignals()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.LogPath, run.Dialect, run.Branch, run.CommitID, run.TestType, run.Status,
		run.Passed, run.Failed, run.Skipped, run.Uploaded, run.RemoteID, run.UploadError,
		run.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO test_cases
		(run_id, position, name, status, duration_ms, error_log) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare test case insert: %w", err)
	}
	defer stmt.Close()

	for i, tc := range cases {
		if _, err := stmt.ExecContext(ctx, run.ID, i, tc.Name, string(tc.Status), tc.DurationMs, tc.ErrorLog); err != nil {
			return fmt.Errorf("failed to insert test case %s: %w", tc.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

// MarkUploaded records a successful upload.
func (db *DB) MarkUploaded(ctx context.Context, id, remoteID string) error {
	return db.updateUpload(ctx, id, true, remoteID, "")
}

// MarkUploadFailed records a failed upload attempt.
func (db *DB) MarkUploadFailed(ctx context.Context, id string, uploadErr error) error {
	return db.updateUpload(ctx, id, false, "", uploadErr.Error())
}

func (db *DB) updateUpload(ctx context.Context, id string, uploaded bool, remoteID, uploadErr string) error {
	res, err := db.ExecContext(ctx,
		"UPDATE runs SET uploaded = ?, remote_id = ?, upload_error = ? WHERE id = ?",
		uploaded, remoteID, uploadErr, id)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// ListRuns returns stored runs, newest first.
func (db *DB) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs"
	var args []any
	if opts.Branch != "" {
		query += " WHERE branch = ?"
		args = append(args, opts.Branch)
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns the run whose id equals or starts with idPrefix.
func (db *DB) GetRun(ctx context.Context, idPrefix string) (*Run, error) {
	if strings.TrimSpace(idPrefix) == "" {
		return nil, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}
	rows, err := db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE substr(id, 1, length(?)) = ? ORDER BY created_at DESC LIMIT 2",
		idPrefix, idPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", idPrefix, err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, idPrefix)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %s is ambiguous", idPrefix)
	}
}

// TestCases returns the stored cases of a run in their original order.
func (db *DB) TestCases(ctx context.Context, runID string) ([]logparser.TestCase, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name, status, duration_ms, error_log FROM test_cases WHERE run_id = ? ORDER BY position", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get test cases for run %s: %w", runID, err)
	}
	defer rows.Close()

	cases := []logparser.TestCase{}
	for rows.Next() {
		var tc logparser.TestCase
		var status string
		if err := rows.Scan(&tc.Name, &status, &tc.DurationMs, &tc.ErrorLog); err != nil {
			return nil, fmt.Errorf("failed to scan test case: %w", err)
		}
		tc.Status = logparser.Status(status)
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}

// PruneRuns deletes all but the newest keep runs and returns how many were removed.
func (db *DB) PruneRuns(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	trsignal.BlockSignals()
	defer trsignal.UnblockSignals()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const stale = `SELECT id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT -1 OFFSET ?`
	if _, err := tx.ExecContext(ctx, "DELETE FROM test_cases WHERE run_id IN ("+stale+")", keep); err != nil {
		return 0, fmt.Errorf("failed to prune test cases: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id IN ("+stale+")", keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var createdAt string
	err := row.Scan(&run.ID, &run.LogPath, &run.Dialect, &run.Branch, &run.CommitID, &run.TestType,
		&run.Status, &run.Passed, &run.Failed, &run.Skipped, &run.Uploaded, &run.RemoteID,
		&run.UploadError, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q for run %s: %w", createdAt, run.ID, err)
	}
	return &run, nil
}
