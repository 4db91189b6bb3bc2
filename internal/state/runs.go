package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// CreateRun starts a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context) (*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	run := &Run{
		ID:        generateID(),
		StartedAt: s.now(),
		Status:    RunStatusRunning,
	}
	s.logger.Debug("creating run", slog.String("id", run.ID))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), string(run.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run completed with its counts.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, aliasCount, circularCount int) error {
	if s.db == nil {
		return ErrNotOpen
	}
	return s.finish(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, alias_count = ?, circular_count = ? WHERE id = ?`,
		id, string(RunStatusCompleted), formatTime(s.now()), aliasCount, circularCount, id,
	)
}

// FailRun marks a run failed with an error message.
func (s *SQLiteStore) FailRun(ctx context.Context, id string, errMsg string) error {
	if s.db == nil {
		return ErrNotOpen
	}
	return s.finish(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		id, string(RunStatusFailed), formatTime(s.now()), errMsg, id,
	)
}

func (s *SQLiteStore) finish(ctx context.Context, query string, id string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

const runColumns = `id, started_at, completed_at, status, alias_count, circular_count, error`

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. A limit <= 0 returns
// every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if limit <= 0 {
		limit = -1 // no LIMIT in SQLite
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run         Run
		startedAt   string
		completedAt sql.NullString
		status      string
		errMsg      sql.NullString
	)
	if err := row.Scan(&run.ID, &startedAt, &completedAt, &status, &run.AliasCount, &run.CircularCount, &errMsg); err != nil {
		return nil, err
	}

	t, err := parseTime(startedAt)
	if err != nil {
		return nil, err
	}
	run.StartedAt = t
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		run.CompletedAt = &t
	}
	run.Status = RunStatus(status)
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return &run, nil
}
