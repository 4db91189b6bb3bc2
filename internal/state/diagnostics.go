package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// RecordDiagnostics stores the diagnostics of a run in one transaction.
func (s *SQLiteStore) RecordDiagnostics(ctx context.Context, runID string, diags []DiagnosticRecord) (err error) {
	if s.db == nil {
		return ErrNotOpen
	}
	if len(diags) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_diagnostics (run_id, alias, code, cycle, file, line) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare diagnostic insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range diags {
		cycle, err := json.Marshal(d.Cycle)
		if err != nil {
			return fmt.Errorf("failed to encode cycle of %s: %w", d.Alias, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, d.Alias, d.Code, string(cycle), d.File, d.Line); err != nil {
			return fmt.Errorf("failed to record diagnostic for %s: %w", d.Alias, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit diagnostics: %w", err)
	}
	s.logger.Debug("recorded diagnostics", slog.String("run_id", runID), slog.Int("count", len(diags)))
	return nil
}

// GetDiagnostics returns the diagnostics of a run sorted by alias.
func (s *SQLiteStore) GetDiagnostics(ctx context.Context, runID string) ([]DiagnosticRecord, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, alias, code, cycle, file, line FROM run_diagnostics WHERE run_id = ? ORDER BY alias, code`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get diagnostics: %w", err)
	}
	defer rows.Close()

	var diags []DiagnosticRecord
	for rows.Next() {
		var (
			d     DiagnosticRecord
			cycle string
		)
		if err := rows.Scan(&d.RunID, &d.Alias, &d.Code, &cycle, &d.File, &d.Line); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		if err := json.Unmarshal([]byte(cycle), &d.Cycle); err != nil {
			return nil, fmt.Errorf("failed to decode cycle of %s: %w", d.Alias, err)
		}
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get diagnostics: %w", err)
	}
	return diags, nil
}
