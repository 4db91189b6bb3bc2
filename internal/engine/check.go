package engine

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/aliasgraph/internal/state"
	"github.com/leapstack-labs/aliasgraph/internal/validate"
)

// CheckResult is the outcome of one Check.
type CheckResult struct {
	Report *validate.Report
	// Run is the recorded run, or nil when recording is off.
	Run *state.Run
}

// Check runs the circular alias check over the current snapshot, discovering
// first if nothing is loaded yet. Each check uses a fresh builder so that its
// results never mix with an older snapshot.
//
// When recording is enabled the run and its diagnostics are stored; a failed
// check is stored as a failed run.
func (e *Engine) Check(ctx context.Context) (*CheckResult, error) {
	e.logger.Debug("starting check", "sig_dir", e.sigDir)

	run, err := e.startRun(ctx)
	if err != nil {
		return nil, err
	}

	report, checkErr := e.check(ctx)
	if checkErr != nil {
		e.logger.Info("check failed", "error", checkErr.Error())
		if run != nil {
			_ = e.store.FailRun(ctx, run.ID, checkErr.Error())
		}
		return nil, checkErr
	}

	result := &CheckResult{Report: report}
	if run == nil {
		return result, nil
	}

	if err := e.store.RecordDiagnostics(ctx, run.ID, toRecords(report.Diagnostics)); err != nil {
		_ = e.store.FailRun(ctx, run.ID, err.Error())
		return nil, fmt.Errorf("failed to record diagnostics: %w", err)
	}
	if err := e.store.CompleteRun(ctx, run.ID, report.Aliases, len(report.Diagnostics)); err != nil {
		return nil, fmt.Errorf("failed to complete run: %w", err)
	}
	result.Run, err = e.store.GetRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("check recorded", "run_id", run.ID, "circular", len(report.Diagnostics))
	return result, nil
}

// Report runs the same check as Check without recording a run.
func (e *Engine) Report(ctx context.Context) (*validate.Report, error) {
	return e.check(ctx)
}

func (e *Engine) check(ctx context.Context) (*validate.Report, error) {
	if e.GetProject() == nil {
		if _, err := e.Discover(); err != nil {
			return nil, err
		}
	}

	reg := e.GetRegistry()
	b := e.newBuilder(reg)
	v := validate.New(validate.WithWorkers(e.workers), validate.WithLogger(e.logger))
	return v.Check(ctx, b, reg)
}

func (e *Engine) startRun(ctx context.Context) (*state.Run, error) {
	if !e.record || e.store == nil {
		return nil, nil
	}
	run, err := e.store.CreateRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.logger.Debug("created run", "run_id", run.ID)
	return run, nil
}

func toRecords(diags []validate.Diagnostic) []state.DiagnosticRecord {
	records := make([]state.DiagnosticRecord, len(diags))
	for i, d := range diags {
		cycle := make([]string, len(d.Cycle))
		for j, n := range d.Cycle {
			cycle[j] = n.String()
		}
		records[i] = state.DiagnosticRecord{
			Alias: d.Alias.String(),
			Code:  d.Code,
			Cycle: cycle,
			File:  d.Location.File,
			Line:  d.Location.Line,
		}
	}
	return records
}

// History returns the most recent recorded runs, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]*state.Run, error) {
	if e.store == nil {
		return nil, state.ErrNotOpen
	}
	return e.store.ListRuns(ctx, limit)
}

// RunDiagnostics returns the diagnostics stored for a run.
func (e *Engine) RunDiagnostics(ctx context.Context, runID string) ([]state.DiagnosticRecord, error) {
	if e.store == nil {
		return nil, state.ErrNotOpen
	}
	if _, err := e.store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return e.store.GetDiagnostics(ctx, runID)
}
