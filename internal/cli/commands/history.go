package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/aliasgraph/internal/cli/output"
	intconfig "github.com/leapstack-labs/aliasgraph/internal/config"
	"github.com/leapstack-labs/aliasgraph/internal/state"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded check runs",
		Long: `List past check runs from the state database, newest first.

Given a run ID, show that run and the circular aliases it found.`,
		Example: `  # Recent runs
  aliasgraph history

  # Last 5 runs
  aliasgraph history --limit 5

  # One run with its diagnostics
  aliasgraph history 0b6f3c1e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runHistory(cmd, runID, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", intconfig.DefaultHistory, "Maximum number of runs to show (0 for all)")

	return cmd
}

func runHistory(cmd *cobra.Command, runID string, opts *HistoryOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if cmdCtx.Cfg.StatePath == "" {
		return fmt.Errorf("run history is disabled\nHint: Set state_path in aliasgraph.yaml or use --state")
	}

	ctx := cmd.Context()
	eng := cmdCtx.Engine

	var out output.HistoryOutput
	if runID != "" {
		run, err := eng.GetStateStore().GetRun(ctx, runID)
		if err != nil {
			return err
		}
		records, err := eng.RunDiagnostics(ctx, runID)
		if err != nil {
			return err
		}
		ro := toRunOutput(run)
		for _, rec := range records {
			ro.Diagnostics = append(ro.Diagnostics, rec.Alias+": "+strings.Join(rec.Cycle, " -> "))
		}
		out.Runs = []output.RunOutput{ro}
	} else {
		runs, err := eng.History(ctx, opts.Limit)
		if err != nil {
			return err
		}
		out.Runs = make([]output.RunOutput, 0, len(runs))
		for _, run := range runs {
			out.Runs = append(out.Runs, toRunOutput(run))
		}
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}
	historyTable(r, out)
	return nil
}

func toRunOutput(run *state.Run) output.RunOutput {
	return output.RunOutput{
		ID:          run.ID,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		DurationMS:  run.Duration().Milliseconds(),
		Aliases:     run.AliasCount,
		Circular:    run.CircularCount,
		Error:       run.Error,
	}
}

// historyTable outputs runs as a table, followed by the diagnostics of a
// single run.
func historyTable(r *output.Renderer, out output.HistoryOutput) {
	r.Header(1, "Check History")

	rows := make([][]string, 0, len(out.Runs))
	for _, run := range out.Runs {
		rows = append(rows, []string{
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Status,
			fmt.Sprintf("%d", run.Aliases),
			fmt.Sprintf("%d", run.Circular),
			(time.Duration(run.DurationMS) * time.Millisecond).String(),
		})
	}
	r.Table([]string{"Run", "Started", "Status", "Aliases", "Circular", "Duration"}, rows)

	if len(out.Runs) != 1 {
		return
	}
	run := out.Runs[0]
	if run.Error != "" {
		r.Println("")
		r.Error(run.Error)
	}
	if len(run.Diagnostics) > 0 {
		r.Println("")
		r.Header(2, "Circular Aliases")
		if r.EffectiveMode() == output.ModeText {
			for _, d := range run.Diagnostics {
				r.Printf("  %s\n", d)
			}
			return
		}
		r.Println(output.FormatList(run.Diagnostics))
	}
}
