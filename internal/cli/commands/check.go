package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/aliasgraph/internal/cli/output"
	"github.com/leapstack-labs/aliasgraph/internal/engine"
	"github.com/spf13/cobra"
)

// ErrCircularAliases is returned by check --strict when any alias is circular.
var ErrCircularAliases = errors.New("circular type aliases found")

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Strict bool
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report circular type aliases",
		Long: `Load every signature file and report each type alias that can reach
itself through its own definition.

Each check is recorded in the state database unless recording is disabled.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Check the signature directory
  aliasgraph check

  # Fail when any alias is circular (for CI)
  aliasgraph check --strict

  # Only follow union, intersection and optional members
  aliasgraph check --edge-policy transparent

  # Output as JSON
  aliasgraph check -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Exit with an error when circular aliases are found")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := discover(cmdCtx); err != nil {
		return err
	}

	result, err := cmdCtx.Engine.Check(cmd.Context())
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	out := toCheckOutput(result)
	if err := renderCheck(cmdCtx.Renderer, out); err != nil {
		return err
	}

	if opts.Strict && out.Circular > 0 {
		return fmt.Errorf("%w: %d", ErrCircularAliases, out.Circular)
	}
	return nil
}

func renderCheck(r *output.Renderer, out output.CheckOutput) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		checkMarkdown(r, out)
	default:
		checkText(r, out)
	}
	return nil
}

func toCheckOutput(result *engine.CheckResult) output.CheckOutput {
	report := result.Report
	out := output.CheckOutput{
		Aliases:     report.Aliases,
		Circular:    len(report.Diagnostics),
		Cycles:      make([][]string, 0, len(report.Cycles)),
		Diagnostics: make([]output.DiagnosticOutput, 0, len(report.Diagnostics)),
	}
	if result.Run != nil {
		out.RunID = result.Run.ID
	}
	for _, cycle := range report.Cycles {
		out.Cycles = append(out.Cycles, nameStrings(cycle))
	}
	for _, d := range report.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, output.DiagnosticOutput{
			Code:    d.Code,
			Alias:   d.Alias.String(),
			Cycle:   nameStrings(d.Cycle),
			File:    d.Location.File,
			Line:    d.Location.Line,
			Message: d.Message,
		})
	}
	return out
}

func diagnosticLocation(d output.DiagnosticOutput) string {
	if d.File == "" {
		return ""
	}
	if d.Line == 0 {
		return d.File
	}
	return fmt.Sprintf("%s:%d", d.File, d.Line)
}

// checkText outputs check results in styled text format.
func checkText(r *output.Renderer, out output.CheckOutput) {
	styles := r.Styles()

	r.Header(1, "Circular Type Aliases")

	if out.Circular == 0 {
		r.Success(fmt.Sprintf("%d aliases, none circular", out.Aliases))
	} else {
		for _, d := range out.Diagnostics {
			r.StatusLine(styles.Alias.Render(d.Alias), "error", diagnosticLocation(d))
			r.Printf("    %s %s\n", styles.Muted.Render("cycle:"), strings.Join(d.Cycle, " -> "))
		}
		r.Println("")
		r.Warning(fmt.Sprintf("%d of %d aliases are circular (%d cycles)", out.Circular, out.Aliases, len(out.Cycles)))
	}

	if out.RunID != "" {
		r.Muted("run: " + out.RunID)
	}
}

// checkMarkdown outputs check results in markdown format.
func checkMarkdown(r *output.Renderer, out output.CheckOutput) {
	r.Println(output.FormatHeader(1, "Circular Type Aliases"))
	r.Println("")

	if len(out.Diagnostics) > 0 {
		for _, d := range out.Diagnostics {
			line := fmt.Sprintf("- `%s`: %s", d.Alias, strings.Join(d.Cycle, " -> "))
			if loc := diagnosticLocation(d); loc != "" {
				line += " (" + loc + ")"
			}
			r.Println(line)
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Aliases", fmt.Sprintf("%d", out.Aliases)))
	r.Println(output.FormatKeyValue("Circular", fmt.Sprintf("%d", out.Circular)))
	r.Println(output.FormatKeyValue("Cycles", fmt.Sprintf("%d", len(out.Cycles))))
	if out.RunID != "" {
		r.Println(output.FormatKeyValue("Run", out.RunID))
	}
}
