package commands

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/aliasgraph/internal/cli/output"
	"github.com/leapstack-labs/aliasgraph/internal/closure"
	"github.com/leapstack-labs/aliasgraph/internal/engine"
	"github.com/leapstack-labs/aliasgraph/pkg/types"
	"github.com/spf13/cobra"
)

// DepsOptions holds options for the deps command.
type DepsOptions struct {
	Direct bool
}

// NewDepsCommand creates the deps command.
func NewDepsCommand() *cobra.Command {
	opts := &DepsOptions{}

	cmd := &cobra.Command{
		Use:   "deps <alias>",
		Short: "Show the dependencies of a type alias",
		Long: `Show the type aliases that an alias depends on.

By default the transitive closure is shown. Names are resolved through
module aliases and a relative name is looked up from the root namespace.
An alias that appears in its own dependencies is circular.`,
		Example: `  # Transitive dependencies
  aliasgraph deps ::config

  # Only the aliases named in the definition
  aliasgraph deps ::config --direct`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeps(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Direct, "direct", false, "Only show direct dependencies")

	return cmd
}

func runDeps(cmd *cobra.Command, alias string, opts *DepsOptions) error {
	cmdCtx, cleanup, err := NewCommandContextWithoutState(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := discover(cmdCtx); err != nil {
		return err
	}

	info, err := cmdCtx.Engine.Dependencies(alias, opts.Direct)
	if err != nil {
		if errors.Is(err, closure.ErrUnknownEntity) {
			return fmt.Errorf("%w\nHint: Run 'aliasgraph order' or 'aliasgraph scc' to list known aliases", err)
		}
		return err
	}

	out := toDepsOutput(info)
	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		depsMarkdown(r, out)
	default:
		depsText(r, out)
	}
	return nil
}

func toDepsOutput(info *engine.DependencyInfo) output.DepsOutput {
	return output.DepsOutput{
		Alias:        info.Alias.String(),
		Direct:       info.Direct,
		Circular:     info.Circular,
		Dependencies: nameStrings(info.Dependencies),
	}
}

func depsTitle(out output.DepsOutput) string {
	if out.Direct {
		return "Direct dependencies of " + out.Alias
	}
	return "Dependencies of " + out.Alias
}

// depsText outputs dependencies in styled text format.
func depsText(r *output.Renderer, out output.DepsOutput) {
	styles := r.Styles()

	r.Header(1, depsTitle(out))
	if len(out.Dependencies) == 0 {
		r.Muted("  (none)")
	}
	for _, dep := range out.Dependencies {
		r.Printf("  %s\n", styles.Alias.Render(dep))
	}
	r.Println("")

	if out.Circular {
		r.Warning(out.Alias + " is circular")
	} else {
		r.Success(out.Alias + " is not circular")
	}
}

// depsMarkdown outputs dependencies in markdown format.
func depsMarkdown(r *output.Renderer, out output.DepsOutput) {
	r.Println(output.FormatHeader(1, depsTitle(out)))
	r.Println("")
	r.Println(output.FormatList(out.Dependencies))
	r.Println("")
	r.Println(output.FormatKeyValue("Circular", fmt.Sprintf("%t", out.Circular)))
}

func nameStrings(names []types.TypeName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.String()
	}
	return out
}
