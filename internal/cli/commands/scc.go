package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/aliasgraph/internal/cli/output"
	"github.com/leapstack-labs/aliasgraph/pkg/tsort"
	"github.com/leapstack-labs/aliasgraph/pkg/types"
	"github.com/spf13/cobra"
)

// SCCOptions holds options for the scc command.
type SCCOptions struct {
	CyclesOnly bool
}

// NewSCCCommand creates the scc command.
func NewSCCCommand() *cobra.Command {
	opts := &SCCOptions{}

	cmd := &cobra.Command{
		Use:   "scc",
		Short: "Show strongly connected components of the alias graph",
		Long: `Group type aliases into strongly connected components.

Components are listed sink first: a component only depends on components
listed before it. A component is cyclic when it has more than one alias
or its single alias refers to itself.`,
		Example: `  # All components
  aliasgraph scc

  # Only the cyclic ones
  aliasgraph scc --cycles-only`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSCC(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.CyclesOnly, "cycles-only", false, "Only show cyclic components")

	return cmd
}

func runSCC(cmd *cobra.Command, opts *SCCOptions) error {
	cmdCtx, cleanup, err := NewCommandContextWithoutState(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := discover(cmdCtx); err != nil {
		return err
	}

	comps, err := cmdCtx.Engine.Components()
	if err != nil {
		return fmt.Errorf("failed to compute components: %w", err)
	}

	out := toSCCOutput(comps, opts.CyclesOnly)
	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		sccMarkdown(r, out)
	default:
		sccText(r, out)
	}
	return nil
}

// toSCCOutput converts components; Total and Cyclic always count every
// component, even when only cyclic ones are listed.
func toSCCOutput(comps []tsort.Component[types.TypeName], cyclesOnly bool) output.SCCOutput {
	out := output.SCCOutput{
		Components: make([]output.ComponentOutput, 0, len(comps)),
		Total:      len(comps),
	}
	for _, c := range comps {
		if c.Cyclic {
			out.Cyclic++
		} else if cyclesOnly {
			continue
		}
		out.Components = append(out.Components, output.ComponentOutput{
			Aliases: nameStrings(c.Nodes),
			Cyclic:  c.Cyclic,
		})
	}
	return out
}

// sccText outputs components in styled text format.
func sccText(r *output.Renderer, out output.SCCOutput) {
	styles := r.Styles()

	r.Header(1, "Strongly Connected Components")
	for i, c := range out.Components {
		status := "success"
		if c.Cyclic {
			status = "error"
		}
		r.StatusLine(fmt.Sprintf("%d: %s", i, styles.Alias.Render(strings.Join(c.Aliases, ", "))), status, "")
	}
	r.Println("")
	r.Muted(fmt.Sprintf("Total: %d components, %d cyclic", out.Total, out.Cyclic))
}

// sccMarkdown outputs components in markdown format.
func sccMarkdown(r *output.Renderer, out output.SCCOutput) {
	r.Println(output.FormatHeader(1, "Strongly Connected Components"))
	r.Println("")

	rows := make([][]string, len(out.Components))
	for i, c := range out.Components {
		cyclic := "no"
		if c.Cyclic {
			cyclic = "yes"
		}
		rows[i] = []string{fmt.Sprintf("%d", i), strings.Join(c.Aliases, ", "), cyclic}
	}
	r.Table([]string{"#", "Aliases", "Cyclic"}, rows)
	r.Println("")

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Components", fmt.Sprintf("%d", out.Total)))
	r.Println(output.FormatKeyValue("Cyclic Components", fmt.Sprintf("%d", out.Cyclic)))
}
