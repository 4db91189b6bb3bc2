package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/aliasgraph/internal/cli/output"
	"github.com/leapstack-labs/aliasgraph/pkg/tsort"
	"github.com/leapstack-labs/aliasgraph/pkg/types"
	"github.com/spf13/cobra"
)

// NewOrderCommand creates the order command.
func NewOrderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Show type aliases in dependency order",
		Long: `List every type alias after all of the aliases it depends on.

The order only exists when no alias is circular. Otherwise the command
fails and names one cycle; use 'aliasgraph check' to see them all.`,
		Example: `  # Dependency order
  aliasgraph order

  # Output as JSON
  aliasgraph order -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOrder(cmd)
		},
	}

	return cmd
}

func runOrder(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContextWithoutState(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := discover(cmdCtx); err != nil {
		return err
	}

	order, err := cmdCtx.Engine.Order()
	if err != nil {
		if cycle, ok := tsort.CycleOf[types.TypeName](err); ok {
			return fmt.Errorf("no dependency order, aliases are circular: %s: %w",
				strings.Join(nameStrings(cycle), ", "), tsort.ErrCyclicDependency)
		}
		return err
	}

	out := output.OrderOutput{Order: nameStrings(order)}
	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		orderMarkdown(r, out)
	default:
		orderText(r, out)
	}
	return nil
}

// orderText outputs the order in styled text format.
func orderText(r *output.Renderer, out output.OrderOutput) {
	styles := r.Styles()

	r.Header(1, "Dependency Order")
	for i, name := range out.Order {
		r.Printf("  %s %s\n", styles.Muted.Render(fmt.Sprintf("%3d.", i+1)), styles.Alias.Render(name))
	}
	r.Println("")
	r.Muted(fmt.Sprintf("Total: %d aliases", len(out.Order)))
}

// orderMarkdown outputs the order in markdown format.
func orderMarkdown(r *output.Renderer, out output.OrderOutput) {
	r.Println(output.FormatHeader(1, "Dependency Order"))
	r.Println("")
	for i, name := range out.Order {
		r.Printf("%d. %s\n", i+1, name)
	}
	r.Println("")
	r.Println(output.FormatKeyValue("Total Aliases", fmt.Sprintf("%d", len(out.Order))))
}
