package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/aliasgraph/internal/engine"
	"github.com/leapstack-labs/aliasgraph/pkg/tsort"
	"github.com/leapstack-labs/aliasgraph/pkg/types"
	"github.com/spf13/cobra"
)

const replPrompt = "aliasgraph> "

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Query the alias graph interactively",
		Long: `Start an interactive prompt over the loaded signatures.

All queries share one memoizing closure builder, so repeated questions
about the same aliases are answered from its caches. Type help for the
list of commands.`,
		Example: `  aliasgraph repl`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd)
		},
	}

	return cmd
}

func runREPL(cmd *cobra.Command) error {
	cmdCtx, rlCfg, cleanup, err := newREPLSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := discover(cmdCtx); err != nil {
		return err
	}
	eng := cmdCtx.Engine

	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "aliasgraph REPL (%d aliases in %s)\n", eng.GetRegistry().Count(), cmdCtx.Cfg.SigDir)
	_, _ = fmt.Fprintln(out, "Type help for commands, quit to exit")
	_, _ = fmt.Fprintln(out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if quit := evalREPLLine(out, cmd.ErrOrStderr(), eng, line); quit {
			break
		}
	}

	return nil
}

// newREPLSession creates a stateless command context and the readline
// config for it. The history file still follows the configured state path.
func newREPLSession(cmd *cobra.Command) (*CommandContext, *readline.Config, func(), error) {
	historyFile := replHistoryFile(getConfig().StatePath)

	cmdCtx, cleanup, err := NewCommandContextWithoutState(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	rlCfg := &readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newAliasCompleter(cmdCtx.Engine),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	}
	return cmdCtx, rlCfg, cleanup, nil
}

// replHistoryFile keeps REPL history next to the state database.
func replHistoryFile(statePath string) string {
	if statePath == "" || statePath == ":memory:" {
		return ""
	}
	return filepath.Join(filepath.Dir(statePath), "repl_history")
}

// evalREPLLine runs one REPL command and reports whether the REPL should exit.
func evalREPLLine(out, errOut io.Writer, eng *engine.Engine, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	command := strings.ToLower(parts[0])
	args := parts[1:]

	needAlias := func() (string, bool) {
		if len(args) != 1 {
			_, _ = fmt.Fprintf(errOut, "Usage: %s <alias>\n", command)
			return "", false
		}
		return args[0], true
	}

	switch command {
	case "quit", "exit":
		return true

	case "help":
		printREPLHelp(out)

	case "deps", "direct":
		alias, ok := needAlias()
		if !ok {
			return false
		}
		info, err := eng.Dependencies(alias, command == "direct")
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		deps := nameStrings(info.Dependencies)
		if len(deps) == 0 {
			_, _ = fmt.Fprintf(out, "%s: (none)\n", info.Alias)
			return false
		}
		_, _ = fmt.Fprintf(out, "%s: %s\n", info.Alias, strings.Join(deps, ", "))

	case "circular":
		alias, ok := needAlias()
		if !ok {
			return false
		}
		info, err := eng.Dependencies(alias, false)
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		_, _ = fmt.Fprintf(out, "%s: %t\n", info.Alias, info.Circular)

	case "order":
		order, err := eng.Order()
		if err != nil {
			if cycle, ok := tsort.CycleOf[types.TypeName](err); ok {
				_, _ = fmt.Fprintf(errOut, "Error: no order, circular: %s\n", strings.Join(nameStrings(cycle), ", "))
				return false
			}
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		_, _ = fmt.Fprintln(out, strings.Join(nameStrings(order), " "))

	case "scc":
		comps, err := eng.Components()
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		for _, c := range comps {
			mark := " "
			if c.Cyclic {
				mark = "*"
			}
			_, _ = fmt.Fprintf(out, "%s %s\n", mark, strings.Join(nameStrings(c.Nodes), ", "))
		}

	case "stats":
		stats := eng.GetBuilder().Stats()
		_, _ = fmt.Fprintf(out, "definition walks: %d, closure walks: %d\n", stats.DefinitionWalks, stats.ClosureWalks)

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type help for commands)\n", command)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  deps <alias>      Transitive dependencies of an alias
  direct <alias>    Aliases named directly in the definition
  circular <alias>  Whether the alias reaches itself
  order             All aliases in dependency order
  scc               Strongly connected components (* marks cyclic)
  stats             Work done by the closure builder so far
  help              Show this help message
  quit / exit       Exit the REPL

Tips:
  - Names may be written through module aliases (::T::a)
  - Tab completion works for alias names
`
	_, _ = fmt.Fprintln(w, help)
}

// newAliasCompleter completes commands and, after them, alias names.
func newAliasCompleter(eng *engine.Engine) *readline.PrefixCompleter {
	aliases := readline.PcItemDynamic(func(string) []string {
		decls := eng.GetRegistry().AllDecls()
		names := make([]string, len(decls))
		for i, d := range decls {
			names[i] = d.Name.String()
		}
		return names
	})

	return readline.NewPrefixCompleter(
		readline.PcItem("deps", aliases),
		readline.PcItem("direct", aliases),
		readline.PcItem("circular", aliases),
		readline.PcItem("order"),
		readline.PcItem("scc"),
		readline.PcItem("stats"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
		readline.PcItem("exit"),
	)
}
