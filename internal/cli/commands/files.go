package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/aliasgraph/internal/cli/output"
	"github.com/leapstack-labs/aliasgraph/internal/dag"
	"github.com/spf13/cobra"
)

// GraphQuerier provides read-only access to the file graph structure.
type GraphQuerier interface {
	GetParents(string) []string
	GetChildren(string) []string
	GetExecutionLevels() [][]string
	GetRoots() []string
	GetLeaves() []string
	TopologicalSort() ([]*dag.Node, error)
	Cycles() [][]string
	NodeCount() int
	EdgeCount() int
}

// NewFilesCommand creates the files command.
func NewFilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files [file]",
		Short: "Show the dependency graph of signature files",
		Long: `Display how signature files depend on each other.

A file depends on another when one of its aliases refers to an alias
declared there. Files are grouped into levels: every file only depends on
files in earlier levels, except for files that refer to each other, which
share a level.

Given a file, only that file, the files it depends on and the files that
depend on it are shown.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the file graph
  aliasgraph files

  # Only what app.yaml touches
  aliasgraph files app.yaml

  # Output as JSON
  aliasgraph files --output json

  # Output as Markdown
  aliasgraph files --output markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) == 1 {
				file = args[0]
			}
			return runFiles(cmd, file)
		},
	}

	return cmd
}

func runFiles(cmd *cobra.Command, file string) error {
	cmdCtx, cleanup, err := NewCommandContextWithoutState(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := discover(cmdCtx); err != nil {
		return err
	}

	graph := cmdCtx.Engine.GetGraph()
	if file != "" {
		if graph, err = neighborhood(graph, file); err != nil {
			return err
		}
	}
	r := cmdCtx.Renderer

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return filesJSON(r, graph)
	case output.ModeMarkdown:
		filesMarkdown(r, graph)
	default:
		filesText(r, graph)
	}
	return nil
}

// neighborhood narrows graph to file, everything upstream of it and
// everything affected by it.
func neighborhood(graph *dag.Graph, file string) (*dag.Graph, error) {
	file = filepath.ToSlash(filepath.Clean(file))
	if _, ok := graph.GetNode(file); !ok {
		return nil, fmt.Errorf("unknown file: %s\nHint: Paths are relative to the signature directory", file)
	}
	ids := append(graph.GetUpstreamNodes(file), graph.GetAffectedNodes([]string{file})...)
	return graph.Subgraph(ids), nil
}

// filesText outputs the file graph in styled text format.
func filesText(r *output.Renderer, graph GraphQuerier) {
	styles := r.Styles()

	r.Header(1, "File Dependency Graph")

	for i, level := range graph.GetExecutionLevels() {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, file := range level {
			deps := graph.GetParents(file)
			users := graph.GetChildren(file)

			r.Printf("  %s\n", styles.FilePath.Render(file))
			if len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(deps, ", "))
			}
			if len(users) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(users, ", "))
			}
		}
		r.Println("")
	}

	for _, cycle := range graph.Cycles() {
		r.Warning("files refer to each other: " + strings.Join(cycle, ", "))
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d files, %d dependencies", graph.NodeCount(), graph.EdgeCount())))
	r.Println(styles.Muted.Render("Roots: " + strings.Join(graph.GetRoots(), ", ")))
	r.Println(styles.Muted.Render("Leaves: " + strings.Join(graph.GetLeaves(), ", ")))
}

// filesMarkdown outputs the file graph in markdown format.
func filesMarkdown(r *output.Renderer, graph GraphQuerier) {
	r.Println(output.FormatHeader(1, "File Dependency Graph"))
	r.Println("")

	for i, level := range graph.GetExecutionLevels() {
		levelName := fmt.Sprintf("Level %d", i)
		if i == 0 {
			levelName = "Level 0 (No Dependencies)"
		}
		r.Println(output.FormatHeader(2, levelName))

		for _, file := range level {
			deps := graph.GetParents(file)
			users := graph.GetChildren(file)

			r.Printf("- %s\n", file)
			if len(deps) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(deps, ", "))
			}
			if len(users) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(users, ", "))
			}
		}
		r.Println("")
	}

	if cycles := graph.Cycles(); len(cycles) > 0 {
		r.Println(output.FormatHeader(2, "Mutually Dependent Files"))
		for _, cycle := range cycles {
			r.Printf("- %s\n", strings.Join(cycle, ", "))
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Files", fmt.Sprintf("%d", graph.NodeCount())))
	r.Println(output.FormatKeyValue("Total Dependencies", fmt.Sprintf("%d", graph.EdgeCount())))
	r.Println(output.FormatKeyValue("Roots", strings.Join(graph.GetRoots(), ", ")))
	r.Println(output.FormatKeyValue("Leaves", strings.Join(graph.GetLeaves(), ", ")))
}

// filesJSON outputs the file graph in JSON format.
func filesJSON(r *output.Renderer, graph GraphQuerier) error {
	levels := graph.GetExecutionLevels()
	out := output.FilesOutput{
		Levels:     make([]output.FileLevel, 0, len(levels)),
		TotalFiles: graph.NodeCount(),
		TotalEdges: graph.EdgeCount(),
		Roots:      graph.GetRoots(),
		Leaves:     graph.GetLeaves(),
		Cycles:     graph.Cycles(),
	}
	if nodes, err := graph.TopologicalSort(); err == nil {
		for _, n := range nodes {
			out.Order = append(out.Order, n.ID)
		}
	}

	for i, level := range levels {
		fileLevel := output.FileLevel{
			Level: i,
			Files: make([]output.FileNode, 0, len(level)),
		}
		for _, file := range level {
			fileLevel.Files = append(fileLevel.Files, output.FileNode{
				Path:      file,
				DependsOn: graph.GetParents(file),
				UsedBy:    graph.GetChildren(file),
			})
		}
		out.Levels = append(out.Levels, fileLevel)
	}

	return r.JSON(out)
}
