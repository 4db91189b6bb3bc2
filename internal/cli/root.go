// Package cli provides the command-line interface for aliasgraph.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/aliasgraph/internal/cli/commands"
	"github.com/leapstack-labs/aliasgraph/internal/cli/config"
	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aliasgraph",
		Short: "aliasgraph - type alias dependency analysis",
		Long: `aliasgraph loads type alias declarations from signature files, orders
them by dependency and reports every alias whose definition refers back
to itself.

Aliases may refer to each other across files and namespaces, and module
aliases let a namespace be written under a shorter name.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			cmd.SetContext(config.WithLogger(cmd.Context(), logger))

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", "path", configFile)
			}
			logger.Debug("configuration loaded",
				"sig_dir", cfg.SigDir,
				"state_path", cfg.StatePath,
				"edge_policy", cfg.EdgePolicy,
				"workers", cfg.Workers)

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set version template
	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Type alias dependency analysis built with Go
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./aliasgraph.yaml)")
	rootCmd.PersistentFlags().String("project-dir", "", "Project root directory")
	rootCmd.PersistentFlags().String("sig-dir", "", "Path to signature directory")
	rootCmd.PersistentFlags().String("state", "", "Path to state database (:memory: for a throwaway one)")
	rootCmd.PersistentFlags().Int("workers", 0, "Number of aliases checked in parallel")
	rootCmd.PersistentFlags().String("edge-policy", "", "References that count as dependencies (all|transparent)")
	rootCmd.PersistentFlags().Bool("record", true, "Record each check in the state database")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|text|markdown|json)")

	// Register completion for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("edge-policy", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"all", "transparent"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewDepsCommand())
	rootCmd.AddCommand(commands.NewOrderCommand())
	rootCmd.AddCommand(commands.NewSCCCommand())
	rootCmd.AddCommand(commands.NewFilesCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewWatchCommand())
	rootCmd.AddCommand(commands.NewREPLCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for aliasgraph.

To load completions:

Bash:
  $ source <(aliasgraph completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ aliasgraph completion bash > /etc/bash_completion.d/aliasgraph
  # macOS:
  $ aliasgraph completion bash > $(brew --prefix)/etc/bash_completion.d/aliasgraph

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ aliasgraph completion zsh > "${fpath[1]}/_aliasgraph"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ aliasgraph completion fish | source

  # To load completions for each session, execute once:
  $ aliasgraph completion fish > ~/.config/fish/completions/aliasgraph.fish

PowerShell:
  PS> aliasgraph completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> aliasgraph completion powershell > aliasgraph.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
