package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/aliasgraph/internal/cli/config"
	"github.com/leapstack-labs/aliasgraph/internal/cli/output"
	intconfig "github.com/leapstack-labs/aliasgraph/internal/config"
	"github.com/leapstack-labs/aliasgraph/internal/engine"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	return newCommandContext(cmd, getConfig())
}

// NewCommandContextWithoutState creates a CommandContext whose engine keeps
// no run history. Useful for read-only queries.
func NewCommandContextWithoutState(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := *getConfig()
	cfg.StatePath = ""
	return newCommandContext(cmd, &cfg)
}

func newCommandContext(cmd *cobra.Command, cfg *config.Config) (*CommandContext, func(), error) {
	logger := config.GetLogger(cmd.Context())

	eng, err := createEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cleanup := func() {
		_ = eng.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Renderer: r,
	}, cleanup, nil
}

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to
// defaults with the ALIASGRAPH_SIG_DIR environment variable.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	cfg := &config.Config{OutputFormat: os.Getenv(config.EnvPrefix + "OUTPUT")}
	cfg.SigDir = os.Getenv(config.EnvPrefix + "SIG_DIR")
	cfg.Record = true
	intconfig.ApplyDefaults(&cfg.ProjectConfig)
	return cfg
}

// discover loads the signature directory and reports failures with the
// directory hint when it does not exist.
func discover(cc *CommandContext) (*engine.DiscoveryResult, error) {
	if err := cc.Cfg.ValidateDirectories(); err != nil {
		return nil, err
	}
	result, err := cc.Engine.Discover()
	if err != nil {
		return nil, fmt.Errorf("failed to load signatures: %w", err)
	}
	cc.Logger.Debug("signatures loaded", "summary", result.Summary())
	return result, nil
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	engineCfg := engine.Config{
		SigDir:     cfg.SigDir,
		StatePath:  cfg.StatePath,
		Workers:    cfg.Workers,
		EdgePolicy: policy,
		Extensions: cfg.Watch.Extensions,
		Record:     cfg.Record,
		Logger:     logger,
	}

	return engine.New(engineCfg)
}
