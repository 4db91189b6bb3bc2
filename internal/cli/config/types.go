// Package config provides configuration management for the aliasgraph CLI.
//
// It extends the shared project configuration from internal/config with
// CLI-specific fields and layers it from defaults, the config file,
// ALIASGRAPH_* environment variables and command-line flags.
package config

import (
	sharedcfg "github.com/leapstack-labs/aliasgraph/internal/config"
)

// ProjectConfig is an alias for the shared project configuration.
type ProjectConfig = sharedcfg.ProjectConfig

// WatchConfig is an alias for the shared watch configuration.
type WatchConfig = sharedcfg.WatchConfig

// Config holds all CLI configuration options.
type Config struct {
	ProjectConfig `koanf:",squash"`

	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultSigDir    = sharedcfg.DefaultSigDir
	DefaultStateFile = sharedcfg.DefaultStateFile
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "ALIASGRAPH_"
