package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	sharedcfg "github.com/leapstack-labs/aliasgraph/internal/config"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
// This key is shared with root.go via both using the same type.
type loggerKey struct{}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// nestedEnvSections are config sections reachable from flat env names:
// ALIASGRAPH_WATCH_DEBOUNCE -> watch.debounce
var nestedEnvSections = []string{"watch"}

// envKey maps an environment variable name to a config key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range nestedEnvSections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// flagKey maps a flag name to a config key.
func flagKey(name string) string {
	key := strings.ReplaceAll(name, "-", "_")
	// The CLI uses --state for brevity, the config key is state_path.
	if key == "state" {
		return "state_path"
	}
	return key
}

// inferProjectRoot determines the project root from CLI flags and filesystem.
// Priority:
//  1. Explicit --project-dir flag
//  2. Infer from --sig-dir (parent if it has a config file or the folder is named "sig")
//  3. Search upward from CWD for aliasgraph.yaml
//  4. Current working directory
func inferProjectRoot(flags *pflag.FlagSet) string {
	if flags != nil {
		if f := flags.Lookup("project-dir"); f != nil && f.Changed && f.Value.String() != "" {
			if abs, err := filepath.Abs(f.Value.String()); err == nil {
				return abs
			}
			return filepath.Clean(f.Value.String())
		}

		if f := flags.Lookup("sig-dir"); f != nil && f.Changed && f.Value.String() != "" {
			if absSig, err := filepath.Abs(f.Value.String()); err == nil {
				parent := filepath.Dir(absSig)
				if sharedcfg.FindConfigFile(parent) != "" || filepath.Base(absSig) == DefaultSigDir {
					return parent
				}
			}
		}
	}

	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	if root := sharedcfg.FindProjectRoot(cwd); root != "" {
		return root
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, absolute or the in-memory marker.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// absFlag returns the absolute value of a path flag that was set explicitly.
func absFlag(flags *pflag.FlagSet, name string) string {
	if flags == nil {
		return ""
	}
	f := flags.Lookup(name)
	if f == nil || !f.Changed || f.Value.String() == "" {
		return ""
	}
	v := f.Value.String()
	if v == ":memory:" {
		return v
	}
	abs, err := filepath.Abs(v)
	if err != nil {
		return v
	}
	return abs
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	projectRoot := inferProjectRoot(flags)

	// Paths given as flags are relative to CWD, not to the project root.
	flagSigDir := absFlag(flags, "sig-dir")
	flagStatePath := absFlag(flags, "state")

	// An explicit config file anchors the project unless a flag already did.
	if cfgFile != "" && projectRoot == inferProjectRoot(nil) {
		if absPath, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(absPath)
		}
	}

	// 1. Load defaults
	defaults := sharedcfg.Defaults()
	defaults["verbose"] = false
	defaults["output"] = DefaultOutput
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	if cfgFile == "" {
		cfgFile = sharedcfg.FindConfigFile(projectRoot)
	}
	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (ALIASGRAPH_ prefix)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, sharedcfg.UnmarshalConf(&cfg)); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	sharedcfg.ApplyDefaults(&cfg.ProjectConfig)

	// 6. Resolve paths against the project root
	cfg.ProjectRoot = projectRoot
	cfg.SigDir = expandEnvVars(cfg.SigDir)
	cfg.StatePath = expandEnvVars(cfg.StatePath)
	if flagSigDir != "" {
		cfg.SigDir = flagSigDir
	} else {
		cfg.SigDir = resolvePathRelativeTo(cfg.SigDir, projectRoot)
	}
	if flagStatePath != "" {
		cfg.StatePath = flagStatePath
	} else {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}
