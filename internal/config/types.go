// Package config provides the project configuration shared by the CLI and
// the engine: the types stored in aliasgraph.yaml, their defaults and how
// they are decoded.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/aliasgraph/internal/closure"
)

// ProjectConfig is the project section of aliasgraph.yaml.
type ProjectConfig struct {
	SigDir     string      `koanf:"sig_dir"`
	StatePath  string      `koanf:"state_path"`
	Workers    int         `koanf:"workers"`
	EdgePolicy string      `koanf:"edge_policy"`
	Record     bool        `koanf:"record"`
	Watch      WatchConfig `koanf:"watch"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	// Debounce coalesces bursts of file events.
	Debounce time.Duration `koanf:"debounce"`
	// Extensions selects the files that are loaded and watched.
	Extensions []string `koanf:"extensions"`
}

// Policy parses EdgePolicy.
func (c *ProjectConfig) Policy() (closure.EdgePolicy, error) {
	return closure.ParseEdgePolicy(c.EdgePolicy)
}

// Validate checks the project configuration.
func (c *ProjectConfig) Validate() error {
	if c.SigDir == "" {
		return fmt.Errorf("sig_dir is required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return c.Watch.Validate()
}

// Validate checks the watch configuration.
func (w *WatchConfig) Validate() error {
	if w.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", w.Debounce)
	}
	for _, ext := range w.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("watch.extensions: %q is not a file extension", ext)
		}
	}
	return nil
}
