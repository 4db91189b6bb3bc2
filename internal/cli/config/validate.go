package config

import (
	"fmt"
	"os"
)

var validOutputs = map[string]bool{"": true, "auto": true, "text": true, "markdown": true, "json": true}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !validOutputs[c.OutputFormat] {
		return fmt.Errorf("unknown output format %q (expected auto, text, markdown or json)", c.OutputFormat)
	}
	return c.ProjectConfig.Validate()
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	info, err := os.Stat(c.SigDir)
	if os.IsNotExist(err) {
		return fmt.Errorf("signature directory does not exist: %s\nHint: Create the directory or use --sig-dir to specify a different path", c.SigDir)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("signature path is not a directory: %s", c.SigDir)
	}
	return nil
}
