package config

import "time"

// Default configuration values.
const (
	DefaultSigDir     = "sig"
	DefaultStateFile  = ".aliasgraph/state.db"
	DefaultWorkers    = 4
	DefaultEdgePolicy = "all"
	DefaultDebounce   = 200 * time.Millisecond
	DefaultHistory    = 20
)

// DefaultExtensions are the declaration file extensions read by default.
var DefaultExtensions = []string{".yaml", ".yml"}

// ApplyDefaults fills unset fields of a ProjectConfig.
func ApplyDefaults(c *ProjectConfig) {
	if c == nil {
		return
	}
	if c.SigDir == "" {
		c.SigDir = DefaultSigDir
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStateFile
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.EdgePolicy == "" {
		c.EdgePolicy = DefaultEdgePolicy
	}
	ApplyWatchDefaults(&c.Watch)
}

// ApplyWatchDefaults fills unset fields of a WatchConfig.
func ApplyWatchDefaults(w *WatchConfig) {
	if w == nil {
		return
	}
	if w.Debounce == 0 {
		w.Debounce = DefaultDebounce
	}
	if len(w.Extensions) == 0 {
		w.Extensions = append([]string(nil), DefaultExtensions...)
	}
}

// Defaults returns the flattened default values, keyed as in the config file.
func Defaults() map[string]any {
	return map[string]any{
		"sig_dir":          DefaultSigDir,
		"state_path":       DefaultStateFile,
		"workers":          DefaultWorkers,
		"edge_policy":      DefaultEdgePolicy,
		"record":           true,
		"watch.debounce":   DefaultDebounce.String(),
		"watch.extensions": append([]string(nil), DefaultExtensions...),
	}
}
