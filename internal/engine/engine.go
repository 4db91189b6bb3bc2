// Package engine ties together loading, dependency analysis and run
// recording for a directory of type alias declarations.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/aliasgraph/internal/closure"
	"github.com/leapstack-labs/aliasgraph/internal/dag"
	"github.com/leapstack-labs/aliasgraph/internal/loader"
	"github.com/leapstack-labs/aliasgraph/internal/registry"
	"github.com/leapstack-labs/aliasgraph/internal/state"
	"github.com/leapstack-labs/aliasgraph/internal/validate"
)

// Engine holds one loaded snapshot of a signature directory.
type Engine struct {
	logger *slog.Logger

	store      *state.SQLiteStore
	sigDir     string
	workers    int
	policy     closure.EdgePolicy
	extensions []string
	record     bool

	// Snapshot, replaced wholesale by Discover.
	mu       sync.RWMutex
	project  *loader.Project
	registry *registry.AliasRegistry
	builder  *closure.Builder
	graph    *dag.Graph
}

// Config holds engine configuration.
type Config struct {
	// SigDir is the directory of declaration files.
	SigDir string
	// StatePath is the SQLite state database. Empty disables run history.
	StatePath string
	// Workers bounds the circularity fan-out of Check.
	Workers int
	// EdgePolicy selects which references count as dependencies.
	EdgePolicy closure.EdgePolicy
	// Extensions overrides the declaration file extensions.
	Extensions []string
	// Record stores each Check as a run when a state store is open.
	Record bool
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine. The state store is opened and migrated when
// StatePath is set.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine", "sig_dir", cfg.SigDir, "edge_policy", cfg.EdgePolicy.String())

	workers := cfg.Workers
	if workers <= 0 {
		workers = validate.DefaultWorkers
	}
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = loader.DefaultExtensions
	}

	e := &Engine{
		logger:     logger,
		sigDir:     cfg.SigDir,
		workers:    workers,
		policy:     cfg.EdgePolicy,
		extensions: exts,
		record:     cfg.Record,
		registry:   registry.New(),
		graph:      dag.NewGraph(),
	}
	e.builder = e.newBuilder(e.registry)

	if cfg.StatePath != "" {
		store := state.NewSQLiteStore(logger)
		if err := store.Open(cfg.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		if err := store.Migrate(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize state schema: %w", err)
		}
		e.store = store
	}

	return e, nil
}

func (e *Engine) newBuilder(reg *registry.AliasRegistry) *closure.Builder {
	return closure.New(reg, closure.WithLogger(e.logger), closure.WithEdgePolicy(e.policy))
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			return fmt.Errorf("failed to close state store: %w", err)
		}
	}
	return nil
}

// --- Getters (public accessors) ---

// SigDir returns the signature directory.
func (e *Engine) SigDir() string {
	return e.sigDir
}

// Extensions returns the declaration file extensions in use.
func (e *Engine) Extensions() []string {
	return e.extensions
}

// GetGraph returns the file dependency graph of the current snapshot.
func (e *Engine) GetGraph() *dag.Graph {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph
}

// GetRegistry returns the alias registry of the current snapshot.
func (e *Engine) GetRegistry() *registry.AliasRegistry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry
}

// GetBuilder returns the memoizing closure builder of the current snapshot.
// Its caches live until the next Discover.
func (e *Engine) GetBuilder() *closure.Builder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.builder
}

func (e *Engine) snapshot() (*registry.AliasRegistry, *closure.Builder) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry, e.builder
}

// GetProject returns the loaded declaration files, or nil before Discover.
func (e *Engine) GetProject() *loader.Project {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.project
}

// GetStateStore returns the state store, or nil when history is disabled.
func (e *Engine) GetStateStore() *state.SQLiteStore {
	return e.store
}
