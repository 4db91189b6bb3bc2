package engine

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/aliasgraph/internal/dag"
	"github.com/leapstack-labs/aliasgraph/internal/loader"
	"github.com/leapstack-labs/aliasgraph/internal/registry"
)

// DiscoveryResult contains statistics about the discovery run.
type DiscoveryResult struct {
	Files         int
	Aliases       int
	ModuleAliases int
	FileEdges     int

	Duration time.Duration
}

// Summary returns a human-readable summary.
func (r *DiscoveryResult) Summary() string {
	return fmt.Sprintf("Files: %d | Aliases: %d | Module aliases: %d | File edges: %d | Duration: %s",
		r.Files, r.Aliases, r.ModuleAliases, r.FileEdges, r.Duration.Round(time.Millisecond))
}

// Discover loads the signature directory and replaces the current snapshot.
// On error the previous snapshot stays in place.
func (e *Engine) Discover() (*DiscoveryResult, error) {
	start := time.Now()
	e.logger.Debug("starting discovery", "sig_dir", e.sigDir)

	project, err := loader.LoadDir(e.sigDir, loader.WithLogger(e.logger), loader.WithExtensions(e.extensions...))
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	for _, ma := range project.ModuleAliases() {
		if err := reg.RegisterModuleAlias(ma.Name, ma.Target); err != nil {
			return nil, fmt.Errorf("%s: %w", ma.Location, err)
		}
	}
	for _, decl := range project.Decls() {
		if err := reg.Register(decl); err != nil {
			return nil, err
		}
	}

	builder := e.newBuilder(reg)
	graph, err := e.buildGraph(project, reg)
	if err != nil {
		return nil, fmt.Errorf("graph construction failed: %w", err)
	}

	e.mu.Lock()
	e.project = project
	e.registry = reg
	e.builder = builder
	e.graph = graph
	e.mu.Unlock()

	result := &DiscoveryResult{
		Files:         len(project.Files),
		Aliases:       reg.Count(),
		ModuleAliases: len(reg.ModuleAliases()),
		FileEdges:     graph.EdgeCount(),
		Duration:      time.Since(start),
	}
	e.logger.Debug("discovery completed",
		"files", result.Files,
		"aliases", result.Aliases,
		"file_edges", result.FileEdges,
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}

// buildGraph links each file to the files declaring the aliases it
// references. Edges run from the declaring file to the referencing one.
// The graph may contain cycles.
func (e *Engine) buildGraph(project *loader.Project, reg *registry.AliasRegistry) (*dag.Graph, error) {
	graph := dag.NewGraph()
	for _, f := range project.Files {
		graph.AddNode(e.relPath(f.Path), f)
	}

	// A throwaway builder so that the snapshot builder starts with empty stats.
	deps := e.newBuilder(reg)
	for _, decl := range reg.AllDecls() {
		file := e.relPath(decl.Location.File)
		direct, err := deps.DirectDependenciesOf(decl.Name)
		if err != nil {
			return nil, err
		}
		for _, dep := range direct.Slice() {
			depFile, ok := reg.FileOf(dep)
			if !ok {
				continue
			}
			depFile = e.relPath(depFile)
			if depFile == file {
				continue
			}
			if err := graph.AddEdge(depFile, file); err != nil {
				return nil, fmt.Errorf("failed to add dependency %s -> %s: %w", depFile, file, err)
			}
		}
	}
	return graph, nil
}

// relPath maps a path under the signature directory to the slash-separated
// ID used in the file graph. Paths outside it are kept as given.
func (e *Engine) relPath(path string) string {
	rel, err := filepath.Rel(e.sigDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
