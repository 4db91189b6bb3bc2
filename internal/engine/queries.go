package engine

import (
	"slices"

	"github.com/leapstack-labs/aliasgraph/pkg/tsort"
	"github.com/leapstack-labs/aliasgraph/pkg/types"
)

// DependencyInfo answers a dependency query for one alias.
type DependencyInfo struct {
	Alias        types.TypeName   `json:"alias"`
	Direct       bool             `json:"direct"`
	Dependencies []types.TypeName `json:"dependencies"`
	Circular     bool             `json:"circular"`
}

// Dependencies returns the direct or transitive dependencies of the alias
// written as name, resolved through module aliases.
func (e *Engine) Dependencies(name string, direct bool) (*DependencyInfo, error) {
	b := e.GetBuilder()
	canonical, err := b.Canonical(types.ParseTypeName(name))
	if err != nil {
		return nil, err
	}

	var deps types.NameSet
	if direct {
		deps, err = b.DirectDependenciesOf(canonical)
	} else {
		deps, err = b.DependenciesOf(canonical)
	}
	if err != nil {
		return nil, err
	}
	circular, err := b.IsCircular(canonical)
	if err != nil {
		return nil, err
	}

	return &DependencyInfo{
		Alias:        canonical,
		Direct:       direct,
		Dependencies: deps.Slice(),
		Circular:     circular,
	}, nil
}

// aliasGraph views the current snapshot as a dependency graph over aliases.
// Walk errors are reported through errp.
func (e *Engine) aliasGraph(errp *error) tsort.Funcs[types.TypeName] {
	reg, b := e.snapshot()
	return tsort.Funcs[types.TypeName]{
		Nodes: reg.EachTypeAlias,
		Children: func(n types.TypeName, yield func(types.TypeName) bool) {
			deps, err := b.DirectDependenciesOf(n)
			if err != nil {
				*errp = err
				return
			}
			for _, d := range deps.Slice() {
				if !yield(d) {
					return
				}
			}
		},
	}
}

// Components returns every strongly connected component of the alias graph,
// dependencies first, with members sorted.
func (e *Engine) Components() ([]tsort.Component[types.TypeName], error) {
	var walkErr error
	var out []tsort.Component[types.TypeName]
	err := tsort.EachComponent[types.TypeName](e.aliasGraph(&walkErr), func(c tsort.Component[types.TypeName]) error {
		if walkErr != nil {
			return walkErr
		}
		nodes := slices.Clone(c.Nodes)
		types.SortNames(nodes)
		out = append(out, tsort.Component[types.TypeName]{Nodes: nodes, Cyclic: c.Cyclic})
		return nil
	})
	if err == nil {
		err = walkErr
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Order returns every alias after all of its dependencies. It fails with a
// *tsort.CyclicDependencyError when any alias is circular.
func (e *Engine) Order() ([]types.TypeName, error) {
	var walkErr error
	order, err := tsort.TopologicalSort[types.TypeName](e.aliasGraph(&walkErr))
	if walkErr != nil {
		return nil, walkErr
	}
	if err != nil {
		if cycle, ok := tsort.CycleOf[types.TypeName](err); ok {
			types.SortNames(cycle)
		}
		return nil, err
	}
	return order, nil
}

// ReloadResult is the outcome of Reload.
type ReloadResult struct {
	Discovery *DiscoveryResult
	// Affected lists the changed files and every file that depends on them,
	// in either the old or the new snapshot.
	Affected []string
}

// AffectedFiles returns the changed files known to the current snapshot and
// every file that depends on them.
func (e *Engine) AffectedFiles(changed []string) []string {
	ids := make([]string, len(changed))
	for i, p := range changed {
		ids[i] = e.relPath(p)
	}
	return e.GetGraph().GetAffectedNodes(ids)
}

// Reload rediscovers the signature directory after the given files changed.
func (e *Engine) Reload(changed []string) (*ReloadResult, error) {
	before := e.AffectedFiles(changed)
	discovery, err := e.Discover()
	if err != nil {
		return nil, err
	}
	affected := append(before, e.AffectedFiles(changed)...)
	slices.Sort(affected)
	return &ReloadResult{
		Discovery: discovery,
		Affected:  slices.Compact(affected),
	}, nil
}
