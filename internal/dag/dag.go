// Package dag provides the dependency graph between declaration files.
// An edge parent -> child means child declares an alias whose definition
// references an alias declared in parent. Files may depend on each other
// in a cycle (mutually recursive aliases split across files), so ordering
// and levels are computed over strongly connected components.
package dag

import (
	"fmt"
	"slices"
	"sort"

	"github.com/leapstack-labs/aliasgraph/pkg/tsort"
)

// Node represents a declaration file in the graph.
type Node struct {
	// ID is the file path relative to the signature directory
	ID string
	// Data holds arbitrary node data
	Data any
}

// Graph is a file dependency graph. It implements tsort.Graph[string]
// with each node's children being its parents, so traversal visits
// dependencies before dependents.
type Graph struct {
	nodes   map[string]*Node
	edges   map[string][]string // parent -> children (dependents)
	parents map[string][]string // child -> parents (dependencies)
}

var _ tsort.Graph[string] = (*Graph)(nil)

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node to the graph, replacing the data of an existing one.
func (g *Graph) AddNode(id string, data any) {
	if node, exists := g.nodes[id]; exists {
		node.Data = data
		return
	}
	g.nodes[id] = &Node{ID: id, Data: data}
	g.edges[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
// Duplicate edges are ignored.
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	g.edges[parentID] = insertSorted(g.edges[parentID], childID)
	g.parents[childID] = insertSorted(g.parents[childID], parentID)
	return nil
}

func insertSorted(ids []string, id string) []string {
	i, found := slices.BinarySearch(ids, id)
	if found {
		return ids
	}
	return slices.Insert(ids, i, id)
}

// EachNode implements tsort.NodeSource in sorted ID order.
func (g *Graph) EachNode(yield func(string) bool) {
	for _, id := range g.sortedIDs() {
		if !yield(id) {
			return
		}
	}
}

// EachChild implements tsort.ChildSource. The children of a file in
// traversal terms are the files it depends on.
func (g *Graph) EachChild(id string, yield func(string) bool) {
	for _, parentID := range g.parents[id] {
		if !yield(parentID) {
			return
		}
	}
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// GetParents returns the parents (dependencies) of a node, sorted.
func (g *Graph) GetParents(id string) []string {
	return g.parents[id]
}

// GetChildren returns the children (dependents) of a node, sorted.
func (g *Graph) GetChildren(id string) []string {
	return g.edges[id]
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// Cycles returns every group of mutually dependent files, each sorted.
func (g *Graph) Cycles() [][]string {
	cycles := tsort.Cycles[string](g)
	for _, c := range cycles {
		sort.Strings(c)
	}
	return cycles
}

// TopologicalSort returns nodes in topological order (dependencies before
// dependents). It fails with a *tsort.CyclicDependencyError if files
// depend on each other in a cycle.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	ids, err := tsort.TopologicalSort[string](g)
	if err != nil {
		return nil, err
	}
	result := make([]*Node, 0, len(ids))
	for _, id := range ids {
		result = append(result, g.nodes[id])
	}
	return result, nil
}

// GetExecutionLevels groups files so that every file's dependencies sit in
// an earlier level. Level 0 contains files with no dependencies. Files in
// one cycle share a level.
func (g *Graph) GetExecutionLevels() [][]string {
	level := make(map[string]int, len(g.nodes))
	maxLevel := -1

	// Components arrive dependencies-first, so every parent outside the
	// component already has a level.
	_ = tsort.EachStronglyConnectedComponent[string](g, func(comp []string) error {
		members := make(map[string]bool, len(comp))
		for _, id := range comp {
			members[id] = true
		}
		l := 0
		for _, id := range comp {
			for _, parentID := range g.parents[id] {
				if !members[parentID] && level[parentID]+1 > l {
					l = level[parentID] + 1
				}
			}
		}
		for _, id := range comp {
			level[id] = l
		}
		if l > maxLevel {
			maxLevel = l
		}
		return nil
	})

	levels := make([][]string, maxLevel+1)
	for id, l := range level {
		levels[l] = append(levels[l], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels
}

// GetAffectedNodes returns all nodes affected by changes to the given nodes.
// This includes the changed nodes and all their downstream dependents.
func (g *Graph) GetAffectedNodes(changedIDs []string) []string {
	var start []string
	for _, id := range changedIDs {
		if _, exists := g.nodes[id]; exists {
			start = append(start, id)
		}
	}
	return g.reach(start, g.edges)
}

// GetUpstreamNodes returns all nodes upstream of the given node (its
// dependencies and their dependencies). The node itself is included only
// when it lies on a cycle.
func (g *Graph) GetUpstreamNodes(id string) []string {
	return g.reach(g.parents[id], g.parents)
}

// reach collects everything reachable from start along adj.
func (g *Graph) reach(start []string, adj map[string][]string) []string {
	seen := make(map[string]bool)
	stack := slices.Clone(start)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		stack = append(stack, adj[id]...)
	}

	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// GetRoots returns nodes with no parents (no dependencies).
func (g *Graph) GetRoots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// GetLeaves returns nodes with no children (no dependents).
func (g *Graph) GetLeaves() []string {
	var leaves []string
	for id := range g.nodes {
		if len(g.edges[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// Subgraph returns a new graph containing only the specified nodes and their edges.
func (g *Graph) Subgraph(nodeIDs []string) *Graph {
	subgraph := NewGraph()
	nodeSet := make(map[string]bool)

	for _, id := range nodeIDs {
		if node, exists := g.nodes[id]; exists {
			nodeSet[id] = true
			subgraph.AddNode(id, node.Data)
		}
	}

	for _, id := range nodeIDs {
		for _, childID := range g.edges[id] {
			if nodeSet[id] && nodeSet[childID] {
				_ = subgraph.AddEdge(id, childID)
			}
		}
	}

	return subgraph
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
