// Package tsort computes strongly connected components and topological
// orderings over graphs defined by the caller.
//
// The graph is never materialized by this package. Callers describe it
// through two small capabilities: enumerating every node once
// (NodeSource) and enumerating the direct successors of a node
// (ChildSource). Edges point from a node to the things it depends on, so
// every ordering produced here lists dependencies before dependents.
//
// Components are emitted sink-first: a component is always emitted before
// any component that has an edge into it. This falls out of Tarjan's
// algorithm without a second pass.
//
// Complexity:
//
//   - Time:   O(V + E) over the reachable subgraph
//   - Memory: O(V + E) (per-call index tables and child snapshots)
//
// Traversal uses an explicit frame stack, so graph depth is bounded by
// memory rather than by the goroutine stack.
package tsort

// NodeSource enumerates every node of a graph exactly once.
// Enumeration order decides which unvisited node starts the next search,
// which only affects output order, never correctness.
type NodeSource[T comparable] interface {
	EachNode(yield func(T) bool)
}

// ChildSource enumerates the direct successors (dependencies) of a node.
// Duplicates are allowed.
type ChildSource[T comparable] interface {
	EachChild(node T, yield func(T) bool)
}

// Graph is the full capability needed for whole-graph traversal.
type Graph[T comparable] interface {
	NodeSource[T]
	ChildSource[T]
}

// Funcs adapts a pair of functions to Graph.
// A nil field behaves as an empty enumeration.
type Funcs[T comparable] struct {
	Nodes    func(yield func(T) bool)
	Children func(node T, yield func(T) bool)
}

// EachNode implements NodeSource.
func (f Funcs[T]) EachNode(yield func(T) bool) {
	if f.Nodes != nil {
		f.Nodes(yield)
	}
}

// EachChild implements ChildSource.
func (f Funcs[T]) EachChild(node T, yield func(T) bool) {
	if f.Children != nil {
		f.Children(node, yield)
	}
}

// ChildFunc adapts a single function to ChildSource.
type ChildFunc[T comparable] func(node T, yield func(T) bool)

// EachChild implements ChildSource.
func (f ChildFunc[T]) EachChild(node T, yield func(T) bool) {
	f(node, yield)
}

// Adjacency is an insertion-ordered adjacency list.
// Nodes are enumerated in the order they were first seen.
type Adjacency[T comparable] struct {
	order []T
	edges map[T][]T
}

// NewAdjacency returns an empty adjacency list.
func NewAdjacency[T comparable]() *Adjacency[T] {
	return &Adjacency[T]{edges: make(map[T][]T)}
}

// AddNode registers a node. Duplicate calls are no-ops.
func (a *Adjacency[T]) AddNode(node T) {
	if _, ok := a.edges[node]; ok {
		return
	}
	a.edges[node] = nil
	a.order = append(a.order, node)
}

// AddEdge records that from depends on to. Missing nodes are created
// implicitly. Duplicate edges are kept as given.
func (a *Adjacency[T]) AddEdge(from, to T) {
	a.AddNode(from)
	a.AddNode(to)
	a.edges[from] = append(a.edges[from], to)
}

// Len returns the number of nodes.
func (a *Adjacency[T]) Len() int {
	return len(a.order)
}

// EachNode implements NodeSource.
func (a *Adjacency[T]) EachNode(yield func(T) bool) {
	for _, n := range a.order {
		if !yield(n) {
			return
		}
	}
}

// EachChild implements ChildSource.
func (a *Adjacency[T]) EachChild(node T, yield func(T) bool) {
	for _, c := range a.edges[node] {
		if !yield(c) {
			return
		}
	}
}
