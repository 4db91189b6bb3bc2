package tsort

import "slices"

// Component is one strongly connected component.
// Cyclic is true when the component has more than one node, or when its
// single node has an edge to itself.
type Component[T comparable] struct {
	Nodes  []T
	Cyclic bool
}

// frame is one entry of the explicit DFS stack: a node, a snapshot of its
// children and the position of the next child to examine.
type frame[T comparable] struct {
	node     T
	children []T
	pos      int
}

// walker holds the bookkeeping for a single traversal. It is created per
// call and dropped when the call returns.
type walker[T comparable] struct {
	source   ChildSource[T]
	index    map[T]int
	lowlink  map[T]int
	onStack  map[T]bool
	selfLoop map[T]bool
	stack    []T
	frames   []frame[T]
	next     int
}

func newWalker[T comparable](source ChildSource[T]) *walker[T] {
	return &walker[T]{
		source:   source,
		index:    make(map[T]int),
		lowlink:  make(map[T]int),
		onStack:  make(map[T]bool),
		selfLoop: make(map[T]bool),
	}
}

func (w *walker[T]) visited(node T) bool {
	_, ok := w.index[node]
	return ok
}

// push assigns node its discovery index and opens a frame for it.
func (w *walker[T]) push(node T) {
	w.index[node] = w.next
	w.lowlink[node] = w.next
	w.next++
	w.stack = append(w.stack, node)
	w.onStack[node] = true

	var children []T
	w.source.EachChild(node, func(c T) bool {
		children = append(children, c)
		return true
	})
	w.frames = append(w.frames, frame[T]{node: node, children: children})
}

// walk runs Tarjan's algorithm from start, calling fn for every component
// as soon as its root is finished. Nodes already visited by an earlier
// walk on the same walker are treated as closed components.
func (w *walker[T]) walk(start T, fn func(Component[T]) error) error {
	if w.visited(start) {
		return nil
	}
	w.push(start)

	for len(w.frames) > 0 {
		top := &w.frames[len(w.frames)-1]

		if top.pos < len(top.children) {
			child := top.children[top.pos]
			top.pos++

			if child == top.node {
				w.selfLoop[child] = true
			}
			if !w.visited(child) {
				w.push(child)
				continue
			}
			// Back edge into the active path: take the child's index, not
			// its low-link, so values never leak across a closed component.
			if w.onStack[child] {
				w.lowlink[top.node] = min(w.lowlink[top.node], w.index[child])
			}
			continue
		}

		node := top.node
		w.frames = w.frames[:len(w.frames)-1]
		if len(w.frames) > 0 {
			parent := w.frames[len(w.frames)-1].node
			w.lowlink[parent] = min(w.lowlink[parent], w.lowlink[node])
		}

		if w.lowlink[node] != w.index[node] {
			continue
		}

		i := len(w.stack) - 1
		for w.stack[i] != node {
			i--
		}
		nodes := slices.Clone(w.stack[i:])
		w.stack = w.stack[:i]
		for _, n := range nodes {
			delete(w.onStack, n)
		}

		c := Component[T]{
			Nodes:  nodes,
			Cyclic: len(nodes) > 1 || w.selfLoop[node],
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// EachComponent calls fn for every strongly connected component of g,
// sink-first. Traversal stops at the first error returned by fn, and that
// error is returned unchanged.
func EachComponent[T comparable](g Graph[T], fn func(Component[T]) error) error {
	w := newWalker[T](g)
	var err error
	g.EachNode(func(n T) bool {
		err = w.walk(n, fn)
		return err == nil
	})
	return err
}

// EachComponentFrom is EachComponent restricted to the nodes reachable from
// start. The node universe is never enumerated.
func EachComponentFrom[T comparable](start T, children ChildSource[T], fn func(Component[T]) error) error {
	return newWalker[T](children).walk(start, fn)
}

// EachStronglyConnectedComponent calls fn with the nodes of every component
// of g, sink-first.
func EachStronglyConnectedComponent[T comparable](g Graph[T], fn func([]T) error) error {
	return EachComponent(g, func(c Component[T]) error {
		return fn(c.Nodes)
	})
}

// EachStronglyConnectedComponentFrom calls fn with the nodes of every
// component reachable from start, sink-first.
func EachStronglyConnectedComponentFrom[T comparable](start T, children ChildSource[T], fn func([]T) error) error {
	return EachComponentFrom(start, children, func(c Component[T]) error {
		return fn(c.Nodes)
	})
}

// StronglyConnectedComponents returns every component of g, sink-first.
// It never fails: cycles are reported as multi-node (or self-looping)
// components.
func StronglyConnectedComponents[T comparable](g Graph[T]) [][]T {
	var out [][]T
	_ = EachStronglyConnectedComponent(g, func(nodes []T) error {
		out = append(out, nodes)
		return nil
	})
	return out
}

// StronglyConnectedComponentsFrom returns the components reachable from
// start, sink-first.
func StronglyConnectedComponentsFrom[T comparable](start T, children ChildSource[T]) [][]T {
	var out [][]T
	_ = EachStronglyConnectedComponentFrom(start, children, func(nodes []T) error {
		out = append(out, nodes)
		return nil
	})
	return out
}

// Cycles returns only the cyclic components of g, sink-first.
func Cycles[T comparable](g Graph[T]) [][]T {
	var out [][]T
	_ = EachComponent(g, func(c Component[T]) error {
		if c.Cyclic {
			out = append(out, c.Nodes)
		}
		return nil
	})
	return out
}

// TopologicalSort returns the nodes of g with every node placed after all
// of its children. If any component is cyclic it returns a
// *CyclicDependencyError holding that component.
func TopologicalSort[T comparable](g Graph[T]) ([]T, error) {
	var order []T
	err := EachComponent(g, func(c Component[T]) error {
		if c.Cyclic {
			return &CyclicDependencyError[T]{Component: c.Nodes}
		}
		order = append(order, c.Nodes[0])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
