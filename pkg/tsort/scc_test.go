package tsort

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// graphOf builds an adjacency list from (node, children...) rows, keeping
// row order as the enumeration order.
func graphOf[T comparable](rows ...[]T) *Adjacency[T] {
	g := NewAdjacency[T]()
	for _, row := range rows {
		g.AddNode(row[0])
	}
	for _, row := range rows {
		for _, c := range row[1:] {
			g.AddEdge(row[0], c)
		}
	}
	return g
}

func TestStronglyConnectedComponents_Scenarios(t *testing.T) {
	tests := []struct {
		name  string
		graph *Adjacency[int]
		want  [][]int
	}{
		{
			name:  "diamond without cycles",
			graph: graphOf([]int{1, 2, 3}, []int{2, 4}, []int{3, 2, 4}, []int{4}),
			want:  [][]int{{4}, {2}, {3}, {1}},
		},
		{
			name:  "two node cycle",
			graph: graphOf([]int{1, 2}, []int{2, 3, 4}, []int{3, 2}, []int{4}),
			want:  [][]int{{4}, {2, 3}, {1}},
		},
		{
			name:  "empty graph",
			graph: NewAdjacency[int](),
			want:  nil,
		},
		{
			name:  "isolated node",
			graph: graphOf([]int{7}),
			want:  [][]int{{7}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StronglyConnectedComponents[int](tt.graph))
		})
	}
}

func TestTopologicalSort_Acyclic(t *testing.T) {
	g := graphOf([]int{1, 2, 3}, []int{2, 4}, []int{3, 2, 4}, []int{4})

	order, err := TopologicalSort[int](g)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2, 3, 1}, order)
}

func TestTopologicalSort_Cycle(t *testing.T) {
	g := graphOf([]int{1, 2}, []int{2, 3, 4}, []int{3, 2}, []int{4})

	order, err := TopologicalSort[int](g)
	require.Error(t, err)
	assert.Nil(t, order)
	assert.True(t, errors.Is(err, ErrCyclicDependency))

	cycle, ok := CycleOf[int](err)
	require.True(t, ok)
	assert.Equal(t, []int{2, 3}, cycle)
	assert.Contains(t, err.Error(), "cyclic dependency")
}

func TestTopologicalSort_SelfLoop(t *testing.T) {
	g := graphOf([]string{"A", "A"})

	sccs := StronglyConnectedComponents[string](g)
	assert.Equal(t, [][]string{{"A"}}, sccs)

	_, err := TopologicalSort[string](g)
	require.ErrorIs(t, err, ErrCyclicDependency)
	cycle, ok := CycleOf[string](err)
	require.True(t, ok)
	assert.Equal(t, []string{"A"}, cycle)

	assert.Equal(t, [][]string{{"A"}}, Cycles[string](g))
}

func TestTopologicalSort_Disconnected(t *testing.T) {
	g := graphOf([]string{"X"}, []string{"Y"})

	order, err := TopologicalSort[string](g)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"X", "Y"}, order)
	assert.Len(t, StronglyConnectedComponents[string](g), 2)
}

func TestCycleOf_WrongType(t *testing.T) {
	_, err := TopologicalSort[int](graphOf([]int{1, 1}))
	require.Error(t, err)

	_, ok := CycleOf[string](err)
	assert.False(t, ok)

	_, ok = CycleOf[int](errors.New("other"))
	assert.False(t, ok)
}

func TestStronglyConnectedComponentsFrom(t *testing.T) {
	g := graphOf([]int{1, 2}, []int{2, 3, 4}, []int{3, 2}, []int{4})

	var touched []int
	children := ChildFunc[int](func(n int, yield func(int) bool) {
		touched = append(touched, n)
		g.EachChild(n, yield)
	})

	got := StronglyConnectedComponentsFrom[int](2, children)
	assert.Equal(t, [][]int{{4}, {2, 3}}, got)
	assert.NotContains(t, touched, 1, "node 1 is not reachable from 2")
}

func TestEachComponent_Cyclic(t *testing.T) {
	g := graphOf([]string{"a", "b"}, []string{"b", "a"}, []string{"c", "c"}, []string{"d", "a"})

	var got []Component[string]
	err := EachComponent[string](g, func(c Component[string]) error {
		got = append(got, c)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, Component[string]{Nodes: []string{"a", "b"}, Cyclic: true}, got[0])
	assert.Equal(t, Component[string]{Nodes: []string{"c"}, Cyclic: true}, got[1])
	assert.Equal(t, Component[string]{Nodes: []string{"d"}, Cyclic: false}, got[2])
}

func TestEachComponent_StopsOnError(t *testing.T) {
	g := graphOf([]int{1, 2}, []int{2, 3}, []int{3})
	stop := errors.New("stop")

	calls := 0
	err := EachStronglyConnectedComponent[int](g, func([]int) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, calls)
}

func TestDuplicateChildren(t *testing.T) {
	g := graphOf([]int{1, 2, 2, 2}, []int{2, 1, 1, 3, 3}, []int{3})

	assert.Equal(t, [][]int{{3}, {1, 2}}, StronglyConnectedComponents[int](g))
}

func TestFuncsAdapter(t *testing.T) {
	edges := map[string][]string{"app": {"lib"}, "lib": {"base"}, "base": nil}
	g := Funcs[string]{
		Nodes: func(yield func(string) bool) {
			for _, n := range []string{"app", "lib", "base"} {
				if !yield(n) {
					return
				}
			}
		},
		Children: func(n string, yield func(string) bool) {
			for _, c := range edges[n] {
				if !yield(c) {
					return
				}
			}
		},
	}

	order, err := TopologicalSort[string](g)
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "lib", "app"}, order)

	assert.Empty(t, StronglyConnectedComponents[string](Funcs[string]{}))
}

func TestDeepChain(t *testing.T) {
	const n = 200_000
	children := ChildFunc[int](func(node int, yield func(int) bool) {
		if node+1 < n {
			yield(node + 1)
		}
	})

	count := 0
	last := -1
	err := EachStronglyConnectedComponentFrom[int](0, children, func(c []int) error {
		count++
		last = c[0]
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, n, count)
	assert.Equal(t, 0, last, "the start node closes last")
}

func TestDeepCycle(t *testing.T) {
	const n = 100_000
	children := ChildFunc[int](func(node int, yield func(int) bool) {
		yield((node + 1) % n)
	})

	sccs := StronglyConnectedComponentsFrom[int](0, children)
	require.Len(t, sccs, 1)
	assert.Len(t, sccs[0], n)
}

// reachable computes forward reachability by brute force.
func reachable(g *Adjacency[int], from int) map[int]bool {
	seen := map[int]bool{from: true}
	queue := []int{from}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		g.EachChild(n, func(c int) bool {
			if !seen[c] {
				seen[c] = true
				queue = append(queue, c)
			}
			return true
		})
	}
	return seen
}

func randomGraph(r *rand.Rand, nodes, edges int) *Adjacency[int] {
	g := NewAdjacency[int]()
	for i := range nodes {
		g.AddNode(i)
	}
	for range edges {
		g.AddEdge(r.IntN(nodes), r.IntN(nodes))
	}
	return g
}

func TestStronglyConnectedComponents_Properties(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))

	for iter := range 200 {
		nodes := 1 + r.IntN(12)
		g := randomGraph(r, nodes, r.IntN(nodes*3))

		t.Run(fmt.Sprintf("graph_%d", iter), func(t *testing.T) {
			sccs := StronglyConnectedComponents[int](g)

			// Partition: every node in exactly one component.
			position := make(map[int]int)
			for i, comp := range sccs {
				for _, n := range comp {
					_, dup := position[n]
					require.False(t, dup, "node %d appears twice", n)
					position[n] = i
				}
			}
			require.Len(t, position, nodes)

			reach := make(map[int]map[int]bool, nodes)
			for n := range nodes {
				reach[n] = reachable(g, n)
			}

			// Maximality: same component iff mutually reachable.
			for a := range nodes {
				for b := range nodes {
					mutual := reach[a][b] && reach[b][a]
					assert.Equal(t, mutual, position[a] == position[b], "nodes %d and %d", a, b)
				}
			}

			// Sink-first: for x -> y across components, y's component comes first.
			for x := range nodes {
				g.EachChild(x, func(y int) bool {
					assert.LessOrEqual(t, position[y], position[x], "edge %d -> %d", x, y)
					return true
				})
			}

			// Topological sort succeeds iff every component is acyclic.
			order, err := TopologicalSort[int](g)
			if len(Cycles[int](g)) > 0 {
				assert.ErrorIs(t, err, ErrCyclicDependency)
				return
			}
			require.NoError(t, err)
			at := make(map[int]int, len(order))
			for i, n := range order {
				at[n] = i
			}
			for x := range nodes {
				g.EachChild(x, func(y int) bool {
					assert.LessOrEqual(t, at[y], at[x], "edge %d -> %d", x, y)
					return true
				})
			}
		})
	}
}

func TestStronglyConnectedComponents_Reproducible(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	g := randomGraph(r, 40, 90)

	first := StronglyConnectedComponents[int](g)
	second := StronglyConnectedComponents[int](g)
	assert.Equal(t, first, second)
}

func TestAdjacency(t *testing.T) {
	g := NewAdjacency[string]()
	g.AddNode("a")
	g.AddNode("a")
	g.AddEdge("b", "c")

	assert.Equal(t, 3, g.Len())

	var nodes []string
	g.EachNode(func(n string) bool {
		nodes = append(nodes, n)
		return true
	})
	assert.Equal(t, []string{"a", "b", "c"}, nodes)

	var first []string
	g.EachNode(func(n string) bool {
		first = append(first, n)
		return false
	})
	assert.Equal(t, []string{"a"}, first)
}
