package closure

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/leapstack-labs/aliasgraph/internal/registry"
	"github.com/leapstack-labs/aliasgraph/internal/testutil"
	"github.com/leapstack-labs/aliasgraph/pkg/tsort"
	"github.com/leapstack-labs/aliasgraph/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ref(name string) types.Type {
	return &types.Alias{Name: types.ParseTypeName(name)}
}

func class(name string, args ...types.Type) types.Type {
	return &types.ClassInstance{Name: types.ParseTypeName(name), Args: args}
}

func union(ts ...types.Type) types.Type {
	return &types.Union{Types: ts}
}

var nilType types.Type = &types.Base{Kind: types.BaseNil}

// newEnv registers one alias per entry.
func newEnv(t *testing.T, defs map[string]types.Type) *registry.AliasRegistry {
	t.Helper()
	r := registry.New()
	names := make([]types.TypeName, 0, len(defs))
	for n := range defs {
		names = append(names, types.ParseTypeName(n))
	}
	types.SortNames(names)
	for _, n := range names {
		require.NoError(t, r.Register(&types.AliasDecl{Name: n, Type: defs[n.String()]}))
	}
	return r
}

func name(s string) types.TypeName {
	return types.ParseTypeName(s)
}

func names(set types.NameSet) []string {
	return set.Strings()
}

func TestBuilder_Chain(t *testing.T) {
	env := newEnv(t, map[string]types.Type{
		"::a": ref("b"),
		"::b": ref("c"),
		"::c": class("::String"),
	})
	b := New(env)

	direct, err := b.DirectDependenciesOf(name("::a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"::b"}, names(direct))

	deps, err := b.DependenciesOf(name("::a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"::b", "::c"}, names(deps))

	for _, n := range []string{"::a", "::b", "::c"} {
		circular, err := b.IsCircular(name(n))
		require.NoError(t, err)
		assert.False(t, circular, "%s should not be circular", n)
	}
}

func TestBuilder_SelfReference(t *testing.T) {
	env := newEnv(t, map[string]types.Type{
		"::a": ref("a"),
	})
	b := New(env)

	circular, err := b.IsCircular(name("::a"))
	require.NoError(t, err)
	assert.True(t, circular)

	deps, err := b.DependenciesOf(name("::a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"::a"}, names(deps))
}

func TestBuilder_MutualRecursion(t *testing.T) {
	env := newEnv(t, map[string]types.Type{
		"::a": union(ref("b"), nilType),
		"::b": ref("a"),
		"::c": ref("a"),
	})
	b := New(env)

	for _, n := range []string{"::a", "::b"} {
		circular, err := b.IsCircular(name(n))
		require.NoError(t, err)
		assert.True(t, circular, "%s should be circular", n)
	}

	circular, err := b.IsCircular(name("::c"))
	require.NoError(t, err)
	assert.False(t, circular, "reaching a cycle does not make c circular")

	deps, err := b.Dependencies(name("::c"))
	require.NoError(t, err)
	assert.Equal(t, map[types.TypeName]bool{name("::a"): false, name("::b"): false}, deps)

	deps, err = b.Dependencies(name("::a"))
	require.NoError(t, err)
	assert.Equal(t, map[types.TypeName]bool{name("::a"): true, name("::b"): true}, deps)
}

func TestBuilder_IgnoresNonAliasReferences(t *testing.T) {
	env := newEnv(t, map[string]types.Type{
		"::a": union(class("::Array", ref("missing")), class("::String"), ref("b")),
		"::b": &types.Interface{Name: name("::_Each"), Args: []types.Type{class("::Integer")}},
	})
	b := New(env)

	direct, err := b.DirectDependenciesOf(name("::a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"::b"}, names(direct), "undefined aliases and classes produce no edge")
}

func TestBuilder_UnknownEntity(t *testing.T) {
	b := New(newEnv(t, map[string]types.Type{"::a": nilType}))

	_, err := b.IsCircular(name("::nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEntity))

	var unknown *UnknownEntityError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "::nope", unknown.Name.String())

	_, err = b.DependenciesOf(name("::nope"))
	assert.ErrorIs(t, err, ErrUnknownEntity)
	_, err = b.DirectDependenciesOf(name("::nope"))
	assert.ErrorIs(t, err, ErrUnknownEntity)
	_, err = b.Dependencies(name("::nope"))
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestBuilder_CanonicalizesQueries(t *testing.T) {
	env := newEnv(t, map[string]types.Type{
		"::Long::Path::node": union(ref("::Short::node"), nilType),
	})
	require.NoError(t, env.RegisterModuleAlias(types.ParseNamespace("::Short"), types.ParseNamespace("::Long::Path")))
	b := New(env)

	circular, err := b.IsCircular(name("Short::node"))
	require.NoError(t, err)
	assert.True(t, circular, "reference through a module alias closes the loop")

	deps, err := b.DependenciesOf(name("::Short::node"))
	require.NoError(t, err)
	assert.Equal(t, []string{"::Long::Path::node"}, names(deps))
}

func TestBuilder_NestedReferences(t *testing.T) {
	list := &types.Tuple{Types: []types.Type{class("::Integer"), ref("list")}}
	tree := &types.Record{Fields: []types.RecordField{
		{Key: "value", Type: class("::Integer")},
		{Key: "children", Type: class("::Array", ref("tree"))},
	}}
	callback := &types.Proc{
		Func: &types.Function{Return: &types.Base{Kind: types.BaseVoid}},
		Block: &types.Block{
			Func:     &types.Function{Required: []types.Type{ref("callback")}},
			Required: true,
		},
	}
	maybe := &types.Optional{Type: &types.Intersection{Types: []types.Type{ref("maybe"), class("::Object")}}}

	env := newEnv(t, map[string]types.Type{
		"::list":     list,
		"::tree":     tree,
		"::callback": callback,
		"::maybe":    maybe,
		"::gen":      &types.Alias{Name: name("::list"), Args: []types.Type{ref("gen")}},
	})

	tests := []struct {
		alias       string
		all         bool
		transparent bool
	}{
		{alias: "::list", all: true, transparent: false},
		{alias: "::tree", all: true, transparent: false},
		{alias: "::callback", all: true, transparent: false},
		{alias: "::maybe", all: true, transparent: true},
		{alias: "::gen", all: true, transparent: false},
	}

	all := New(env)
	transparent := New(env, WithEdgePolicy(EdgeTransparent))
	assert.Equal(t, EdgeTransparent, transparent.Policy())

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			got, err := all.IsCircular(name(tt.alias))
			require.NoError(t, err)
			assert.Equal(t, tt.all, got, "edge policy all")

			got, err = transparent.IsCircular(name(tt.alias))
			require.NoError(t, err)
			assert.Equal(t, tt.transparent, got, "edge policy transparent")
		})
	}
}

func TestBuilder_Memoization(t *testing.T) {
	env := newEnv(t, map[string]types.Type{
		"::a": ref("b"),
		"::b": union(ref("c"), ref("a")),
		"::c": ref("d"),
		"::d": nilType,
	})
	b := New(env, WithLogger(testutil.NewTestLogger(t)))

	first, err := b.DependenciesOf(name("::a"))
	require.NoError(t, err)
	stats := b.Stats()
	assert.Equal(t, int64(4), stats.DefinitionWalks)
	assert.Equal(t, int64(1), stats.ClosureWalks)

	second, err := b.DependenciesOf(name("::a"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Every node reached by the first traversal is already closed.
	for _, n := range []string{"::b", "::c", "::d"} {
		_, err := b.IsCircular(name(n))
		require.NoError(t, err)
	}
	assert.Equal(t, stats, b.Stats(), "repeated queries must not recompute")
}

func TestBuilder_ResultsAreCopies(t *testing.T) {
	b := New(newEnv(t, map[string]types.Type{
		"::a": ref("b"),
		"::b": nilType,
	}))

	deps, err := b.DependenciesOf(name("::a"))
	require.NoError(t, err)
	deps.Add(name("::zzz"))

	direct, err := b.DirectDependenciesOf(name("::a"))
	require.NoError(t, err)
	direct.Add(name("::zzz"))

	flags, err := b.Dependencies(name("::a"))
	require.NoError(t, err)
	flags[name("::zzz")] = true

	again, err := b.DependenciesOf(name("::a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"::b"}, names(again))
}

func TestBuilder_TransitiveClosure(t *testing.T) {
	env := newEnv(t, map[string]types.Type{
		"::a": ref("b"),
		"::b": ref("a"),
		"::c": ref("a"),
		"::d": ref("c"),
		"::e": nilType,
	})
	b := New(env)

	require.NoError(t, b.TransitiveClosure())
	stats := b.Stats()
	assert.Equal(t, int64(5), stats.DefinitionWalks)
	assert.Equal(t, int64(1), stats.ClosureWalks)

	deps, err := b.DependenciesOf(name("::d"))
	require.NoError(t, err)
	assert.Equal(t, []string{"::a", "::b", "::c"}, names(deps))

	deps, err = b.DependenciesOf(name("::e"))
	require.NoError(t, err)
	assert.Empty(t, deps)

	assert.Equal(t, stats, b.Stats(), "queries after a full closure hit the cache")
}

func TestBuilder_BuildDependencies(t *testing.T) {
	b := New(newEnv(t, map[string]types.Type{
		"::a": ref("b"),
		"::b": nilType,
		"::c": nilType,
	}))
	require.NoError(t, b.BuildDependencies())
	assert.Equal(t, int64(3), b.Stats().DefinitionWalks)
	assert.Equal(t, int64(0), b.Stats().ClosureWalks)

	require.NoError(t, b.BuildDependencies())
	assert.Equal(t, int64(3), b.Stats().DefinitionWalks)
}

func TestBuilder_ConcurrentQueries(t *testing.T) {
	defs := make(map[string]types.Type)
	const n = 200
	for i := 0; i < n; i++ {
		// Twenty disjoint rings of ten aliases each.
		next := fmt.Sprintf("t%d", (i+1)%n)
		if i%10 == 9 {
			next = fmt.Sprintf("t%d", i-9)
		}
		defs[fmt.Sprintf("::t%d", i)] = union(ref(next), nilType)
	}
	b := New(newEnv(t, defs))

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				circular, err := b.IsCircular(name(fmt.Sprintf("::t%d", (i*7+w)%n)))
				assert.NoError(t, err)
				assert.True(t, circular)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int64(n), b.Stats().DefinitionWalks, "each definition walked once")
}

func TestBuilder_MatchesReachability(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	const size = 60

	defs := make(map[string]types.Type)
	adj := make(map[string][]string)
	for i := 0; i < size; i++ {
		from := fmt.Sprintf("::n%d", i)
		var members []types.Type
		edges := rng.IntN(3)
		for j := 0; j < edges; j++ {
			to := fmt.Sprintf("::n%d", rng.IntN(size))
			members = append(members, ref(to))
			adj[from] = append(adj[from], to)
		}
		members = append(members, nilType)
		defs[from] = union(members...)
	}
	env := newEnv(t, defs)
	b := New(env)

	reach := func(start string) map[string]bool {
		seen := make(map[string]bool)
		queue := append([]string(nil), adj[start]...)
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			if seen[n] {
				continue
			}
			seen[n] = true
			queue = append(queue, adj[n]...)
		}
		return seen
	}

	sccOf := make(map[string]int)
	graph := tsort.Funcs[string]{
		Nodes: func(yield func(string) bool) {
			for i := 0; i < size; i++ {
				if !yield(fmt.Sprintf("::n%d", i)) {
					return
				}
			}
		},
		Children: func(n string, yield func(string) bool) {
			for _, c := range adj[n] {
				if !yield(c) {
					return
				}
			}
		},
	}
	for i, comp := range tsort.StronglyConnectedComponents[string](graph) {
		for _, n := range comp {
			sccOf[n] = i
		}
	}

	for i := 0; i < size; i++ {
		n := fmt.Sprintf("::n%d", i)
		want := reach(n)

		flags, err := b.Dependencies(name(n))
		require.NoError(t, err)
		require.Len(t, flags, len(want), "closure of %s", n)
		for dep, onCycle := range flags {
			assert.True(t, want[dep.String()], "%s should reach %s", n, dep)
			assert.Equal(t, sccOf[dep.String()] == sccOf[n] && want[n], onCycle, "flag of %s in %s", dep, n)
		}

		direct, err := b.DirectDependenciesOf(name(n))
		require.NoError(t, err)
		for d := range direct {
			assert.Contains(t, flags, d, "direct deps of %s must be in its closure", n)
		}

		circular, err := b.IsCircular(name(n))
		require.NoError(t, err)
		assert.Equal(t, want[n], circular, "circularity of %s", n)
	}
}

func TestParseEdgePolicy(t *testing.T) {
	p, err := ParseEdgePolicy("")
	require.NoError(t, err)
	assert.Equal(t, EdgeAll, p)

	p, err = ParseEdgePolicy("Transparent")
	require.NoError(t, err)
	assert.Equal(t, EdgeTransparent, p)
	assert.Equal(t, "transparent", p.String())
	assert.Equal(t, "all", EdgeAll.String())

	_, err = ParseEdgePolicy("some")
	assert.Error(t, err)
}

func TestBuilder_EnclosingNamespaceReference(t *testing.T) {
	outer := func(qualified, written, context string) types.Type {
		return &types.Alias{
			Name:    name(qualified),
			Written: name(written),
			Context: types.ParseNamespace(context),
		}
	}

	t.Run("falls back to the root", func(t *testing.T) {
		env := newEnv(t, map[string]types.Type{
			"::y":    ref("::A::x"),
			"::A::x": outer("::A::y", "y", "::A"),
		})
		b := New(env)

		deps, err := b.DirectDependenciesOf(name("::A::x"))
		require.NoError(t, err)
		assert.Equal(t, []string{"::y"}, names(deps))

		circular, err := b.IsCircular(name("::y"))
		require.NoError(t, err)
		assert.True(t, circular)
	})

	t.Run("inner definition shadows outer", func(t *testing.T) {
		env := newEnv(t, map[string]types.Type{
			"::y":    ref("::A::x"),
			"::A::y": nilType,
			"::A::x": outer("::A::y", "y", "::A"),
		})
		b := New(env)

		deps, err := b.DirectDependenciesOf(name("::A::x"))
		require.NoError(t, err)
		assert.Equal(t, []string{"::A::y"}, names(deps))

		circular, err := b.IsCircular(name("::y"))
		require.NoError(t, err)
		assert.False(t, circular)
	})
}
