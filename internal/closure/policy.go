package closure

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/aliasgraph/pkg/types"
)

// EdgePolicy decides which references inside a definition count as edges.
type EdgePolicy int

const (
	// EdgeAll follows every nested expression: unions, intersections,
	// optionals, tuples, records, generic arguments, proc parameters,
	// return types and block signatures.
	EdgeAll EdgePolicy = iota
	// EdgeTransparent follows only union, intersection and optional
	// members. References under a type constructor (tuples, records,
	// generic arguments, procs) are treated as productive recursion and
	// produce no edge.
	EdgeTransparent
)

// ParseEdgePolicy parses "all" or "transparent".
func ParseEdgePolicy(s string) (EdgePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return EdgeAll, nil
	case "transparent":
		return EdgeTransparent, nil
	default:
		return EdgeAll, fmt.Errorf("unknown edge policy %q (expected all or transparent)", s)
	}
}

func (p EdgePolicy) String() string {
	if p == EdgeTransparent {
		return "transparent"
	}
	return "all"
}

// walkDefinition collects the canonical aliases referenced by decl.
func (b *Builder) walkDefinition(decl *types.AliasDecl) types.NameSet {
	b.definitionWalks.Add(1)
	out := make(types.NameSet)
	b.collect(decl.Type, out)
	return out
}

// resolveRef returns the first candidate of t that names a defined alias.
func (b *Builder) resolveRef(t *types.Alias) (types.TypeName, bool) {
	var found types.TypeName
	t.Candidates(func(n types.TypeName) bool {
		name, ok := b.env.NormalizeTypeName(n)
		if ok {
			found = name
		}
		return !ok
	})
	return found, !found.IsZero()
}

func (b *Builder) collect(t types.Type, out types.NameSet) {
	if t == nil {
		return
	}
	switch t := t.(type) {
	case *types.Alias:
		if name, ok := b.resolveRef(t); ok {
			out.Add(name)
		}
		if b.policy == EdgeTransparent {
			return
		}
	case *types.Union, *types.Intersection, *types.Optional:
	default:
		if b.policy == EdgeTransparent {
			return
		}
	}
	t.EachType(func(child types.Type) {
		b.collect(child, out)
	})
}
