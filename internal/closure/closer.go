package closure

import (
	"github.com/leapstack-labs/aliasgraph/pkg/tsort"
	"github.com/leapstack-labs/aliasgraph/pkg/types"
)

// closer turns the components emitted by one SCC traversal into transitive
// entries. Components arrive sink-first, so every dependency outside the
// current component has already been closed, either during this traversal
// (local) or by an earlier one (the builder cache).
type closer struct {
	b          *Builder
	local      map[types.TypeName]map[types.TypeName]bool
	components int
	err        error
}

func (b *Builder) newCloser() *closer {
	return &closer{
		b:     b,
		local: make(map[types.TypeName]map[types.TypeName]bool),
	}
}

func (c *closer) closed(n types.TypeName) (map[types.TypeName]bool, bool) {
	if deps, ok := c.local[n]; ok {
		return deps, true
	}
	return c.b.lookupTransitive(n)
}

// children feeds the traversal. Closed nodes report no children: their
// entries are spliced in by close instead of being walked again.
func (c *closer) children(n types.TypeName, yield func(types.TypeName) bool) {
	if c.err != nil {
		return
	}
	if _, done := c.closed(n); done {
		return
	}
	deps, err := c.b.directOf(n)
	if err != nil {
		c.err = err
		return
	}
	for _, d := range deps.Slice() {
		if !yield(d) {
			return
		}
	}
}

// close builds one shared entry for every member of comp.
func (c *closer) close(comp tsort.Component[types.TypeName]) error {
	if c.err != nil {
		return c.err
	}
	if len(comp.Nodes) == 1 {
		if _, done := c.closed(comp.Nodes[0]); done {
			return nil
		}
	}
	c.components++

	members := types.NewNameSet(comp.Nodes...)
	entry := make(map[types.TypeName]bool)
	if comp.Cyclic {
		for _, m := range comp.Nodes {
			entry[m] = true
		}
	}

	for _, m := range comp.Nodes {
		deps, err := c.b.directOf(m)
		if err != nil {
			return err
		}
		for d := range deps {
			if members.Has(d) {
				continue
			}
			entry[d] = false
			spliced, _ := c.closed(d)
			for k := range spliced {
				// Nothing outside this component can reach back into it.
				entry[k] = false
			}
		}
	}

	for _, m := range comp.Nodes {
		c.local[m] = entry
	}
	return nil
}
