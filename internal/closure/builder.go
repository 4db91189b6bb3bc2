// Package closure computes direct and transitive dependencies between type
// aliases and answers circularity queries.
//
// A Builder is bound to a fixed snapshot of alias definitions. Results are
// computed on first use and memoized for the Builder's lifetime; if the
// definitions change, construct a new Builder.
//
// An alias is circular iff it appears among its own transitive
// dependencies. Cycles are data here, not errors.
package closure

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/aliasgraph/pkg/tsort"
	"github.com/leapstack-labs/aliasgraph/pkg/types"
	"golang.org/x/sync/singleflight"
)

// Environment is the snapshot of alias definitions a Builder reads.
type Environment interface {
	// EachTypeAlias enumerates every canonical alias name once.
	EachTypeAlias(yield func(types.TypeName) bool)
	// TypeAliasDecl returns the definition of a canonical alias name.
	TypeAliasDecl(name types.TypeName) (*types.AliasDecl, bool)
	// NormalizeTypeName maps any written form of a name to its canonical
	// form, reporting false when nothing is defined under it.
	NormalizeTypeName(name types.TypeName) (types.TypeName, bool)
}

// ErrUnknownEntity is matched by errors for names with no definition.
var ErrUnknownEntity = errors.New("unknown entity")

// UnknownEntityError reports a queried name that has no definition after
// canonicalization.
type UnknownEntityError struct {
	Name types.TypeName
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnknownEntity, e.Name)
}

func (e *UnknownEntityError) Unwrap() error {
	return ErrUnknownEntity
}

// Stats counts the expensive operations a Builder has performed.
type Stats struct {
	// DefinitionWalks is the number of alias definitions walked for
	// direct references.
	DefinitionWalks int64
	// ClosureWalks is the number of SCC traversals run to build
	// transitive entries.
	ClosureWalks int64
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger. Nil keeps the discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithEdgePolicy selects which parts of a definition produce edges.
func WithEdgePolicy(p EdgePolicy) Option {
	return func(b *Builder) {
		b.policy = p
	}
}

// Builder memoizes direct and transitive alias dependencies.
// It is safe for concurrent use.
type Builder struct {
	env    Environment
	policy EdgePolicy
	logger *slog.Logger

	mu         sync.RWMutex
	direct     map[types.TypeName]types.NameSet
	transitive map[types.TypeName]map[types.TypeName]bool

	// directGroup deduplicates concurrent walks of one definition.
	directGroup singleflight.Group
	// closeMu serializes closure traversals so that no entry is built twice.
	closeMu sync.Mutex

	definitionWalks atomic.Int64
	closureWalks    atomic.Int64
}

// New creates a Builder over env with empty caches.
func New(env Environment, opts ...Option) *Builder {
	b := &Builder{
		env:        env,
		policy:     EdgeAll,
		logger:     slog.New(slog.DiscardHandler),
		direct:     make(map[types.TypeName]types.NameSet),
		transitive: make(map[types.TypeName]map[types.TypeName]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Policy returns the edge policy in effect.
func (b *Builder) Policy() EdgePolicy {
	return b.policy
}

// Stats returns a snapshot of the work counters.
func (b *Builder) Stats() Stats {
	return Stats{
		DefinitionWalks: b.definitionWalks.Load(),
		ClosureWalks:    b.closureWalks.Load(),
	}
}

// Canonical normalizes name and checks that it is defined.
func (b *Builder) Canonical(name types.TypeName) (types.TypeName, error) {
	canonical, ok := b.env.NormalizeTypeName(name)
	if !ok {
		return types.TypeName{}, &UnknownEntityError{Name: name}
	}
	if _, ok := b.env.TypeAliasDecl(canonical); !ok {
		return types.TypeName{}, &UnknownEntityError{Name: name}
	}
	return canonical, nil
}

// IsCircular reports whether name depends on itself, directly or
// transitively.
func (b *Builder) IsCircular(name types.TypeName) (bool, error) {
	canonical, err := b.Canonical(name)
	if err != nil {
		return false, err
	}
	deps, err := b.transitiveOf(canonical)
	if err != nil {
		return false, err
	}
	_, circular := deps[canonical]
	return circular, nil
}

// DirectDependenciesOf returns the aliases referenced by name's definition.
func (b *Builder) DirectDependenciesOf(name types.TypeName) (types.NameSet, error) {
	canonical, err := b.Canonical(name)
	if err != nil {
		return nil, err
	}
	deps, err := b.directOf(canonical)
	if err != nil {
		return nil, err
	}
	return deps.Clone(), nil
}

// DependenciesOf returns every alias reachable from name through one or
// more references. The result contains name itself only when name is
// circular.
func (b *Builder) DependenciesOf(name types.TypeName) (types.NameSet, error) {
	canonical, err := b.Canonical(name)
	if err != nil {
		return nil, err
	}
	deps, err := b.transitiveOf(canonical)
	if err != nil {
		return nil, err
	}
	out := make(types.NameSet, len(deps))
	for n := range deps {
		out.Add(n)
	}
	return out, nil
}

// Dependencies returns the transitive entry for name. A true value marks a
// dependency that lies on a cycle through name.
func (b *Builder) Dependencies(name types.TypeName) (map[types.TypeName]bool, error) {
	canonical, err := b.Canonical(name)
	if err != nil {
		return nil, err
	}
	deps, err := b.transitiveOf(canonical)
	if err != nil {
		return nil, err
	}
	out := make(map[types.TypeName]bool, len(deps))
	for n, onCycle := range deps {
		out[n] = onCycle
	}
	return out, nil
}

// BuildDependencies eagerly computes direct dependencies for every alias.
func (b *Builder) BuildDependencies() error {
	var err error
	b.env.EachTypeAlias(func(n types.TypeName) bool {
		_, err = b.directOf(n)
		return err == nil
	})
	return err
}

// TransitiveClosure eagerly computes transitive dependencies for every
// alias in one pass over the whole graph. Closures of components emitted
// earlier are spliced into later ones rather than walked again.
func (b *Builder) TransitiveClosure() error {
	if err := b.BuildDependencies(); err != nil {
		return err
	}

	b.closeMu.Lock()
	defer b.closeMu.Unlock()

	c := b.newCloser()
	graph := tsort.Funcs[types.TypeName]{
		Nodes:    b.env.EachTypeAlias,
		Children: c.children,
	}

	b.closureWalks.Add(1)
	if err := tsort.EachComponent[types.TypeName](graph, c.close); err != nil {
		return err
	}
	if c.err != nil {
		return c.err
	}
	b.publish(c.local)

	b.logger.Debug("built transitive closure",
		slog.Int("aliases", len(c.local)),
		slog.Int("components", c.components))
	return nil
}

func (b *Builder) lookupDirect(name types.TypeName) (types.NameSet, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	deps, ok := b.direct[name]
	return deps, ok
}

func (b *Builder) lookupTransitive(name types.TypeName) (map[types.TypeName]bool, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	deps, ok := b.transitive[name]
	return deps, ok
}

// directOf returns the cached direct set of a canonical name, walking its
// definition on first use. The returned set must not be modified.
func (b *Builder) directOf(name types.TypeName) (types.NameSet, error) {
	if deps, ok := b.lookupDirect(name); ok {
		return deps, nil
	}

	v, err, _ := b.directGroup.Do(name.String(), func() (any, error) {
		// Double-check after winning the flight.
		if deps, ok := b.lookupDirect(name); ok {
			return deps, nil
		}

		decl, ok := b.env.TypeAliasDecl(name)
		if !ok {
			return nil, &UnknownEntityError{Name: name}
		}
		deps := b.walkDefinition(decl)

		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.direct[name]; ok {
			return existing, nil
		}
		b.direct[name] = deps
		return deps, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(types.NameSet), nil
}

// transitiveOf returns the cached transitive entry of a canonical name,
// running one SCC traversal from it on first use.
func (b *Builder) transitiveOf(name types.TypeName) (map[types.TypeName]bool, error) {
	if deps, ok := b.lookupTransitive(name); ok {
		return deps, nil
	}

	b.closeMu.Lock()
	defer b.closeMu.Unlock()

	if deps, ok := b.lookupTransitive(name); ok {
		return deps, nil
	}
	if _, err := b.directOf(name); err != nil {
		return nil, err
	}

	c := b.newCloser()
	b.closureWalks.Add(1)
	if err := tsort.EachComponentFrom[types.TypeName](name, tsort.ChildFunc[types.TypeName](c.children), c.close); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	b.publish(c.local)

	b.logger.Debug("computed dependencies",
		slog.String("alias", name.String()),
		slog.Int("closed", len(c.local)),
		slog.Int("components", c.components))

	deps, _ := b.lookupTransitive(name)
	return deps, nil
}

// publish inserts entries that are not yet cached. Entries are complete
// before they become visible.
func (b *Builder) publish(entries map[types.TypeName]map[types.TypeName]bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for n, deps := range entries {
		if _, ok := b.transitive[n]; !ok {
			b.transitive[n] = deps
		}
	}
}
