// Package registry provides type alias registration and name canonicalization.
// It maps the many ways an alias can be written ("json", "::json",
// "::Short::json" through a module alias) to the one canonical absolute
// name the dependency graph uses as a node.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/leapstack-labs/aliasgraph/pkg/types"
)

// maxAliasHops bounds module-alias rewriting so that alias loops
// ("module A = B", "module B = A") terminate.
const maxAliasHops = 32

// AliasRegistry stores alias declarations keyed by canonical name.
type AliasRegistry struct {
	mu sync.RWMutex

	// byName maps canonical names to their declarations: "::Foo::bar" → *AliasDecl
	byName map[types.TypeName]*types.AliasDecl

	// moduleAliases maps alias namespaces to targets: "::Short::" → "::Long::Path::"
	moduleAliases map[string]types.Namespace

	// order keeps registration order for stable enumeration.
	order []types.TypeName
}

// New creates an empty registry.
func New() *AliasRegistry {
	return &AliasRegistry{
		byName:        make(map[types.TypeName]*types.AliasDecl),
		moduleAliases: make(map[string]types.Namespace),
	}
}

// Register adds an alias declaration under its absolute name.
// Registering the same name twice is an error.
func (r *AliasRegistry) Register(decl *types.AliasDecl) error {
	if decl == nil || decl.Name.IsZero() {
		return fmt.Errorf("registry: invalid alias declaration")
	}
	if !decl.Name.IsAlias() {
		return fmt.Errorf("registry: %s is not an alias name", decl.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := decl.Name.Absolute()
	if prev, exists := r.byName[name]; exists {
		return &DuplicateDeclarationError{Name: name, First: prev.Location, Second: decl.Location}
	}
	decl.Name = name
	r.byName[name] = decl
	r.order = append(r.order, name)
	return nil
}

// RegisterModuleAlias records "module alias = target".
// Both namespaces are rooted at "::" if written relative.
func (r *AliasRegistry) RegisterModuleAlias(alias, target types.Namespace) error {
	if alias.IsEmpty() {
		return fmt.Errorf("registry: empty module alias")
	}
	alias.Absolute = true
	target.Absolute = true

	r.mu.Lock()
	defer r.mu.Unlock()

	key := alias.String()
	if prev, exists := r.moduleAliases[key]; exists && !prev.Equal(target) {
		return fmt.Errorf("registry: module alias %s already points to %s", key, prev)
	}
	r.moduleAliases[key] = target
	return nil
}

// Resolve attempts to resolve a written name to a registered alias.
// Returns the canonical name and true if found.
func (r *AliasRegistry) Resolve(written string) (types.TypeName, bool) {
	return r.NormalizeTypeName(types.ParseTypeName(written))
}

// NormalizeTypeName maps name to its canonical registered form.
func (r *AliasRegistry) NormalizeTypeName(name types.TypeName) (types.TypeName, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// 1. Exact match
	if _, ok := r.byName[name]; ok {
		return name, true
	}

	// 2. Relative name rooted at "::"
	name = name.Absolute()
	if _, ok := r.byName[name]; ok {
		return name, true
	}

	// 3. Rewrite the namespace through module aliases
	ns, ok := r.expandNamespace(name.Namespace())
	if !ok {
		return types.TypeName{}, false
	}
	name = name.WithNamespace(ns)
	if _, ok := r.byName[name]; ok {
		return name, true
	}
	return types.TypeName{}, false
}

// expandNamespace rewrites the longest aliased prefix of ns, repeatedly,
// until no module alias applies. The caller holds r.mu.
func (r *AliasRegistry) expandNamespace(ns types.Namespace) (types.Namespace, bool) {
	for hop := 0; hop <= maxAliasHops; hop++ {
		rewritten := false
		for i := len(ns.Path); i > 0; i-- {
			prefix := types.Namespace{Path: ns.Path[:i], Absolute: true}
			target, ok := r.moduleAliases[prefix.String()]
			if !ok {
				continue
			}
			ns = target.Join(types.Namespace{Path: ns.Path[i:]})
			rewritten = true
			break
		}
		if !rewritten {
			return ns, true
		}
	}
	return types.Namespace{}, false
}

// TypeAliasDecl returns the declaration for a canonical name.
func (r *AliasRegistry) TypeAliasDecl(name types.TypeName) (*types.AliasDecl, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	decl, ok := r.byName[name]
	return decl, ok
}

// EachTypeAlias enumerates canonical alias names in registration order.
func (r *AliasRegistry) EachTypeAlias(yield func(types.TypeName) bool) {
	r.mu.RLock()
	names := make([]types.TypeName, len(r.order))
	copy(names, r.order)
	r.mu.RUnlock()

	for _, n := range names {
		if !yield(n) {
			return
		}
	}
}

// AllDecls returns every declaration sorted by name.
func (r *AliasRegistry) AllDecls() []*types.AliasDecl {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := make([]*types.AliasDecl, 0, len(r.byName))
	for _, decl := range r.byName {
		decls = append(decls, decl)
	}
	sort.Slice(decls, func(i, j int) bool {
		return types.Compare(decls[i].Name, decls[j].Name) < 0
	})
	return decls
}

// FileOf returns the file that declares name, if known.
func (r *AliasRegistry) FileOf(name types.TypeName) (string, bool) {
	decl, ok := r.TypeAliasDecl(name)
	if !ok || decl.Location.File == "" {
		return "", false
	}
	return decl.Location.File, true
}

// Count returns the number of registered aliases.
func (r *AliasRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// ModuleAliases returns a copy of the module alias table.
func (r *AliasRegistry) ModuleAliases() map[string]types.Namespace {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]types.Namespace, len(r.moduleAliases))
	for k, v := range r.moduleAliases {
		result[k] = v
	}
	return result
}

// DuplicateDeclarationError is returned when an alias is declared twice.
type DuplicateDeclarationError struct {
	Name   types.TypeName
	First  types.Location
	Second types.Location
}

func (e *DuplicateDeclarationError) Error() string {
	return fmt.Sprintf("duplicate declaration of %s at %s (first declared at %s)", e.Name, e.Second, e.First)
}
