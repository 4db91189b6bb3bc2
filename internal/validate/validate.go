// Package validate runs the circular type alias check over a whole alias
// snapshot and reports one diagnostic per circular alias.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/leapstack-labs/aliasgraph/internal/closure"
	"github.com/leapstack-labs/aliasgraph/pkg/tsort"
	"github.com/leapstack-labs/aliasgraph/pkg/types"
	"golang.org/x/sync/errgroup"
)

// CodeCircularTypeAlias identifies circular alias diagnostics.
const CodeCircularTypeAlias = "circular-type-alias"

// DefaultWorkers bounds the circularity fan-out.
const DefaultWorkers = 4

// Diagnostic reports one circular alias.
type Diagnostic struct {
	Code     string           `json:"code"`
	Alias    types.TypeName   `json:"alias"`
	Cycle    []types.TypeName `json:"cycle"` // alias, ..., alias
	Location types.Location   `json:"location"`
	Message  string           `json:"message"`
}

// Report is the result of one check.
type Report struct {
	Aliases int `json:"aliases"`
	// Order lists acyclic aliases with dependencies first.
	Order []types.TypeName `json:"order"`
	// Cycles lists each cyclic component, members sorted.
	Cycles      [][]types.TypeName `json:"cycles"`
	Diagnostics []Diagnostic       `json:"diagnostics"`
}

// HasCycles reports whether any alias is circular.
func (r *Report) HasCycles() bool {
	return len(r.Diagnostics) > 0
}

// Option configures a Validator.
type Option func(*Validator)

// WithWorkers sets how many aliases are classified and diagnosed at once.
// Closures are computed in a single pass before the fan-out.
func WithWorkers(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// Validator checks every alias of an environment.
type Validator struct {
	workers int
	logger  *slog.Logger
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		workers: DefaultWorkers,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check classifies every alias in env using b. b must be bound to env.
func (v *Validator) Check(ctx context.Context, b *closure.Builder, env closure.Environment) (*Report, error) {
	var names []types.TypeName
	env.EachTypeAlias(func(n types.TypeName) bool {
		names = append(names, n)
		return true
	})

	report := &Report{Aliases: len(names)}
	componentOf := make(map[types.TypeName][]types.TypeName)

	var walkErr error
	graph := tsort.Funcs[types.TypeName]{
		Nodes: env.EachTypeAlias,
		Children: func(n types.TypeName, yield func(types.TypeName) bool) {
			deps, err := b.DirectDependenciesOf(n)
			if err != nil {
				walkErr = err
				return
			}
			for _, d := range deps.Slice() {
				if !yield(d) {
					return
				}
			}
		},
	}
	err := tsort.EachComponent[types.TypeName](graph, func(c tsort.Component[types.TypeName]) error {
		if walkErr != nil {
			return walkErr
		}
		if !c.Cyclic {
			report.Order = append(report.Order, c.Nodes[0])
			return nil
		}
		members := slices.Clone(c.Nodes)
		types.SortNames(members)
		report.Cycles = append(report.Cycles, members)
		for _, n := range members {
			componentOf[n] = members
		}
		return nil
	})
	if err == nil {
		err = walkErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compute components: %w", err)
	}

	// Workers only read the published closures.
	if err := b.TransitiveClosure(); err != nil {
		return nil, fmt.Errorf("failed to compute closures: %w", err)
	}

	diags := make([]*Diagnostic, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i, n := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			circular, err := b.IsCircular(n)
			if err != nil {
				return fmt.Errorf("check %s: %w", n, err)
			}
			if !circular {
				return nil
			}
			diag, err := v.diagnose(b, env, n, componentOf[n])
			if err != nil {
				return err
			}
			diags[i] = diag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, d := range diags {
		if d != nil {
			report.Diagnostics = append(report.Diagnostics, *d)
		}
	}
	slices.SortFunc(report.Diagnostics, func(a, b Diagnostic) int {
		return types.Compare(a.Alias, b.Alias)
	})

	v.logger.Debug("checked aliases",
		slog.Int("aliases", report.Aliases),
		slog.Int("circular", len(report.Diagnostics)),
		slog.Int("cycles", len(report.Cycles)))
	return report, nil
}

func (v *Validator) diagnose(b *closure.Builder, env closure.Environment, n types.TypeName, component []types.TypeName) (*Diagnostic, error) {
	path, err := CyclePath(b, n, component)
	if err != nil {
		return nil, err
	}
	diag := &Diagnostic{
		Code:    CodeCircularTypeAlias,
		Alias:   n,
		Cycle:   path,
		Message: fmt.Sprintf("circular type alias %s: %s", n, joinPath(path)),
	}
	if decl, ok := env.TypeAliasDecl(n); ok {
		diag.Location = decl.Location
	}
	return diag, nil
}

// CyclePath returns a shortest reference path from n back to itself that
// stays inside component. The path starts and ends with n.
func CyclePath(b *closure.Builder, n types.TypeName, component []types.TypeName) ([]types.TypeName, error) {
	inside := types.NewNameSet(component...)
	prev := make(map[types.TypeName]types.TypeName)
	queue := []types.TypeName{n}
	seen := types.NewNameSet()

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		deps, err := b.DirectDependenciesOf(cur)
		if err != nil {
			return nil, err
		}
		for _, d := range deps.Slice() {
			if d == n {
				path := []types.TypeName{n}
				for at := cur; at != n; at = prev[at] {
					path = append(path, at)
				}
				slices.Reverse(path[1:])
				return append(path, n), nil
			}
			if !inside.Has(d) || seen.Has(d) {
				continue
			}
			seen.Add(d)
			prev[d] = cur
			queue = append(queue, d)
		}
	}
	return []types.TypeName{n}, nil
}

func joinPath(path []types.TypeName) string {
	parts := make([]string, len(path))
	for i, n := range path {
		parts[i] = n.String()
	}
	return strings.Join(parts, " -> ")
}
