package tsort

import (
	"errors"
	"fmt"
)

// ErrCyclicDependency is returned (wrapped) by TopologicalSort when the
// graph is not acyclic.
var ErrCyclicDependency = errors.New("cyclic dependency")

// CyclicDependencyError carries the component that prevented a total order.
// Component holds the mutually dependent nodes, or a single node with an
// edge to itself.
type CyclicDependencyError[T comparable] struct {
	Component []T
}

func (e *CyclicDependencyError[T]) Error() string {
	return fmt.Sprintf("%s: %v", ErrCyclicDependency, e.Component)
}

// Unwrap lets callers match with errors.Is(err, ErrCyclicDependency).
func (e *CyclicDependencyError[T]) Unwrap() error {
	return ErrCyclicDependency
}

// CycleOf extracts the offending component from an error returned by
// TopologicalSort. It reports false if err does not carry one for T.
func CycleOf[T comparable](err error) ([]T, bool) {
	var cycErr *CyclicDependencyError[T]
	if errors.As(err, &cycErr) {
		return cycErr.Component, true
	}
	return nil, false
}
