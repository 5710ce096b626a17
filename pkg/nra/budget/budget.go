// Package budget bounds a single check's search: a deadline carried on
// context.Context, an optional ceiling on the number of tree nodes
// visited, and a Cancelled sentinel for a caller that manually aborted.
package budget

import (
	"context"
	"errors"
)

// ErrCancelled is returned when a check exhausted its budget rather
// than reaching a definite Sat/Unsat outcome.
var ErrCancelled = errors.New("budget: check cancelled before a result was found")

// Budget tracks resource consumption for one Check call. The zero value
// has no node ceiling and never expires on its own; callers still pass
// a context.Context alongside it for deadline/cancellation.
type Budget struct {
	maxNodes int // 0 means unbounded
	nodes    int
}

// New returns a Budget with maxNodes as its node ceiling (0 = unbounded).
func New(maxNodes int) *Budget {
	return &Budget{maxNodes: maxNodes}
}

// Tick records one unit of search work (one lifted sample, one test
// candidate applied) and reports whether the budget is exhausted.
func (b *Budget) Tick() bool {
	b.nodes++
	return b.maxNodes > 0 && b.nodes >= b.maxNodes
}

// Nodes returns the number of Tick calls so far.
func (b *Budget) Nodes() int { return b.nodes }

// Exceeded reports the current over-budget state without consuming a tick.
func (b *Budget) Exceeded() bool {
	return b.maxNodes > 0 && b.nodes >= b.maxNodes
}

// Done reports whether ctx is done or the node ceiling has been reached;
// engines call this at the top of every recursive lift/substitution step.
func Done(ctx context.Context, b *Budget) bool {
	select {
	case <-ctx.Done():
		return true
	default:
	}
	return b != nil && b.Exceeded()
}
