// Package trace defines the search-observation hooks a dispatcher run
// can report to: which variables are currently assigned and which
// constraints are in conflict at each search position.
package trace

import (
	"fmt"
	"io"

	"github.com/polyrat/nra/pkg/nra/poly"
)

// SearchPosition is a snapshot of one point in a dispatcher run: the
// variables assigned so far and, once a branch fails, the constraints
// found to conflict there.
type SearchPosition interface {
	Assigned() []poly.VarID
	Conflicts() []*poly.Constraint
}

// Tracer receives a SearchPosition at points of interest during a
// check: after every lifting/substitution step and on refutation.
type Tracer interface {
	Trace(p SearchPosition)
}

// DefaultTracer discards every trace event.
type DefaultTracer struct{}

func (DefaultTracer) Trace(_ SearchPosition) {}

// LoggingTracer writes each position to Writer, one block per call.
type LoggingTracer struct {
	Writer io.Writer
}

func (t LoggingTracer) Trace(p SearchPosition) {
	fmt.Fprintf(t.Writer, "---\nAssigned:\n")
	for _, v := range p.Assigned() {
		fmt.Fprintf(t.Writer, "- v%d\n", v)
	}
	conflicts := p.Conflicts()
	if len(conflicts) == 0 {
		return
	}
	fmt.Fprintf(t.Writer, "Conflict:\n")
	for _, c := range conflicts {
		fmt.Fprintf(t.Writer, "- %s\n", c)
	}
}

// Position is a concrete SearchPosition value, built by an engine at
// the point it wants to report.
type Position struct {
	VarsAssigned   []poly.VarID
	ConflictsFound []*poly.Constraint
}

func (p Position) Assigned() []poly.VarID       { return p.VarsAssigned }
func (p Position) Conflicts() []*poly.Constraint { return p.ConflictsFound }
