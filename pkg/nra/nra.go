// Package nra is the public entry point for the SMT-NRA / mixed
// integer-real decision procedure toolbox: a Solver pools polynomials
// and constraints, accumulates a Boolean combination of them across
// Push/Pop frames, and dispatches Check to the module dispatcher
// (pkg/nra/dispatch), which pipelines the equality-substitution
// preprocessor into Virtual Substitution and CAD.
package nra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/polyrat/nra/pkg/nra/algebraic"
	"github.com/polyrat/nra/pkg/nra/budget"
	"github.com/polyrat/nra/pkg/nra/cad"
	"github.com/polyrat/nra/pkg/nra/dispatch"
	"github.com/polyrat/nra/pkg/nra/formula"
	"github.com/polyrat/nra/pkg/nra/linear"
	"github.com/polyrat/nra/pkg/nra/poly"
	"github.com/polyrat/nra/pkg/nra/trace"
	"github.com/polyrat/nra/pkg/nra/vs"
)

// Result is the tri-valued outcome of a Solver.Check call.
type Result int

const (
	Unsat Result = iota
	Sat
	Unknown
)

func (r Result) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Model is a satisfying assignment over input variables: a rational
// value for a cleanly rational witness, a real-algebraic value (an
// isolating interval plus defining polynomial) for one that genuinely
// needs it, e.g. sqrt(2).
type Model map[poly.VarID]algebraic.Number

// NotSatisfiable is the error Check reports on UNSAT: a subset of the
// asserted constraints whose conjunction is already unsatisfiable, with
// minimal cardinality under the configured MIS heuristic (exactly for
// cad.Hybrid; only approximately for the other policies, per spec.md
// §8's round-trip laws), mirroring pkg/deppy's own NotSatisfiable.
type NotSatisfiable []*poly.Constraint

func (e NotSatisfiable) Error() string {
	const msg = "constraints not satisfiable"
	if len(e) == 0 {
		return msg
	}
	s := make([]string, len(e))
	for i, c := range e {
		s[i] = c.String()
	}
	return fmt.Sprintf("%s:\n%s", msg, strings.Join(s, "\n"))
}

// ErrNoModel is returned by Model when the last Check did not return
// Sat (or no Check has run yet).
var ErrNoModel = errors.New("nra: no model available")

// ErrNoCore is returned by UnsatCore when the last Check did not return
// Unsat (or no Check has run yet).
var ErrNoCore = errors.New("nra: no unsat core available")

// Solver is the toolbox's public entry point: one polynomial/constraint
// pool, one Boolean formula arena, and a stack of assertion frames that
// Push/Pop save and restore, exactly the push/pop group-action law of
// spec.md §8 ("pop(push(s, phi)) = s state-wise").
type Solver struct {
	pool    *poly.Pool
	arena   *formula.Arena
	integer map[poly.VarID]bool
	frames  [][]formula.ID // one frame per push, cumulative assertion list

	dispOpts []dispatch.Option

	lastResult Result
	lastModel  Model
	lastCore   []*poly.Constraint
}

// Option configures a Solver built by NewSolver.
type Option func(*Solver)

// WithVSOptions overrides the Virtual Substitution engine's options.
func WithVSOptions(o vs.Options) Option {
	return func(s *Solver) { s.dispOpts = append(s.dispOpts, dispatch.WithVSOptions(o)) }
}

// WithMISPolicy overrides the CAD core's minimal-infeasible-subset
// extraction heuristic.
func WithMISPolicy(p cad.MISPolicy) Option {
	return func(s *Solver) { s.dispOpts = append(s.dispOpts, dispatch.WithMISPolicy(p)) }
}

// WithBudget bounds every Check this Solver runs.
func WithBudget(b *budget.Budget) Option {
	return func(s *Solver) { s.dispOpts = append(s.dispOpts, dispatch.WithBudget(b)) }
}

// WithBackend overrides the shared linear backend.
func WithBackend(b linear.Backend) Option {
	return func(s *Solver) { s.dispOpts = append(s.dispOpts, dispatch.WithBackend(b)) }
}

// WithTracer overrides the search-observation tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Solver) { s.dispOpts = append(s.dispOpts, dispatch.WithTracer(t)) }
}

// NewSolver returns an empty Solver: no assertions, one (the base)
// frame.
func NewSolver(options ...Option) *Solver {
	pool := poly.NewPool()
	s := &Solver{
		pool:    pool,
		arena:   formula.NewArena(pool),
		integer: map[poly.VarID]bool{},
		frames:  [][]formula.ID{nil},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Pool returns the Solver's backing polynomial/constraint pool, so a
// caller can build polynomials and constraints to assert.
func (s *Solver) Pool() *poly.Pool { return s.pool }

// Var interns a real-sorted variable by name.
func (s *Solver) Var(name string) poly.VarID { return s.pool.Var(name) }

// IntVar interns an integer-sorted variable by name; Check's
// branch-and-bound layer only ever fires on variables declared this
// way.
func (s *Solver) IntVar(name string) poly.VarID {
	v := s.pool.Var(name)
	s.integer[v] = true
	return v
}

// Assert adds constraint to the current frame.
func (s *Solver) Assert(c *poly.Constraint) {
	s.AssertFormula(s.arena.Constraint(c))
}

// AssertFormula adds an arbitrary Boolean combination (built via
// Solver.Arena()) to the current frame.
func (s *Solver) AssertFormula(f formula.ID) {
	top := len(s.frames) - 1
	s.frames[top] = append(s.frames[top], f)
}

// Arena returns the Solver's Boolean formula arena, for building
// combinations (NOT/AND/OR/ITE/...) over asserted constraints.
func (s *Solver) Arena() *formula.Arena { return s.arena }

// Push saves the current set of assertions so a later Pop can restore
// it; assertions made after Push extend this frame only.
func (s *Solver) Push() {
	top := append([]formula.ID{}, s.frames[len(s.frames)-1]...)
	s.frames = append(s.frames, top)
}

// Pop restores the assertion set to what it was before the matching
// Push.
func (s *Solver) Pop() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Check decides the conjunction of every constraint/formula asserted in
// the current frame. On Sat, Model returns a witness; on Unsat, the
// returned error is a NotSatisfiable wrapping UnsatCore(); on Unknown,
// err is nil unless the dispatcher could not be built or reported an
// error (malformed input, an unsupported construct, or a recovered
// internal invariant violation, per pkg/nra/dispatch's error taxonomy).
func (s *Solver) Check(ctx context.Context) (Result, error) {
	conjunction := s.arena.And(s.frames[len(s.frames)-1]...)

	integerVars := make([]poly.VarID, 0, len(s.integer))
	for v := range s.integer {
		integerVars = append(integerVars, v)
	}
	opts := append(append([]dispatch.Option{}, s.dispOpts...), dispatch.WithIntegerVars(integerVars))
	disp, err := dispatch.NewDispatcher(s.pool, s.arena, opts...)
	if err != nil {
		return Unknown, err
	}

	res, model, core, err := disp.Check(ctx, conjunction)
	if err != nil {
		s.lastResult, s.lastModel, s.lastCore = Unknown, nil, nil
		return Unknown, err
	}

	switch res {
	case dispatch.Sat:
		s.lastResult, s.lastModel, s.lastCore = Sat, Model(model), nil
		return Sat, nil
	case dispatch.Unsat:
		s.lastResult, s.lastModel, s.lastCore = Unsat, nil, core
		return Unsat, NotSatisfiable(core)
	default:
		s.lastResult, s.lastModel, s.lastCore = Unknown, nil, nil
		return Unknown, nil
	}
}

// Model returns the satisfying assignment found by the last Check call,
// or ErrNoModel if it didn't return Sat.
func (s *Solver) Model() (Model, error) {
	if s.lastResult != Sat {
		return nil, ErrNoModel
	}
	return s.lastModel, nil
}

// UnsatCore returns the infeasible subset found by the last Check call,
// or ErrNoCore if it didn't return Unsat.
func (s *Solver) UnsatCore() ([]*poly.Constraint, error) {
	if s.lastResult != Unsat {
		return nil, ErrNoCore
	}
	return s.lastCore, nil
}
