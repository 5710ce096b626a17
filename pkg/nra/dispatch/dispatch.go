// Package dispatch implements the module dispatcher (spec.md §4.7): it
// pipelines the equality-substitution preprocessor into whichever
// theory engine applies, falls back from Virtual Substitution to CAD
// on a too-high-degree residue, runs a linear-backend relaxation as a
// cheap top-level pre-check, drives integer branch-and-bound over any
// non-integral witness, and remaps every reported infeasible subset
// back onto the caller's own input constraints. It mirrors the
// teacher's functional-options solver construction
// (pkg/deppy/solver/solve.go's Solver/Option/WithTracer/defaults) and
// its pipeline shape (build lit map -> assume -> search -> translate
// result back to input Variables).
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/polyrat/nra/pkg/nra/algebraic"
	"github.com/polyrat/nra/pkg/nra/boolabs"
	"github.com/polyrat/nra/pkg/nra/budget"
	"github.com/polyrat/nra/pkg/nra/cad"
	"github.com/polyrat/nra/pkg/nra/es"
	"github.com/polyrat/nra/pkg/nra/formula"
	"github.com/polyrat/nra/pkg/nra/linear"
	"github.com/polyrat/nra/pkg/nra/poly"
	"github.com/polyrat/nra/pkg/nra/trace"
	"github.com/polyrat/nra/pkg/nra/vs"
)

// Result is the tri-valued outcome of one Dispatcher.Check call.
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

// Model is a satisfying assignment, one real-algebraic value per
// variable the dispatcher's chosen engine assigned.
type Model map[poly.VarID]algebraic.Number

// Error taxonomy (spec.md §7). Malformed input and unsupported
// constructs are both surfaced as a non-nil error from Check;
// ErrMalformedInput additionally signals the caller should treat the
// input itself as rejected (exit code 2 at the CLI boundary) rather
// than as a normal UNKNOWN outcome.
var (
	ErrMalformedInput       = errors.New("dispatch: malformed input")
	ErrUnsupportedConstruct = errors.New("dispatch: unsupported construct")
	ErrInternalInvariant    = errors.New("dispatch: internal invariant violation")
)

// Dispatcher orchestrates one preprocessor -> engine-of-choice ->
// backend pipeline over a shared polynomial pool and formula arena.
type Dispatcher struct {
	pool    *poly.Pool
	arena   *formula.Arena
	integer map[poly.VarID]bool

	vsOpts    vs.Options
	misPolicy cad.MISPolicy
	budget    *budget.Budget
	backend   linear.Backend
	tracer    trace.Tracer
}

// Option configures a Dispatcher built by NewDispatcher.
type Option func(*Dispatcher) error

// WithIntegerVars marks vars as integer-sorted (NIA rather than NRA);
// Check's branch-and-bound layer only fires for a non-integral witness
// on one of these.
func WithIntegerVars(vars []poly.VarID) Option {
	return func(d *Dispatcher) error {
		for _, v := range vars {
			d.integer[v] = true
		}
		return nil
	}
}

// WithVSOptions overrides the Virtual Substitution engine's options.
func WithVSOptions(o vs.Options) Option {
	return func(d *Dispatcher) error {
		d.vsOpts = o
		return nil
	}
}

// WithMISPolicy overrides the CAD core's minimal-infeasible-subset
// extraction heuristic.
func WithMISPolicy(p cad.MISPolicy) Option {
	return func(d *Dispatcher) error {
		d.misPolicy = p
		return nil
	}
}

// WithBudget bounds every check this Dispatcher runs.
func WithBudget(b *budget.Budget) Option {
	return func(d *Dispatcher) error {
		d.budget = b
		return nil
	}
}

// WithBackend overrides the shared linear backend; the default is
// linear.NewBackend()'s Fourier-Motzkin implementation.
func WithBackend(b linear.Backend) Option {
	return func(d *Dispatcher) error {
		d.backend = b
		return nil
	}
}

// WithTracer overrides the search-observation tracer; the default
// discards every event.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) error {
		d.tracer = t
		return nil
	}
}

// NewDispatcher returns a Dispatcher over pool and arena.
func NewDispatcher(pool *poly.Pool, arena *formula.Arena, options ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		pool:      pool,
		arena:     arena,
		integer:   map[poly.VarID]bool{},
		vsOpts:    vs.DefaultOptions(),
		misPolicy: cad.Hybrid,
	}
	for _, opt := range append(options, defaults...) {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

var defaults = []Option{
	func(d *Dispatcher) error {
		if d.backend == nil {
			b, err := linear.NewBackend()
			if err != nil {
				return err
			}
			d.backend = b
		}
		return nil
	},
	func(d *Dispatcher) error {
		if d.tracer == nil {
			d.tracer = trace.DefaultTracer{}
		}
		return nil
	},
}

// Check decides f: true/false fold out trivially, a flat conjunction of
// literals goes straight to the theory pipeline, and anything with
// genuine Boolean structure (OR/XOR/IFF/ITE) is resolved one
// propositional model at a time via pkg/nra/boolabs before the theory
// pipeline sees it. The equality-substitution pass (es.Eliminate)
// solves equations over the rationals, so it is skipped when integer
// variables are declared. Recovers from an internal invariant violation
// (spec.md §7) by halting the current check and reporting
// ErrInternalInvariant rather than propagating a panic.
func (d *Dispatcher) Check(ctx context.Context, f formula.ID) (res Result, model Model, core []*poly.Constraint, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, model, core = Unknown, nil, nil
			err = fmt.Errorf("%w: %v", ErrInternalInvariant, r)
		}
	}()

	if verr := d.validate(f); verr != nil {
		return Unknown, nil, nil, verr
	}
	if budget.Done(ctx, d.budget) {
		return Unknown, nil, nil, nil
	}

	simplified := f
	if len(d.integer) == 0 {
		simplified, _ = es.Eliminate(d.arena, f)
	}
	switch d.arena.Kind(simplified) {
	case formula.TRUE:
		return Sat, Model{}, nil, nil
	case formula.FALSE:
		return Unsat, nil, nil, nil
	}

	if flat, ok := formula.FlattenConjunction(d.arena, simplified); ok {
		return d.checkConjunction(ctx, flat)
	}
	return d.checkBoolean(ctx, simplified)
}

// validate rejects every construct outside the quantifier-free NRA/NIA
// core: a quantifier is malformed input (the core only ever consumes a
// pre-parsed QF Formula), an opaque BOOL/BITVECTOR/UEQ/VARCOMPARE leaf
// is an unsupported construct.
func (d *Dispatcher) validate(f formula.ID) error {
	var err error
	d.arena.Walk(f, func(id formula.ID) {
		if err != nil {
			return
		}
		switch d.arena.Kind(id) {
		case formula.EXISTS, formula.FORALL:
			err = fmt.Errorf("%w: quantified formula is not quantifier-free", ErrMalformedInput)
		case formula.BOOL, formula.BITVECTOR, formula.UEQ, formula.VARCOMPARE:
			err = fmt.Errorf("%w: %s leaf %q is outside the NRA/NIA core", ErrUnsupportedConstruct, d.arena.Kind(id), d.arena.Label(id))
		}
	})
	return err
}

// checkBoolean resolves genuine Boolean structure by enumerating every
// propositional model of f's Boolean skeleton (each one a conjunction
// of constraint literals once the atom truth values are substituted in)
// and running the theory pipeline on each, stopping at the first SAT.
// If every model is theory-UNSAT, the reported core is the union of
// every model's core: correct (its conjunction really is unsatisfiable)
// but, unlike the single-conjunction case, not guaranteed minimal even
// under the HYBRID policy, since minimality there is only proven per
// theory call.
func (d *Dispatcher) checkBoolean(ctx context.Context, f formula.ID) (Result, Model, []*poly.Constraint, error) {
	sk := boolabs.Compile(d.arena, f)
	if sk.PropositionallyUnsat() {
		return Unsat, nil, nil, nil
	}

	var satModel Model
	found := false
	unionCore := map[poly.ID]bool{}
	var reportErr error

	boolabs.EnumerateModels(sk, func(assign map[formula.ID]bool) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		literals, ok := literalsFromModel(d.arena, assign)
		if !ok {
			return true
		}
		res, m, core, err := d.checkConjunction(ctx, literals)
		if err != nil {
			reportErr = err
			return false
		}
		if res == Sat {
			satModel, found = m, true
			return false
		}
		for _, c := range core {
			unionCore[c.ID()] = true
		}
		return true
	})

	if reportErr != nil {
		return Unknown, nil, nil, reportErr
	}
	if found {
		return Sat, satModel, nil, nil
	}
	select {
	case <-ctx.Done():
		return Unknown, nil, nil, nil
	default:
	}
	if len(unionCore) == 0 {
		return Unknown, nil, nil, nil
	}
	return Unsat, nil, d.coreFromIDs(unionCore), nil
}

// literalsFromModel turns a propositional model (an atom-id -> truth
// assignment) into the conjunction of constraint literals it stands
// for, negating the pooled constraint for every atom assigned false.
func literalsFromModel(arena *formula.Arena, assign map[formula.ID]bool) ([]*poly.Constraint, bool) {
	out := make([]*poly.Constraint, 0, len(assign))
	for id, truth := range assign {
		c, ok := arena.ConstraintOf(id)
		if !ok {
			return nil, false
		}
		if !truth {
			c = arena.Pool().Negate(c)
		}
		out = append(out, c)
	}
	return out, true
}

// checkConjunction is the theory pipeline proper: a cheap linear
// relaxation pre-check, then Virtual Substitution, falling back to CAD
// on VS's too-high-degree escalation, then integer branch-and-bound
// over the witness it found.
func (d *Dispatcher) checkConjunction(ctx context.Context, constraints []*poly.Constraint) (Result, Model, []*poly.Constraint, error) {
	if budget.Done(ctx, d.budget) {
		return Unknown, nil, nil, nil
	}
	for _, c := range constraints {
		if c.Consistency() == poly.Inconsistent {
			return Unsat, nil, []*poly.Constraint{c}, nil
		}
	}
	if conflict := d.relaxationConflict(ctx, constraints); conflict != nil {
		return Unsat, nil, conflict, nil
	}

	order := d.eliminationOrder(constraints)

	vsEngine := vs.NewEngine(d.pool, d.backend, d.integer, d.vsOpts)
	vsEngine.Tracer = d.tracer
	vres, vmodel, vcore := vsEngine.Check(ctx, constraints, order)
	switch vres {
	case vs.Sat:
		return d.finishSat(ctx, constraints, Model(vmodel))
	case vs.Unsat:
		return Unsat, nil, vcore, nil
	}

	core := cad.NewCore(d.pool)
	core.MISPolicy = d.misPolicy
	core.Budget = d.budget
	core.Backend = d.backend
	core.Tracer = d.tracer
	for _, constr := range constraints {
		core.Assert(constr)
	}
	cres, cmodel, ccore := core.Check(ctx)
	switch cres {
	case cad.Sat:
		return d.finishSat(ctx, constraints, Model(cmodel))
	case cad.Unsat:
		return Unsat, nil, ccore, nil
	default:
		return Unknown, nil, nil, nil
	}
}

// eliminationOrder fixes the variable order every engine eliminates
// (VS) or lifts (CAD) in: ascending VarID, i.e. the order in which the
// shared pool first saw each variable, so results stay stable across
// runs regardless of the order constraints happened to arrive in.
func (d *Dispatcher) eliminationOrder(constraints []*poly.Constraint) []poly.VarID {
	set := map[poly.VarID]bool{}
	for _, c := range constraints {
		for _, v := range c.Poly.Vars() {
			set[v] = true
		}
	}
	order := make([]poly.VarID, 0, len(set))
	for v := range set {
		order = append(order, v)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return order
}

// finishSat checks model's witness for every integer-sorted variable
// and, on the first non-integral one, branches per spec.md §4.5
// (x <= floor(v) OR x >= ceil(v)), recursing into both disjoint halves.
// A witness SAT in either branch wins outright; UNSAT in both composes
// a conflict set for the parent, with the branch-only bound constraint
// itself stripped back out (it is not part of the caller's original
// input and must never leak into a reported core).
func (d *Dispatcher) finishSat(ctx context.Context, constraints []*poly.Constraint, model Model) (Result, Model, []*poly.Constraint, error) {
	v, q, ok := d.firstNonIntegral(model)
	if !ok {
		return Sat, model, nil, nil
	}
	if budget.Done(ctx, d.budget) {
		return Unknown, nil, nil, nil
	}
	if d.budget != nil {
		d.budget.Tick()
	}

	vpoly := d.pool.VarPoly(v)
	lo, hi := floorRat(q), ceilRat(q)
	leBound := d.pool.InternConstraint(d.pool.Sub(vpoly, d.pool.Const(lo)), poly.LEQ) // v <= lo
	geBound := d.pool.InternConstraint(d.pool.Sub(d.pool.Const(hi), vpoly), poly.LEQ) // v >= hi

	leftRes, leftModel, leftCore, err := d.checkConjunction(ctx, append(append([]*poly.Constraint{}, constraints...), leBound))
	if err != nil {
		return Unknown, nil, nil, err
	}
	if leftRes == Sat {
		return Sat, leftModel, nil, nil
	}

	rightRes, rightModel, rightCore, err := d.checkConjunction(ctx, append(append([]*poly.Constraint{}, constraints...), geBound))
	if err != nil {
		return Unknown, nil, nil, err
	}
	if rightRes == Sat {
		return Sat, rightModel, nil, nil
	}

	if leftRes == Unsat && rightRes == Unsat {
		seen := map[poly.ID]bool{}
		var core []*poly.Constraint
		for _, c := range append(append([]*poly.Constraint{}, leftCore...), rightCore...) {
			if c.ID() == leBound.ID() || c.ID() == geBound.ID() {
				continue
			}
			if !seen[c.ID()] {
				seen[c.ID()] = true
				core = append(core, c)
			}
		}
		return Unsat, nil, core, nil
	}
	return Unknown, nil, nil, nil
}

// firstNonIntegral returns the lowest-VarID integer variable whose
// model value isn't an integer, or ok=false if every integer variable
// resolved cleanly. A variable whose witness is itself irrational (the
// degenerate-witness scope limitation recorded in pkg/nra/vs and
// pkg/nra/cad) is skipped rather than misreported, since no rational
// value is available to branch on.
func (d *Dispatcher) firstNonIntegral(model Model) (poly.VarID, *big.Rat, bool) {
	vars := make([]poly.VarID, 0, len(d.integer))
	for v := range d.integer {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	for _, v := range vars {
		n, ok := model[v]
		if !ok {
			continue
		}
		q, isRat := n.RationalValue()
		if !isRat {
			continue
		}
		if !q.IsInt() {
			return v, q, true
		}
	}
	return 0, nil, false
}

func floorRat(q *big.Rat) *big.Rat {
	f, m := new(big.Int), new(big.Int)
	f.DivMod(q.Num(), q.Denom(), m)
	return new(big.Rat).SetInt(f)
}

func ceilRat(q *big.Rat) *big.Rat {
	f := floorRat(q)
	if f.Cmp(q) == 0 {
		return f
	}
	return new(big.Rat).Add(f, big.NewRat(1, 1))
}

// relaxationConflict runs the whole conjunction's linear relaxation
// (every nonlinear monomial stands for a fresh auxiliary variable, via
// delinearize) through the shared backend as a cheap top-level
// pre-check: a real solution to the original conjunction always gives a
// consistent assignment to the relaxation's aux variables, so relaxation
// infeasibility implies original infeasibility (never the converse,
// which is why this is only ever used to report UNSAT, never SAT).
func (d *Dispatcher) relaxationConflict(ctx context.Context, constraints []*poly.Constraint) []*poly.Constraint {
	if d.backend == nil {
		return nil
	}
	atoms, _ := delinearize(d.pool, constraints)
	if len(atoms) < 2 {
		return nil
	}
	feasible, _, err := d.backend.Feasible(ctx, atoms)
	if err != nil || feasible {
		return nil
	}
	conflict := d.backend.Conflict(atoms)
	seen := map[poly.ID]bool{}
	var out []*poly.Constraint
	for _, la := range conflict {
		if la.Origin != nil && !seen[la.Origin.ID()] {
			seen[la.Origin.ID()] = true
			out = append(out, la.Origin)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// DelinTable records, for every auxiliary variable delinearize
// introduces, the monomial it stands for — the de-linearization remap
// table named in spec.md §4.7, so a caller inspecting a relaxation's
// backend bounds can translate an aux variable's bound back to the
// monomial it replaced instead of leaking it as a bare fresh variable.
type DelinTable struct {
	pool     *poly.Pool
	auxOfKey map[string]poly.VarID
	monOfVar map[poly.VarID]string
}

func newDelinTable(pool *poly.Pool) *DelinTable {
	return &DelinTable{pool: pool, auxOfKey: map[string]poly.VarID{}, monOfVar: map[poly.VarID]string{}}
}

func (t *DelinTable) auxFor(key string) poly.VarID {
	if v, ok := t.auxOfKey[key]; ok {
		return v
	}
	v := t.pool.Var(fmt.Sprintf("~aux[%s]", key))
	t.auxOfKey[key] = v
	t.monOfVar[v] = key
	return v
}

// Monomial returns the monomial description an auxiliary VarID stands
// for, and whether v was ever introduced by this table at all (as
// opposed to being one of the original input's own variables).
func (t *DelinTable) Monomial(v poly.VarID) (string, bool) {
	m, ok := t.monOfVar[v]
	return m, ok
}

// delinearize builds a linear relaxation of constraints: a constraint
// already linear passes through as its own LinearAtom unchanged; one
// that isn't has every one of its nonlinear monomials replaced by a
// fresh auxiliary variable (the same auxiliary variable for the same
// monomial across every constraint, so the relaxation stays as tight as
// a purely per-monomial abstraction can be).
func delinearize(pool *poly.Pool, constraints []*poly.Constraint) ([]linear.LinearAtom, *DelinTable) {
	table := newDelinTable(pool)
	atoms := make([]linear.LinearAtom, 0, len(constraints))
	for _, c := range constraints {
		if la, ok := linear.FromConstraint(pool, c); ok {
			atoms = append(atoms, la)
			continue
		}
		coeffs := map[poly.VarID]*big.Rat{}
		constant := new(big.Rat)
		for _, term := range c.Poly.Terms() {
			if len(term.Exp) == 0 {
				constant.Add(constant, term.Coeff)
				continue
			}
			v := table.auxFor(monomialKey(term.Exp))
			if existing, ok := coeffs[v]; ok {
				coeffs[v] = new(big.Rat).Add(existing, term.Coeff)
			} else {
				coeffs[v] = new(big.Rat).Set(term.Coeff)
			}
		}
		atoms = append(atoms, linear.LinearAtom{Coeffs: coeffs, Constant: constant, Rel: c.Rel, Origin: c})
	}
	return atoms, table
}

func monomialKey(exp map[poly.VarID]uint32) string {
	vars := make([]poly.VarID, 0, len(exp))
	for v := range exp {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	var b strings.Builder
	for _, v := range vars {
		fmt.Fprintf(&b, "x%d^%d,", v, exp[v])
	}
	return b.String()
}

func (d *Dispatcher) coreFromIDs(ids map[poly.ID]bool) []*poly.Constraint {
	sorted := make([]poly.ID, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := make([]*poly.Constraint, 0, len(sorted))
	for _, id := range sorted {
		if c, ok := d.pool.ConstraintByID(id); ok {
			out = append(out, c)
		}
	}
	return out
}
