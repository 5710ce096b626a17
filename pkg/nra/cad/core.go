package cad

import (
	"context"
	"math/big"
	"sort"

	"github.com/polyrat/nra/pkg/nra/algebraic"
	"github.com/polyrat/nra/pkg/nra/budget"
	"github.com/polyrat/nra/pkg/nra/linear"
	"github.com/polyrat/nra/pkg/nra/poly"
	"github.com/polyrat/nra/pkg/nra/projection"
	"github.com/polyrat/nra/pkg/nra/trace"
)

// Result is the outcome of one Check call.
type Result int

const (
	Unsat Result = iota
	Sat
	Unknown
)

// Core drives projection and lifting over a fixed constraint set. One
// Core is created per top-level check; Push/Pop extend and restore the
// constraint set without discarding cached projections at unaffected
// levels, per the incrementality contract.
type Core struct {
	pool  *poly.Pool
	proj  *projection.Pool
	stack [][]*poly.Constraint // one frame per push, cumulative constraint set

	MISPolicy MISPolicy
	Budget    *budget.Budget // nil means unbounded

	// Backend, when set, is consulted for a cheap linear feasibility
	// check over the asserted constraints' linear sub-part before any
	// projection or lifting runs, per spec.md §4.4's contract that the
	// CAD core delegates linear feasibility checks to a linear backend.
	Backend linear.Backend

	// Tracer, when set, receives a search position after every lifting
	// step and once more on refutation (SPEC_FULL §7). Nil (NewCore's
	// default) discards every event.
	Tracer trace.Tracer

	// Refutation is the one-cell covering of the deepest sample behind
	// the most recent Unsat verdict's MIS: the local certificate that
	// the returned constraint subset actually fails throughout an
	// explicit cell, not just at one sample. Zero value after a Sat or
	// Unknown Check, or before the first Check call.
	Refutation Cell
}

// NewCore returns a Core over the given polynomial pool.
func NewCore(pool *poly.Pool) *Core {
	return &Core{
		pool:      pool,
		proj:      projection.NewPool(pool),
		stack:     [][]*poly.Constraint{nil},
		MISPolicy: Hybrid,
	}
}

// Push saves the current constraint set so a later Pop can restore it.
func (c *Core) Push() {
	top := append([]*poly.Constraint{}, c.stack[len(c.stack)-1]...)
	c.stack = append(c.stack, top)
}

// Pop restores the constraint set to what it was before the matching Push.
func (c *Core) Pop() {
	if len(c.stack) > 1 {
		c.stack = c.stack[:len(c.stack)-1]
	}
}

// Assert adds a constraint to the current frame.
func (c *Core) Assert(constr *poly.Constraint) {
	top := len(c.stack) - 1
	c.stack[top] = append(c.stack[top], constr)
}

// Model is a satisfying assignment: rational for cleanly rational
// witnesses, algebraic for values that genuinely need an isolating
// interval (e.g. sqrt(2)).
type Model map[poly.VarID]algebraic.Number

// Check runs the CAD decision procedure over the constraints currently
// asserted (own conjuncts only; the module dispatcher is responsible
// for flattening Boolean structure before calling in). It implements the
// Projecting/Lifting/Evaluating/Refuting state machine level by level.
func (c *Core) Check(ctx context.Context) (Result, Model, []*poly.Constraint) {
	c.Refutation = Cell{}
	constraints := c.stack[len(c.stack)-1]
	if len(constraints) == 0 {
		return Sat, Model{}, nil
	}

	varSet := map[poly.VarID]bool{}
	for _, constr := range constraints {
		for _, v := range constr.Poly.Vars() {
			varSet[v] = true
		}
	}
	vars := make([]poly.VarID, 0, len(varSet))
	for v := range varSet {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	if len(vars) == 0 {
		// Every constraint is already a constant decision.
		for _, constr := range constraints {
			if constr.Consistency() == poly.Inconsistent {
				return Unsat, nil, []*poly.Constraint{constr}
			}
		}
		return Sat, Model{}, nil
	}

	if conflict := c.linearPrecheck(ctx, constraints); conflict != nil {
		return Unsat, nil, conflict
	}

	projSets, ok := c.project(vars, constraints)
	if !ok {
		return Unknown, nil, nil
	}

	tree := NewTree(vars)
	graph := newConflictGraph(constraints)

	var satLeaf SampleID

	var lift func(parent SampleID, level int) bool
	lift = func(parent SampleID, level int) bool {
		if budget.Done(ctx, c.Budget) {
			return false
		}
		candidates := c.candidatesAt(vars, level, projSets[level], tree, parent)
		leaves := c.extendWith(tree, parent, level, candidates)
		for _, leaf := range leaves {
			if c.Budget != nil {
				c.Budget.Tick()
			}
			ok := c.evaluateAt(constraints, tree, leaf, vars, graph)
			if !ok {
				continue // obstruction: skip this branch, treated as locally inconclusive
			}
			if tree.IsFalsified(leaf) {
				continue
			}
			c.traceLift(tree, leaf)
			if level == len(vars)-1 {
				satLeaf = leaf
				return true
			}
			if lift(leaf, level+1) {
				return true
			}
		}
		return false
	}

	rootParent := noSample
	if lift(rootParent, 0) {
		return Sat, buildModel(tree, vars, satLeaf), nil
	}
	select {
	case <-ctx.Done():
		return Unknown, nil, nil
	default:
	}

	mis := graph.extractMIS(c.MISPolicy)
	if mis == nil {
		return Unknown, nil, nil
	}
	c.Refutation = explainRefutation(c.proj, graph, mis, tree, projSets)
	c.traceRefutation(mis)
	return Unsat, nil, mis
}

// traceLift reports a lifting step's search position: every variable
// assigned at leaf, in ascending order.
func (c *Core) traceLift(tree *Tree, leaf SampleID) {
	if c.Tracer == nil {
		return
	}
	assign := tree.AssignmentAlgebraic(leaf)
	vars := make([]poly.VarID, 0, len(assign))
	for v := range assign {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	c.Tracer.Trace(trace.Position{VarsAssigned: vars})
}

// traceRefutation reports the minimal infeasible subset behind a Check
// call's Unsat verdict.
func (c *Core) traceRefutation(mis []*poly.Constraint) {
	if c.Tracer == nil {
		return
	}
	c.Tracer.Trace(trace.Position{ConflictsFound: mis})
}

// explainRefutation builds the one-cell covering (ExplainCell) of the
// deepest sample that falsifies some constraint in mis: the sample
// closest to a full assignment is the most specific local witness that
// the conflict graph's chosen subset is genuinely, not just
// coincidentally, infeasible.
func explainRefutation(proj *projection.Pool, graph *conflictGraph, mis []*poly.Constraint, tree *Tree, projSets [][]*poly.Polynomial) Cell {
	deepest := noSample
	deepestLevel := -1
	for _, constr := range mis {
		for s := range graph.columns[constr.Poly.ID()] {
			if lvl := tree.Level(s); lvl > deepestLevel {
				deepestLevel = lvl
				deepest = s
			}
		}
	}
	if deepest == noSample {
		return Cell{}
	}
	return ExplainCell(tree, proj, deepest, projSets[deepestLevel])
}

// linearPrecheck extracts the linear sub-part of constraints (every
// constraint with degree <= 1 in every variable) and asks Backend
// whether it alone is already infeasible, short-circuiting the whole
// projection/lifting search when a cheap linear refutation suffices.
// Returns nil when Backend is unset, too few atoms are linear to be
// informative, or the linear part is feasible.
func (c *Core) linearPrecheck(ctx context.Context, constraints []*poly.Constraint) []*poly.Constraint {
	if c.Backend == nil {
		return nil
	}
	var atoms []linear.LinearAtom
	for _, constr := range constraints {
		if la, ok := linear.FromConstraint(c.pool, constr); ok {
			atoms = append(atoms, la)
		}
	}
	if len(atoms) < 2 {
		return nil
	}
	feasible, _, err := c.Backend.Feasible(ctx, atoms)
	if err != nil || feasible {
		return nil
	}
	conflict := c.Backend.Conflict(atoms)
	if conflict == nil {
		return nil
	}
	out := make([]*poly.Constraint, len(conflict))
	for i, la := range conflict {
		out[i] = la.Origin
	}
	return out
}

// project builds, for each level, the set of projection polynomials
// whose real roots the lifting phase must consider: level k (the
// highest variable) starts from the constraints' own polynomials, and
// each lower level adds resultants of pairs, discriminants, and leading
// coefficients of the level above, per the CAD Projecting phase.
func (c *Core) project(vars []poly.VarID, constraints []*poly.Constraint) ([][]*poly.Polynomial, bool) {
	k := len(vars)
	sets := make([][]*poly.Polynomial, k)
	top := k - 1
	seen := map[poly.ID]bool{}
	for _, constr := range constraints {
		p := constr.Poly
		if p.IsConstant() {
			continue
		}
		if id := p.ID(); !seen[id] {
			seen[id] = true
			sets[top] = append(sets[top], p)
		}
	}
	for level := top; level > 0; level-- {
		v := vars[level]
		var next []*poly.Polynomial
		add := func(p *poly.Polynomial) {
			if p == nil || p.IsConstant() {
				return
			}
			if id := p.ID(); !seen[id] {
				seen[id] = true
				next = append(next, p)
			}
		}
		polys := sets[level]
		for i, p := range polys {
			add(c.proj.Ldcf(p, v))
			add(c.proj.Disc(p, v))
			for j := i + 1; j < len(polys); j++ {
				add(c.proj.Res(p, polys[j], v))
			}
		}
		sets[level-1] = next
	}
	return sets, true
}

// candidate is one value the lifting phase will extend to, tagged with
// whether it is an actual projection-polynomial root (for the one-cell
// explanation's root ordering) or an interior/outer interval sample.
type candidate struct {
	value  algebraic.Number
	isRoot bool
}

// candidatesAt computes the ordered real-algebraic values to lift to at
// (level, parent), from the real roots of every projection polynomial
// at this level specialized under parent's rational assignment, plus an
// interval sample between/around consecutive roots.
func (c *Core) candidatesAt(vars []poly.VarID, level int, polys []*poly.Polynomial, tree *Tree, parent SampleID) []candidate {
	assignment := projection.Assignment{}
	if parent != noSample {
		assignment = projection.Assignment(tree.Assignment(parent))
	}
	var roots []algebraic.Number
	for _, p := range polys {
		if c.proj.IsNullified(p, vars[level], assignment) {
			continue
		}
		roots = append(roots, c.proj.RealRoots(p, vars[level], assignment)...)
	}
	sort.Slice(roots, func(i, j int) bool { return algebraic.Compare(&roots[i], &roots[j]) < 0 })
	dedup := roots[:0]
	for i, r := range roots {
		if i == 0 || algebraic.Compare(&dedup[len(dedup)-1], &r) != 0 {
			dedup = append(dedup, r)
		}
	}
	roots = dedup

	if len(roots) == 0 {
		return []candidate{{value: algebraic.FromRational(big.NewRat(0, 1))}}
	}
	var out []candidate
	firstLow, _ := roots[0].Interval()
	out = append(out, candidate{value: algebraic.FromRational(new(big.Rat).Sub(firstLow, big.NewRat(1, 1)))})
	out = append(out, candidate{value: roots[0], isRoot: true})
	for i := 1; i < len(roots); i++ {
		_, prevHigh := roots[i-1].Interval()
		lo, _ := roots[i].Interval()
		mid := new(big.Rat).Add(prevHigh, lo)
		mid.Quo(mid, big.NewRat(2, 1))
		out = append(out, candidate{value: algebraic.FromRational(mid)})
		out = append(out, candidate{value: roots[i], isRoot: true})
	}
	_, lastHigh := roots[len(roots)-1].Interval()
	out = append(out, candidate{value: algebraic.FromRational(new(big.Rat).Add(lastHigh, big.NewRat(1, 1)))})
	return out
}

func (c *Core) extendWith(tree *Tree, parent SampleID, level int, values []candidate) []SampleID {
	out := make([]SampleID, 0, len(values))
	for _, v := range values {
		if parent == noSample {
			out = append(out, tree.AddRoot(v.value, v.isRoot))
		} else {
			out = append(out, tree.Extend(parent, v.value, v.isRoot))
		}
	}
	_ = level
	return out
}

// evaluateAt evaluates every constraint whose free variables are all
// covered by the assignment reaching leaf, recording the outcome in the
// tree and (on failure) in the conflict graph. Returns false if some
// constraint could not be decided (multiple irrational carriers).
func (c *Core) evaluateAt(constraints []*poly.Constraint, tree *Tree, leaf SampleID, vars []poly.VarID, graph *conflictGraph) bool {
	assigned := tree.AssignmentAlgebraic(leaf)
	ok := true
	for _, constr := range constraints {
		cvars := constr.Poly.Vars()
		fullyAssigned := true
		for _, v := range cvars {
			if _, has := assigned[v]; !has {
				fullyAssigned = false
				break
			}
		}
		if !fullyAssigned {
			continue
		}
		holds, decided := evalConstraint(c.pool, constr, assigned)
		if !decided {
			ok = false
			continue
		}
		if holds {
			tree.MarkSatisfied(leaf, constr.Poly.ID())
		} else {
			tree.MarkFalsified(leaf, constr.Poly.ID())
			graph.markFailing(constr, leaf)
		}
	}
	return ok
}

// evalConstraint decides constr under a total-or-partial algebraic
// assignment. At most one non-rational (irrational-carrier) variable is
// supported per constraint; a constraint depending on two or more
// simultaneously is an evaluation obstruction (decided=false), a scoped
// limitation of this projection layer recorded in DESIGN.md.
func evalConstraint(pool *poly.Pool, constr *poly.Constraint, assigned map[poly.VarID]algebraic.Number) (holds bool, decided bool) {
	rational := map[poly.VarID]*big.Rat{}
	var carrierVar poly.VarID
	haveCarrier := false
	for _, v := range constr.Poly.Vars() {
		n := assigned[v]
		if q, isRat := n.RationalValue(); isRat {
			rational[v] = q
			continue
		}
		if haveCarrier {
			return false, false
		}
		carrierVar, haveCarrier = v, true
	}
	specialized := pool.SubstituteRational(constr.Poly, rational)
	if !haveCarrier {
		val, isConst := specialized.ConstantValue()
		if !isConst {
			return false, false
		}
		return testRelation(constr.Rel, val.Sign()), true
	}
	n := assigned[carrierVar]
	coeffs := pool.CoeffsIn(specialized, carrierVar)
	u := make(algebraic.Univariate, len(coeffs))
	for i, cf := range coeffs {
		val, isConst := cf.ConstantValue()
		if !isConst {
			return false, false
		}
		u[i] = val
	}
	sign, decided := n.EvalPolySign(u)
	if !decided {
		return false, false
	}
	return testRelation(constr.Rel, sign), true
}

func testRelation(rel poly.Relation, sign int) bool {
	switch rel {
	case poly.EQ:
		return sign == 0
	case poly.NEQ:
		return sign != 0
	case poly.LESS:
		return sign < 0
	case poly.LEQ:
		return sign <= 0
	case poly.GREATER:
		return sign > 0
	case poly.GEQ:
		return sign >= 0
	}
	return false
}

func buildModel(tree *Tree, vars []poly.VarID, leaf SampleID) Model {
	m := Model{}
	for v, n := range tree.AssignmentAlgebraic(leaf) {
		m[v] = n
	}
	_ = vars
	return m
}
