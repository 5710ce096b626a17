package vs

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/polyrat/nra/pkg/nra/algebraic"
	"github.com/polyrat/nra/pkg/nra/linear"
	"github.com/polyrat/nra/pkg/nra/poly"
	"github.com/polyrat/nra/pkg/nra/trace"
)

// Result is the outcome of one Engine.Check call.
type Result int

const (
	Unsat Result = iota
	Sat
	Unknown
)

// Model is a satisfying assignment, one real-algebraic value per
// eliminated variable.
type Model map[poly.VarID]algebraic.Number

// Engine drives Virtual Substitution over a fixed elimination order.
type Engine struct {
	pool    *poly.Pool
	backend linear.Backend
	integer map[poly.VarID]bool
	opts    Options

	// Tracer, when set, receives a search position after every
	// substitution step and once more on refutation (SPEC_FULL §7). Nil
	// (the default NewEngine leaves it) discards every event.
	Tracer trace.Tracer

	// Termination-invariance bookkeeping for one Check call (see
	// iterationsExhausted): the last elimination-step signature seen and
	// how many consecutive steps repeated it.
	lastSig    *string
	sigRepeats int
	aborted    bool
}

// NewEngine returns an Engine over pool, using backend for the
// variable-bound pruning named in spec.md §4.5. integer names the
// variables branch-and-bound must keep integral.
func NewEngine(pool *poly.Pool, backend linear.Backend, integer map[poly.VarID]bool, opts Options) *Engine {
	if integer == nil {
		integer = map[poly.VarID]bool{}
	}
	return &Engine{pool: pool, backend: backend, integer: integer, opts: opts}
}

// taggedAtom is a constraint together with the set of original,
// top-level input constraints whose elimination produced it, so a
// refutation can report a precise minimal infeasible subset instead of
// "everything asserted so far".
type taggedAtom struct {
	c       *poly.Constraint
	origins map[poly.ID]bool
}

func rootAtoms(constraints []*poly.Constraint) []taggedAtom {
	out := make([]taggedAtom, len(constraints))
	for i, c := range constraints {
		out[i] = taggedAtom{c: c, origins: map[poly.ID]bool{c.ID(): true}}
	}
	return out
}

func unionOrigins(sets ...map[poly.ID]bool) map[poly.ID]bool {
	out := map[poly.ID]bool{}
	for _, s := range sets {
		for k := range s {
			out[k] = true
		}
	}
	return out
}

// Check decides the conjunction of constraints by eliminating order's
// variables one at a time.
func (e *Engine) Check(ctx context.Context, constraints []*poly.Constraint, order []poly.VarID) (Result, Model, []*poly.Constraint) {
	chosen := map[poly.VarID]TestCandidate{}
	e.lastSig = nil
	e.sigRepeats = 0
	e.aborted = false
	ok, conflict := e.eliminate(ctx, rootAtoms(constraints), order, chosen)
	select {
	case <-ctx.Done():
		return Unknown, nil, nil
	default:
	}
	if e.aborted {
		return Unknown, nil, nil
	}
	if ok {
		return Sat, e.buildModel(order, chosen), nil
	}
	if conflict == nil {
		return Unknown, nil, nil
	}
	ids := make([]poly.ID, 0, len(conflict))
	for id := range conflict {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	mis := make([]*poly.Constraint, 0, len(ids))
	for _, id := range ids {
		if c, ok := e.pool.ConstraintByID(id); ok {
			mis = append(mis, c)
		}
	}
	e.traceRefutation(mis)
	return Unsat, nil, mis
}

// traceStep reports a substitution step's search position: the
// variables eliminate has chosen a candidate for so far, in ascending
// order.
func (e *Engine) traceStep(chosen map[poly.VarID]TestCandidate) {
	if e.Tracer == nil {
		return
	}
	vars := make([]poly.VarID, 0, len(chosen))
	for v := range chosen {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	e.Tracer.Trace(trace.Position{VarsAssigned: vars})
}

// traceRefutation reports the minimal infeasible subset behind a Check
// call's Unsat verdict.
func (e *Engine) traceRefutation(mis []*poly.Constraint) {
	if e.Tracer == nil {
		return
	}
	e.Tracer.Trace(trace.Position{ConflictsFound: mis})
}

// eliminate is SUBSTITUTION_TO_APPLY/COMBINE_SUBRESULTS/
// TEST_CANDIDATE_TO_GENERATE collapsed into one recursive DFS: pick the
// best condition on order[0], generate its candidates, substitute each
// into every atom mentioning the variable, and recurse into every
// surviving DNF branch. A branch that turns an atom into a syntactic
// contradiction is pruned immediately with its precise origin set.
// Reaching the base case with every variable eliminated means the
// surviving atoms are jointly consistent over the reals; an
// integer-typed variable whose chosen candidate isn't integral is
// deliberately NOT refuted here: that would claim real infeasibility
// where only an integral witness is missing. Resolving it is the
// caller's job: the module dispatcher's branch-and-bound (see
// dispatch.go) splits on the non-integral coordinate of the real
// witness this Engine returns as Sat.
func (e *Engine) eliminate(ctx context.Context, atoms []taggedAtom, order []poly.VarID, chosen map[poly.VarID]TestCandidate) (bool, map[poly.ID]bool) {
	select {
	case <-ctx.Done():
		return false, nil
	default:
	}
	for _, a := range atoms {
		if a.c.Consistency() == poly.Inconsistent {
			return false, a.origins
		}
	}
	if conflict := e.linearConflict(ctx, atoms); conflict != nil {
		return false, conflict
	}
	if len(order) == 0 {
		return true, nil
	}
	x := order[0]
	rest := order[1:]

	sources, found := conditionSources(atoms, x, e.opts)
	if !found {
		return e.eliminate(ctx, atoms, rest, chosen)
	}

	if e.iterationsExhausted(x, len(atoms), chosen) {
		return false, nil
	}

	var conflictUnion map[poly.ID]bool
	for _, src := range sources {
		cands, supported := GenerateCandidates(e.pool, src.c, x, e.integer[x], e.opts)
		if !supported {
			// Degree >= 3 in x: outside this package's scope (see
			// DESIGN.md); the module dispatcher is responsible for
			// routing such constraints to CAD instead of calling into VS.
			return false, nil
		}
		for _, cand := range cands {
			if e.integer[x] && src.c.Rel == poly.EQ && !isIntegerValued(cand.Value) {
				// Divisibility-by-gcd-of-coefficients pruning: once every
				// coefficient this candidate's value depends on has
				// resolved to a constant, an equation pins x to exactly
				// this rational value, so a non-integral one refutes the
				// branch outright rather than wasting a substitution.
				conflictUnion = unionOrigins(conflictUnion, src.origins)
				continue
			}
			disjuncts, refutedOrigins, ok := e.substituteAtoms(atoms, x, cand, src.origins)
			if !ok {
				continue
			}
			if refutedOrigins != nil {
				conflictUnion = unionOrigins(conflictUnion, refutedOrigins)
				continue
			}
			for _, branch := range disjuncts {
				blamed, bad := firstInconsistent(branch)
				if bad {
					conflictUnion = unionOrigins(conflictUnion, blamed)
					continue
				}
				branchChosen := cloneChosen(chosen)
				branchChosen[x] = cand
				e.traceStep(branchChosen)
				ok2, conflict2 := e.eliminate(ctx, branch, rest, branchChosen)
				if ok2 {
					for k, v := range branchChosen {
						chosen[k] = v
					}
					return true, nil
				}
				conflictUnion = unionOrigins(conflictUnion, conflict2)
			}
		}
	}
	return false, conflictUnion
}

// linearConflict extracts the linear sub-part of atoms (every atom
// whose polynomial has degree <= 1 in every variable) and asks the
// shared linear backend whether it alone is already infeasible, the
// variable-bound pruning named in spec.md §4.5. Returns nil when no
// backend is configured, too few atoms are linear to be informative, or
// the linear part is feasible.
func (e *Engine) linearConflict(ctx context.Context, atoms []taggedAtom) map[poly.ID]bool {
	if e.backend == nil {
		return nil
	}
	var linAtoms []linear.LinearAtom
	origins := map[*poly.Constraint]map[poly.ID]bool{}
	for _, a := range atoms {
		if la, ok := linear.FromConstraint(e.pool, a.c); ok {
			linAtoms = append(linAtoms, la)
			origins[a.c] = a.origins
		}
	}
	if len(linAtoms) < 2 {
		return nil
	}
	feasible, _, err := e.backend.Feasible(ctx, linAtoms)
	if err != nil || feasible {
		return nil
	}
	conflict := e.backend.Conflict(linAtoms)
	if conflict == nil {
		return nil
	}
	out := map[poly.ID]bool{}
	for _, la := range conflict {
		for id := range origins[la.Origin] {
			out[id] = true
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// iterationsExhausted implements the termination-invariance safety net:
// it compares the current elimination step's (eliminated variable,
// conjunction size, chosen-candidate valuation) tuple against the
// previous step's, and aborts once the same tuple has recurred
// opts.MaxIterations times in a row. A genuinely terminating run never
// revisits the identical tuple this many times, so the only runs this
// can abort are ones that would otherwise loop; a MaxIterations of 0
// disables the check.
func (e *Engine) iterationsExhausted(x poly.VarID, atomCount int, chosen map[poly.VarID]TestCandidate) bool {
	if e.opts.MaxIterations <= 0 {
		return false
	}
	sig := fmt.Sprintf("%d:%d:%s", x, atomCount, valuationKey(chosen))
	if e.lastSig != nil && *e.lastSig == sig {
		e.sigRepeats++
	} else {
		e.sigRepeats = 1
		e.lastSig = &sig
	}
	if e.sigRepeats >= e.opts.MaxIterations {
		e.aborted = true
		return true
	}
	return false
}

// valuationKey builds a deterministic string identifying the current
// chosen candidates: polynomials are pool-interned, so the same
// symbolic value always yields the same pointer, making a pointer-based
// key exact without needing to compare polynomial contents.
func valuationKey(chosen map[poly.VarID]TestCandidate) string {
	keys := make([]poly.VarID, 0, len(chosen))
	for v := range chosen {
		keys = append(keys, v)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	var b strings.Builder
	for _, v := range keys {
		c := chosen[v]
		fmt.Fprintf(&b, "%d:%d:%p:%p:%p:%p;", v, c.Type, c.Value.P, c.Value.Q, c.Value.R, c.Value.S)
	}
	return b.String()
}

func firstInconsistent(atoms []taggedAtom) (map[poly.ID]bool, bool) {
	for _, a := range atoms {
		if a.c.Consistency() == poly.Inconsistent {
			return a.origins, true
		}
	}
	return nil, false
}

func cloneChosen(m map[poly.VarID]TestCandidate) map[poly.VarID]TestCandidate {
	out := make(map[poly.VarID]TestCandidate, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// substituteAtoms applies cand (drawn from a condition with origin set
// candOrigins) to every atom mentioning x, leaving atoms that don't
// mention x untouched, and returns the cross product of every atom's
// DNF as a disjunction of full conjunctions. refutedOrigins is non-nil
// when some atom's substitution collapsed to an empty DNF (cand itself
// is unconditionally inconsistent for that atom), short-circuiting the
// rest of the conjunction. ok is false when some atom's degree in x
// exceeds this package's square-root elimination (escalation case).
func (e *Engine) substituteAtoms(atoms []taggedAtom, x poly.VarID, cand TestCandidate, candOrigins map[poly.ID]bool) (disjuncts [][]taggedAtom, refutedOrigins map[poly.ID]bool, ok bool) {
	branches := [][]taggedAtom{nil}
	for _, sc := range cand.SideConditions {
		branches = crossAppend(branches, taggedAtom{c: sc, origins: candOrigins})
	}
	for _, a := range atoms {
		if a.c.Poly.DegreeIn(x) <= 0 {
			branches = crossAppend(branches, a)
			continue
		}
		res := Substitute(e.pool, a.c, x, cand)
		if res.Escalate {
			return nil, nil, false
		}
		if res.Refuted {
			return nil, unionOrigins(candOrigins, a.origins), true
		}
		var next [][]taggedAtom
		for _, conj := range res.DNF {
			tagged := make([]taggedAtom, len(conj))
			origin := unionOrigins(candOrigins, a.origins)
			for i, c := range conj {
				tagged[i] = taggedAtom{c: c, origins: origin}
			}
			next = append(next, tagged)
		}
		branches = crossProduct(branches, next)
	}
	return branches, nil, true
}

func crossAppend(branches [][]taggedAtom, extra taggedAtom) [][]taggedAtom {
	out := make([][]taggedAtom, len(branches))
	for i, b := range branches {
		out[i] = append(append([]taggedAtom{}, b...), extra)
	}
	return out
}

func crossProduct(a, b [][]taggedAtom) [][]taggedAtom {
	out := make([][]taggedAtom, 0, len(a)*len(b))
	for _, x := range a {
		for _, y := range b {
			out = append(out, append(append([]taggedAtom{}, x...), y...))
		}
	}
	return out
}

// condition is one atom conditionSources selected as a candidate
// source, paired with the origins its candidates should be tagged with.
type condition struct {
	c       *poly.Constraint
	origins map[poly.ID]bool
}

// conditionSources returns the atoms whose candidates must be tried to
// eliminate x completely. An equation pins x to a finite algebraic set,
// so once one is present its candidates alone are a complete test set
// and every other atom mentioning x only needs to be substituted into,
// never used as a candidate source (this is the "prefer equation"
// optimization over inequalities, and it's mandatory for termination,
// not a heuristic choice). opts.PreferEquationOverAll only affects which
// single equation is picked when several are available at once: true
// ranks them by degree/monomial-count/linearity (conditionScore), false
// just takes the lowest constraint id. Absent any equation, every
// inequality atom depending on x contributes its own root candidates,
// since the satisfying region's boundary can sit at any one of them.
func conditionSources(atoms []taggedAtom, x poly.VarID, opts Options) ([]condition, bool) {
	var equations, inequalities []taggedAtom
	for _, a := range atoms {
		if a.c.Poly.DegreeIn(x) <= 0 {
			continue
		}
		if a.c.Rel == poly.EQ {
			equations = append(equations, a)
		} else {
			inequalities = append(inequalities, a)
		}
	}
	if len(equations) > 0 {
		best := bestScored(equations, x, opts)
		return []condition{{c: best.c, origins: best.origins}}, true
	}
	if len(inequalities) == 0 {
		return nil, false
	}
	out := make([]condition, len(inequalities))
	for i, a := range inequalities {
		out[i] = condition{c: a.c, origins: a.origins}
	}
	return out, true
}

func bestScored(atoms []taggedAtom, x poly.VarID, opts Options) taggedAtom {
	if !opts.PreferEquationOverAll {
		best := atoms[0]
		for _, a := range atoms[1:] {
			if a.c.ID() < best.c.ID() {
				best = a
			}
		}
		return best
	}
	best := atoms[0]
	bestScore := conditionScore(best.c, x)
	for _, a := range atoms[1:] {
		score := conditionScore(a.c, x)
		if score < bestScore || (score == bestScore && a.c.ID() < best.c.ID()) {
			best, bestScore = a, score
		}
	}
	return best
}

func conditionScore(c *poly.Constraint, x poly.VarID) int {
	deg := c.Poly.DegreeIn(x)
	monomials := len(c.Poly.Terms())
	score := deg*1000 + monomials*10
	if c.Rel != poly.EQ {
		score += 5
	}
	if !hasOnlyLinearCoeffs(c.Poly, x) {
		score++
	}
	return score
}

func hasOnlyLinearCoeffs(p *poly.Polynomial, x poly.VarID) bool {
	for _, t := range p.Terms() {
		for v, e := range t.Exp {
			if v != x && e > 1 {
				return false
			}
		}
	}
	return true
}

// epsilonNudge is the fixed rational step used to materialize a witness
// for a PlusEpsilon candidate that isn't snapped to its exact rational
// boundary: small enough not to matter for the scenarios this package
// is scoped to, but not a substitute for an exact infinitesimal.
var epsilonNudge = big.NewRat(1, 1<<20)

// buildModel walks the elimination order in reverse (the last variable
// eliminated has a fully closed-form candidate; earlier ones depend on
// variables resolved after them) and evaluates each chosen candidate's
// symbolic value into a concrete real-algebraic number.
func (e *Engine) buildModel(order []poly.VarID, chosen map[poly.VarID]TestCandidate) Model {
	resolved := map[poly.VarID]algebraic.Number{}
	model := Model{}
	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		cand, ok := chosen[v]
		if !ok {
			continue
		}
		var val algebraic.Number
		switch cand.Type {
		case MinusInfinity, PlusInfinity:
			// No finite witness is recorded for a divergent candidate;
			// reconstructing one large/small enough to still satisfy
			// every constraint on this branch needs the branch's linear
			// bounds, which is left to the caller's own model repair.
			val = algebraic.FromRational(big.NewRat(0, 1))
		case PlusEpsilon:
			// Not snapped (see Options.SnapEpsilonToRational): the root
			// itself is excluded by the strict inequality that produced
			// this candidate, so the materialized witness nudges just
			// above it rather than reporting the boundary point exactly.
			val = e.evalCandidateValue(cand.Value, resolved)
			if q, ok := val.RationalValue(); ok {
				val = algebraic.FromRational(new(big.Rat).Add(q, epsilonNudge))
			}
		default:
			val = e.evalCandidateValue(cand.Value, resolved)
		}
		resolved[v] = val
		model[v] = val
	}
	return model
}

// evalCandidateValue evaluates (p + q*sqrt(r))/s once every variable it
// depends on has a resolved rational value. A candidate depending on a
// variable that itself resolved to an irrational value is outside this
// evaluator's scope (mirrors pkg/nra/cad's single-irrational-carrier
// limitation) and returns the degenerate rational 0.
func (e *Engine) evalCandidateValue(val SquareRootExpr, resolved map[poly.VarID]algebraic.Number) algebraic.Number {
	rats := map[poly.VarID]*big.Rat{}
	for v, n := range resolved {
		if q, ok := n.RationalValue(); ok {
			rats[v] = q
		}
	}
	pv, ok1 := evalConst(e.pool, val.P, rats)
	sv, ok2 := evalConst(e.pool, val.S, rats)
	if !ok1 || !ok2 || sv.Sign() == 0 {
		return algebraic.FromRational(big.NewRat(0, 1))
	}
	if val.IsRational() {
		return algebraic.FromRational(new(big.Rat).Quo(pv, sv))
	}
	qv, ok3 := evalConst(e.pool, val.Q, rats)
	rv, ok4 := evalConst(e.pool, val.R, rats)
	if !ok3 || !ok4 {
		return algebraic.FromRational(big.NewRat(0, 1))
	}
	// value is a root of s^2*y^2 - 2*p*s*y + (p^2 - q^2*r) = 0, obtained
	// by isolating sqrt(r) in (s*y - p) = q*sqrt(r) and squaring both
	// sides; the sign of q (since sqrt(r) >= 0) picks out which root.
	c2 := new(big.Rat).Mul(sv, sv)
	c1 := new(big.Rat).Mul(big.NewRat(-2, 1), new(big.Rat).Mul(pv, sv))
	c0 := new(big.Rat).Sub(new(big.Rat).Mul(pv, pv), new(big.Rat).Mul(qv, new(big.Rat).Mul(qv, rv)))
	roots := algebraic.IsolateRealRoots(algebraic.Univariate{c0, c1, c2})
	wantSign := qv.Sign()
	linear := algebraic.Univariate{new(big.Rat).Neg(pv), sv}
	for i := range roots {
		if sign, decided := roots[i].EvalPolySign(linear); decided && sign == wantSign {
			return roots[i]
		}
	}
	if len(roots) > 0 {
		return roots[0]
	}
	return algebraic.FromRational(big.NewRat(0, 1))
}

func evalConst(pool *poly.Pool, p *poly.Polynomial, rats map[poly.VarID]*big.Rat) (*big.Rat, bool) {
	if p == nil {
		return new(big.Rat), true
	}
	return pool.SubstituteRational(p, rats).ConstantValue()
}
