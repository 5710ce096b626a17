package dispatch

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrat/nra/pkg/nra/formula"
	"github.com/polyrat/nra/pkg/nra/poly"
)

func rat(n, d int64) *big.Rat { return big.NewRat(n, d) }

// scenario 1: x^2 + 1 = 0 is unsatisfiable over the reals.
func TestCheckXSquaredPlusOneUnsat(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	x := pool.Var("x")
	xsq := pool.Mul(pool.VarPoly(x), pool.VarPoly(x))
	constr := pool.InternConstraint(pool.Add(xsq, pool.One()), poly.EQ)

	d, err := NewDispatcher(pool, arena)
	require.NoError(t, err)

	res, model, core, err := d.Check(context.Background(), arena.Constraint(constr))
	require.NoError(t, err)
	require.Equal(t, Unsat, res)
	assert.Nil(t, model)
	require.Len(t, core, 1)
	assert.Equal(t, constr.ID(), core[0].ID())
}

// scenario 2: x^2 - 2 = 0 and x > 0 is satisfiable, at x = sqrt(2).
func TestCheckXSquaredMinusTwoPositiveSat(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	x := pool.Var("x")
	xsq := pool.Mul(pool.VarPoly(x), pool.VarPoly(x))
	eq := pool.InternConstraint(pool.Sub(xsq, pool.Const(rat(2, 1))), poly.EQ)
	pos := pool.InternConstraint(pool.VarPoly(x), poly.GREATER)

	d, err := NewDispatcher(pool, arena)
	require.NoError(t, err)

	f := arena.And(arena.Constraint(eq), arena.Constraint(pos))
	res, model, core, err := d.Check(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, Sat, res)
	assert.Nil(t, core)
	require.Contains(t, model, x)
	val := model[x]
	assert.Equal(t, -1, val.CompareRational(rat(3, 2)))
	assert.Equal(t, 1, val.CompareRational(rat(14, 10)))
}

// scenario 3: x*y = 1 and x + y = 0 is unsatisfiable (x = -y forces
// -y^2 = 1, impossible over the reals).
func TestCheckHyperbolaAndAntidiagonalUnsat(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	x := pool.Var("x")
	y := pool.Var("y")
	xy := pool.InternConstraint(pool.Sub(pool.Mul(pool.VarPoly(x), pool.VarPoly(y)), pool.One()), poly.EQ)
	sum := pool.InternConstraint(pool.Add(pool.VarPoly(x), pool.VarPoly(y)), poly.EQ)

	d, err := NewDispatcher(pool, arena)
	require.NoError(t, err)

	f := arena.And(arena.Constraint(xy), arena.Constraint(sum))
	res, model, core, err := d.Check(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, Unsat, res)
	assert.Nil(t, model)
	assert.NotEmpty(t, core)
}

// scenario 4: x^2 + y^2 <= 1 and x + y >= 2 is unsatisfiable; the unit
// disk and the half-plane past the line x+y=2 never meet.
func TestCheckDiskAndHalfplaneUnsat(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	x := pool.Var("x")
	y := pool.Var("y")
	xsq := pool.Mul(pool.VarPoly(x), pool.VarPoly(x))
	ysq := pool.Mul(pool.VarPoly(y), pool.VarPoly(y))
	disk := pool.InternConstraint(pool.Sub(pool.Add(xsq, ysq), pool.One()), poly.LEQ)
	sum := pool.InternConstraint(pool.Sub(pool.Add(pool.VarPoly(x), pool.VarPoly(y)), pool.Const(rat(2, 1))), poly.GEQ)

	d, err := NewDispatcher(pool, arena)
	require.NoError(t, err)

	f := arena.And(arena.Constraint(disk), arena.Constraint(sum))
	res, model, core, err := d.Check(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, Unsat, res)
	assert.Nil(t, model)
	assert.Len(t, core, 2)
}

// scenario 5: 2x = 4 over the integers is satisfiable at x = 2; no
// branch-and-bound split is needed since the rational witness is
// already integral.
func TestCheckIntegerDivisibleByGCDSat(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	x := pool.Var("x")
	eq := pool.InternConstraint(pool.Sub(pool.ScaleConst(pool.VarPoly(x), rat(2, 1)), pool.Const(rat(4, 1))), poly.EQ)

	d, err := NewDispatcher(pool, arena, WithIntegerVars([]poly.VarID{x}))
	require.NoError(t, err)

	res, model, core, err := d.Check(context.Background(), arena.Constraint(eq))
	require.NoError(t, err)
	require.Equal(t, Sat, res)
	assert.Nil(t, core)
	require.Contains(t, model, x)
	v, ok := model[x].RationalValue()
	require.True(t, ok)
	assert.Equal(t, 0, v.Cmp(rat(2, 1)))
}

// scenario 5b: 3x - 5y = 1 and x + y = 0 and x >= 0 over the integers
// is unsatisfiable. The system's unique real solution is x=1/8, y=-1/8;
// eliminating either variable first reduces the other equation to a
// pure constant candidate whose numerator doesn't vanish modulo the
// coefficient gcd (8 does not divide 1), so this must be refuted by
// divisibility-by-gcd pruning rather than by branch-and-bound (there is
// no fractional model for finishSat to split on: VS's own elimination
// already proves the conjunction has no integer point).
func TestCheckIntegerNotDivisibleByGCDUnsat(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	x := pool.Var("x")
	y := pool.Var("y")
	threeX5Y := pool.Sub(pool.ScaleConst(pool.VarPoly(x), rat(3, 1)), pool.ScaleConst(pool.VarPoly(y), rat(5, 1)))
	eq1 := pool.InternConstraint(pool.Sub(threeX5Y, pool.One()), poly.EQ)
	eq2 := pool.InternConstraint(pool.Add(pool.VarPoly(x), pool.VarPoly(y)), poly.EQ)
	nonneg := pool.InternConstraint(pool.VarPoly(x), poly.GEQ)

	d, err := NewDispatcher(pool, arena, WithIntegerVars([]poly.VarID{x, y}))
	require.NoError(t, err)

	f := arena.And(arena.And(arena.Constraint(eq1), arena.Constraint(eq2)), arena.Constraint(nonneg))
	res, model, _, err := d.Check(context.Background(), f)
	require.NoError(t, err)
	assert.Nil(t, model)
	assert.Equal(t, Unsat, res)
}

// scenario 6: (x-1)(x-2)(x-3) = 0 and x != 2 is satisfiable at x = 1 or
// x = 3, once the disequality rules out the middle root.
func TestCheckCubicRootsExcludingMiddleSat(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	x := pool.Var("x")
	xp := pool.VarPoly(x)
	f1 := pool.Sub(xp, pool.One())
	f2 := pool.Sub(xp, pool.Const(rat(2, 1)))
	f3 := pool.Sub(xp, pool.Const(rat(3, 1)))
	cubic := pool.Mul(pool.Mul(f1, f2), f3)
	roots := pool.InternConstraint(cubic, poly.EQ)
	notTwo := pool.InternConstraint(pool.Sub(xp, pool.Const(rat(2, 1))), poly.NEQ)

	d, err := NewDispatcher(pool, arena)
	require.NoError(t, err)

	f := arena.And(arena.Constraint(roots), arena.Constraint(notTwo))
	res, model, core, err := d.Check(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, Sat, res)
	assert.Nil(t, core)
	require.Contains(t, model, x)
	v, ok := model[x].RationalValue()
	require.True(t, ok)
	assert.NotEqual(t, 0, v.Cmp(rat(2, 1)))
}

// The empty conjunction (True) is vacuously satisfiable.
func TestCheckEmptyConjunctionSat(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)

	d, err := NewDispatcher(pool, arena)
	require.NoError(t, err)

	res, model, core, err := d.Check(context.Background(), arena.True())
	require.NoError(t, err)
	assert.Equal(t, Sat, res)
	assert.NotNil(t, model)
	assert.Nil(t, core)
}

// A single constant-false atom (1 = 0, folded by the preprocessor) is
// unsatisfiable with no core to report: it is unsatisfiable on its
// own, not as a conjunction of several constraints.
func TestCheckConstantFalseAtomUnsat(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	bad := pool.InternConstraint(pool.One(), poly.EQ)

	d, err := NewDispatcher(pool, arena)
	require.NoError(t, err)

	res, model, _, err := d.Check(context.Background(), arena.Constraint(bad))
	require.NoError(t, err)
	assert.Equal(t, Unsat, res)
	assert.Nil(t, model)
}

// A quantified formula is malformed input: the dispatcher only
// consumes the quantifier-free core.
func TestCheckQuantifiedFormulaIsMalformedInput(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	x := pool.Var("x")
	atom := pool.InternConstraint(pool.VarPoly(x), poly.GEQ)

	d, err := NewDispatcher(pool, arena)
	require.NoError(t, err)

	f := arena.Exists([]poly.VarID{x}, arena.Constraint(atom))
	_, _, _, err = d.Check(context.Background(), f)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

// An uninterpreted equality leaf is outside the quantifier-free
// NRA/NIA core and is rejected as an unsupported construct rather than
// silently ignored.
func TestCheckUninterpretedLeafIsUnsupportedConstruct(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)

	f := arena.OpaqueLeaf(formula.UEQ, "f(a) = f(b)")
	d, err := NewDispatcher(pool, arena)
	require.NoError(t, err)

	_, _, _, err = d.Check(context.Background(), f)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedConstruct)
}

// OR is genuine Boolean structure: checkBoolean enumerates both
// disjuncts, and the first satisfiable one wins even though x=-5 alone
// (the second disjunct) is unsatisfiable with x>=0.
func TestCheckDisjunctionPicksSatisfiableDisjunct(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	x := pool.Var("x")
	xGe0 := pool.InternConstraint(pool.VarPoly(x), poly.GEQ)
	xEq1 := pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.One()), poly.EQ)
	xEqNeg5 := pool.InternConstraint(pool.Add(pool.VarPoly(x), pool.Const(rat(5, 1))), poly.EQ)

	d, err := NewDispatcher(pool, arena)
	require.NoError(t, err)

	disj := arena.Or(arena.Constraint(xEq1), arena.Constraint(xEqNeg5))
	f := arena.And(arena.Constraint(xGe0), disj)
	res, model, core, err := d.Check(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, Sat, res)
	assert.Nil(t, core)
	require.Contains(t, model, x)
	v, ok := model[x].RationalValue()
	require.True(t, ok)
	assert.Equal(t, 0, v.Cmp(rat(1, 1)))
}

// ITE over two branches that are each unsatisfiable on their own
// is unsatisfiable regardless of which branch is taken.
func TestCheckIteBothBranchesUnsat(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	x := pool.Var("x")
	cond := pool.InternConstraint(pool.VarPoly(x), poly.GEQ)
	thenBad := pool.InternConstraint(pool.One(), poly.EQ)
	elseBad := pool.InternConstraint(pool.Const(rat(2, 1)), poly.EQ)

	d, err := NewDispatcher(pool, arena)
	require.NoError(t, err)

	f := arena.Ite(arena.Constraint(cond), arena.Constraint(thenBad), arena.Constraint(elseBad))
	res, model, _, err := d.Check(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, Unsat, res)
	assert.Nil(t, model)
}
