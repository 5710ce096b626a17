package es

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrat/nra/pkg/nra/formula"
	"github.com/polyrat/nra/pkg/nra/poly"
)

// x = 1 AND x + y = 3 chains into y = 2 by a second fixed-point round,
// leaving nothing behind but both substitutions recorded.
func TestEliminateChainsLinearEqualitiesToFixedPoint(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	x := pool.Var("x")
	y := pool.Var("y")

	xEq1 := arena.Constraint(pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.One()), poly.EQ))
	xPlusYEq3 := arena.Constraint(pool.InternConstraint(pool.Sub(pool.Add(pool.VarPoly(x), pool.VarPoly(y)), pool.Const(big.NewRat(3, 1))), poly.EQ))

	f := arena.And(xEq1, xPlusYEq3)
	result, subs := Eliminate(arena, f)

	assert.Equal(t, formula.TRUE, arena.Kind(result))
	require.Contains(t, subs.Arith, x)
	require.Contains(t, subs.Arith, y)
	xv, ok := subs.Arith[x].ConstantValue()
	require.True(t, ok)
	assert.Equal(t, 0, xv.Cmp(big.NewRat(1, 1)))
	yv, ok := subs.Arith[y].ConstantValue()
	require.True(t, ok)
	assert.Equal(t, 0, yv.Cmp(big.NewRat(2, 1)))
}

// x = 1 AND x = 2 substitutes the second equation down to 1 = 2, an
// inconsistent constant constraint, short-circuiting to False.
func TestEliminateContradictoryEqualitiesIsFalse(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	x := pool.Var("x")

	xEq1 := arena.Constraint(pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.One()), poly.EQ))
	xEq2 := arena.Constraint(pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.Const(big.NewRat(2, 1))), poly.EQ))

	f := arena.And(xEq1, xEq2)
	result, _ := Eliminate(arena, f)

	assert.Equal(t, formula.FALSE, arena.Kind(result))
}

// A non-equality atom untouched by any substitution is passed through
// unchanged rather than rebuilt.
func TestEliminatePassesThroughUnrelatedInequality(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	x := pool.Var("x")
	y := pool.Var("y")

	xEq1 := arena.Constraint(pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.One()), poly.EQ))
	yGeq0 := arena.Constraint(pool.InternConstraint(pool.VarPoly(y), poly.GEQ))

	f := arena.And(xEq1, yGeq0)
	result, subs := Eliminate(arena, f)

	assert.Equal(t, formula.CONSTRAINT, arena.Kind(result))
	assert.Equal(t, yGeq0, result)
	assert.Contains(t, subs.Arith, x)
}

// ITE(x=1, y=x+5, y=0): the "then" branch sees x substituted to 1
// (y=6), the "else" branch is untouched by it, and the substitution
// does not leak into the caller's own Substitutions.
func TestEliminateIteScopesConditionSubstitutionToThenBranch(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	x := pool.Var("x")
	y := pool.Var("y")

	cond := arena.Constraint(pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.One()), poly.EQ))
	then := arena.Constraint(pool.InternConstraint(pool.Sub(pool.VarPoly(y), pool.Add(pool.VarPoly(x), pool.Const(big.NewRat(5, 1)))), poly.EQ))
	els := arena.Constraint(pool.InternConstraint(pool.VarPoly(y), poly.EQ))

	f := arena.Ite(cond, then, els)
	result, subs := Eliminate(arena, f)

	require.Equal(t, formula.ITE, arena.Kind(result))
	children := arena.Children(result)
	require.Len(t, children, 3)

	thenConstraint, ok := arena.ConstraintOf(children[1])
	require.True(t, ok)
	subVar, _, ok := extractSubstitution(pool, thenConstraint)
	require.True(t, ok)
	assert.Equal(t, y, subVar)

	elseConstraint, ok := arena.ConstraintOf(children[2])
	require.True(t, ok)
	assert.True(t, elseConstraint.Poly.DegreeIn(x) <= 0)

	assert.NotContains(t, subs.Arith, x)
}

// A Boolean atom eliminated to True inside a then-branch is not implied
// outside it: the same atom appearing in a sibling conjunct still needs
// its own decision.
func TestEliminateIteBooleanScopingDoesNotLeak(t *testing.T) {
	pool := poly.NewPool()
	arena := formula.NewArena(pool)
	x := pool.Var("x")

	cond := arena.Constraint(pool.InternConstraint(pool.VarPoly(x), poly.GEQ))
	then := arena.True()
	els := arena.False()

	ite := arena.Ite(cond, then, els)
	f := arena.And(ite, cond)
	result, _ := Eliminate(arena, f)

	assert.NotEqual(t, formula.TRUE, arena.Kind(result))
}
