package cad

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrat/nra/pkg/nra/poly"
)

// scenario 1: x^2 + 1 = 0 is unsatisfiable over the reals.
func TestCheckXSquaredPlusOneUnsat(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	one := pool.Const(big.NewRat(1, 1))
	xsq := pool.Mul(pool.VarPoly(x), pool.VarPoly(x))
	lhs := pool.Add(xsq, one)
	constr := pool.InternConstraint(lhs, poly.EQ)

	core := NewCore(pool)
	core.Assert(constr)
	result, model, mis := core.Check(context.Background())

	require.Equal(t, Unsat, result)
	assert.Nil(t, model)
	require.Len(t, mis, 1)
	assert.Equal(t, constr.ID(), mis[0].ID())

	// The refutation is a genuine local one-cell certificate, not just
	// the MIS: x^2+1=0 has no real roots, so the cell that falsifies it
	// spans the entire real line.
	assert.False(t, core.Refutation.OnRoot)
	assert.True(t, core.Refutation.Lower.Infinite)
	assert.True(t, core.Refutation.Upper.Infinite)
}

// scenario 2: x^2 - 2 = 0 and x > 0 is satisfiable, at x = sqrt(2).
func TestCheckXSquaredMinusTwoPositiveSat(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	two := pool.Const(big.NewRat(2, 1))
	xsq := pool.Mul(pool.VarPoly(x), pool.VarPoly(x))
	eq := pool.InternConstraint(pool.Sub(xsq, two), poly.EQ)
	pos := pool.InternConstraint(pool.VarPoly(x), poly.GREATER)

	core := NewCore(pool)
	core.Assert(eq)
	core.Assert(pos)
	result, model, mis := core.Check(context.Background())

	require.Equal(t, Sat, result)
	assert.Nil(t, mis)
	require.Contains(t, model, x)
	val := model[x]
	lo, hi := val.Interval()
	assert.True(t, lo.Sign() > 0)
	assert.True(t, hi.Cmp(big.NewRat(2, 1)) <= 0)
	// sqrt(2) is strictly between 1.4 and 1.5.
	assert.Equal(t, -1, val.CompareRational(big.NewRat(3, 2)))
	assert.Equal(t, 1, val.CompareRational(big.NewRat(14, 10)))
}

// scenario 4: x^2 + y^2 <= 1 and x + y >= 2 is unsatisfiable; both
// constraints must appear in the MIS under GREEDY and HYBRID.
func TestCheckDiskAndHalfplaneUnsat(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	y := pool.Var("y")
	one := pool.Const(big.NewRat(1, 1))
	two := pool.Const(big.NewRat(2, 1))
	xsq := pool.Mul(pool.VarPoly(x), pool.VarPoly(x))
	ysq := pool.Mul(pool.VarPoly(y), pool.VarPoly(y))
	disk := pool.InternConstraint(pool.Sub(pool.Add(xsq, ysq), one), poly.LEQ)
	sum := pool.Sub(pool.Add(pool.VarPoly(x), pool.VarPoly(y)), two)
	half := pool.InternConstraint(sum, poly.GEQ)

	for _, policy := range []MISPolicy{Greedy, Hybrid} {
		core := NewCore(pool)
		core.MISPolicy = policy
		core.Assert(disk)
		core.Assert(half)
		result, model, mis := core.Check(context.Background())

		require.Equal(t, Unsat, result, "policy %v", policy)
		assert.Nil(t, model)
		require.Len(t, mis, 2, "policy %v", policy)
	}
}

// scenario 6: (x-1)(x-2)(x-3) = 0 and x != 2 is satisfiable at x in {1, 3}.
func TestCheckCubicExcludingRootSat(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	one := pool.Const(big.NewRat(1, 1))
	two := pool.Const(big.NewRat(2, 1))
	three := pool.Const(big.NewRat(3, 1))
	xm1 := pool.Sub(pool.VarPoly(x), one)
	xm2 := pool.Sub(pool.VarPoly(x), two)
	xm3 := pool.Sub(pool.VarPoly(x), three)
	cubic := pool.Mul(pool.Mul(xm1, xm2), xm3)
	eq := pool.InternConstraint(cubic, poly.EQ)
	neq := pool.InternConstraint(pool.Sub(pool.VarPoly(x), two), poly.NEQ)

	core := NewCore(pool)
	core.Assert(eq)
	core.Assert(neq)
	result, model, mis := core.Check(context.Background())

	require.Equal(t, Sat, result)
	assert.Nil(t, mis)
	require.Contains(t, model, x)
	q, ok := model[x].RationalValue()
	require.True(t, ok)
	assert.True(t, q.Cmp(big.NewRat(2, 1)) != 0)
	assert.True(t, q.Cmp(big.NewRat(1, 1)) == 0 || q.Cmp(big.NewRat(3, 1)) == 0)
}

func TestPushPopRestoresConstraintSet(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	one := pool.Const(big.NewRat(1, 1))
	xsq := pool.Mul(pool.VarPoly(x), pool.VarPoly(x))
	unsatC := pool.InternConstraint(pool.Add(xsq, one), poly.EQ)

	core := NewCore(pool)
	result, _, _ := core.Check(context.Background())
	require.Equal(t, Sat, result) // empty conjunction

	core.Push()
	core.Assert(unsatC)
	result, _, _ = core.Check(context.Background())
	require.Equal(t, Unsat, result)

	core.Pop()
	result, _, _ = core.Check(context.Background())
	require.Equal(t, Sat, result)
}
