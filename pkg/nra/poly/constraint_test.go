package poly

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignNormalizationSharesRepresentative(t *testing.T) {
	pool := NewPool()
	x := pool.Var("x")
	lhs := pool.VarPoly(x)
	neg := pool.Neg(lhs)

	c1 := pool.InternConstraint(lhs, EQ)
	c2 := pool.InternConstraint(neg, EQ)
	assert.Same(t, c1, c2, "x = 0 and -x = 0 must share a representative")
}

func TestSignNormalizationMirrorsInequalities(t *testing.T) {
	pool := NewPool()
	x := pool.Var("x")
	lhs := pool.VarPoly(x)
	neg := pool.Neg(lhs)

	// x < 0  <=>  -x > 0, so both should canonicalize to the same
	// (poly, relation) pair.
	c1 := pool.InternConstraint(lhs, LESS)
	c2 := pool.InternConstraint(neg, GREATER)
	assert.Same(t, c1, c2)
}

func TestConsistencyOfConstantConstraints(t *testing.T) {
	pool := NewPool()
	zero := pool.Zero()
	one := pool.Const(big.NewRat(1, 1))

	assert.Equal(t, Tautological, pool.InternConstraint(zero, EQ).Consistency())
	assert.Equal(t, Inconsistent, pool.InternConstraint(one, EQ).Consistency())
	assert.Equal(t, Tautological, pool.InternConstraint(one, GREATER).Consistency())

	x := pool.Var("x")
	assert.Equal(t, Undecided, pool.InternConstraint(pool.VarPoly(x), EQ).Consistency())
}

func TestNegateRoundTrips(t *testing.T) {
	pool := NewPool()
	x := pool.Var("x")
	c := pool.InternConstraint(pool.VarPoly(x), LESS)
	notC := pool.Negate(c)
	assert.Equal(t, GEQ, notC.Rel)
	assert.Same(t, c, pool.Negate(notC))
}

func TestEvalRational(t *testing.T) {
	pool := NewPool()
	x := pool.Var("x")
	c := pool.InternConstraint(pool.Sub(pool.Pow(pool.VarPoly(x), 2), pool.Const(big.NewRat(4, 1))), EQ)
	assert.True(t, c.EvalRational(map[VarID]*big.Rat{x: big.NewRat(2, 1)}))
	assert.False(t, c.EvalRational(map[VarID]*big.Rat{x: big.NewRat(3, 1)}))
}
