package formula

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrat/nra/pkg/nra/poly"
)

func TestStructuralSharing(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	c := pool.InternConstraint(pool.VarPoly(x), poly.EQ)
	a := NewArena(pool)

	f1 := a.And(a.Constraint(c), a.True())
	f2 := a.And(a.Constraint(c), a.True())
	assert.Equal(t, f1, f2, "identical connective/children must share an id")
}

func TestNotCollapsesDoubleNegation(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	c := pool.InternConstraint(pool.VarPoly(x), poly.EQ)
	a := NewArena(pool)

	leaf := a.Constraint(c)
	assert.Equal(t, leaf, a.Not(a.Not(leaf)))
	assert.Equal(t, a.False(), a.Not(a.True()))
}

func TestFlattenConjunction(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	y := pool.Var("y")
	c1 := pool.InternConstraint(pool.VarPoly(x), poly.GEQ)
	c2 := pool.InternConstraint(pool.VarPoly(y), poly.LEQ)
	a := NewArena(pool)

	conj := a.And(a.Constraint(c1), a.Constraint(c2), a.True())
	got, ok := FlattenConjunction(a, conj)
	require.True(t, ok)
	assert.ElementsMatch(t, []*poly.Constraint{c1, c2}, got)

	disj := a.Or(a.Constraint(c1), a.Constraint(c2))
	_, ok = FlattenConjunction(a, disj)
	assert.False(t, ok)
}

func TestFlattenConjunctionWithNegatedLiteral(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	c := pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.Const(big.NewRat(2, 1))), poly.EQ)
	a := NewArena(pool)

	conj := a.And(a.Not(a.Constraint(c)))
	got, ok := FlattenConjunction(a, conj)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, poly.NEQ, got[0].Rel)
}
