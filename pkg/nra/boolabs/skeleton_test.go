package boolabs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polyrat/nra/pkg/nra/formula"
	"github.com/polyrat/nra/pkg/nra/poly"
)

func TestPropositionallyUnsatDetectsContradiction(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	c := pool.InternConstraint(pool.VarPoly(x), poly.EQ)
	arena := formula.NewArena(pool)

	leaf := arena.Constraint(c)
	f := arena.And(leaf, arena.Not(leaf))

	sk := Compile(arena, f)
	assert.True(t, sk.PropositionallyUnsat())
}

func TestPropositionallySatDoesNotShortCircuit(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	y := pool.Var("y")
	c1 := pool.InternConstraint(pool.VarPoly(x), poly.EQ)
	c2 := pool.InternConstraint(pool.VarPoly(y), poly.EQ)
	arena := formula.NewArena(pool)

	f := arena.Or(arena.Constraint(c1), arena.Constraint(c2))
	sk := Compile(arena, f)
	assert.False(t, sk.PropositionallyUnsat())
}

func TestEnumerateModelsCoversOrDisjuncts(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	y := pool.Var("y")
	c1 := pool.InternConstraint(pool.VarPoly(x), poly.EQ)
	c2 := pool.InternConstraint(pool.VarPoly(y), poly.EQ)
	arena := formula.NewArena(pool)

	l1, l2 := arena.Constraint(c1), arena.Constraint(c2)
	f := arena.Or(l1, l2)
	sk := Compile(arena, f)

	var models []map[formula.ID]bool
	EnumerateModels(sk, func(m map[formula.ID]bool) bool {
		models = append(models, m)
		return true
	})
	assert.NotEmpty(t, models)
	for _, m := range models {
		assert.True(t, m[l1] || m[l2])
	}
}
