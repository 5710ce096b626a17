package vs

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrat/nra/pkg/nra/linear"
	"github.com/polyrat/nra/pkg/nra/poly"
)

func newTestEngine(t *testing.T, pool *poly.Pool, integer map[poly.VarID]bool) *Engine {
	backend, err := linear.NewBackend()
	require.NoError(t, err)
	return NewEngine(pool, backend, integer, DefaultOptions())
}

// x*y = 1 AND x + y = 0 has no real solution: substituting y = -x into
// x*y=1 gives -x^2=1, impossible over the reals.
func TestCheckProductAndSumIsZeroUnsat(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	y := pool.Var("y")

	c1 := pool.InternConstraint(pool.Sub(pool.Mul(pool.VarPoly(x), pool.VarPoly(y)), pool.One()), poly.EQ)
	c2 := pool.InternConstraint(pool.Add(pool.VarPoly(x), pool.VarPoly(y)), poly.EQ)

	e := newTestEngine(t, pool, nil)
	result, model, mis := e.Check(context.Background(), []*poly.Constraint{c1, c2}, []poly.VarID{x, y})

	assert.Equal(t, Unsat, result)
	assert.Nil(t, model)
	require.NotEmpty(t, mis)
	ids := map[poly.ID]bool{}
	for _, c := range mis {
		ids[c.ID()] = true
	}
	assert.True(t, ids[c1.ID()])
	assert.True(t, ids[c2.ID()])
}

// 3x - 5y = 1 AND x + y = 0 AND x >= 0 has the unique real solution
// x=1/8, y=-1/8, which is not an integer point.
func TestCheckIntegerLinearSystemUnsat(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	y := pool.Var("y")

	threeX5Y := pool.Sub(pool.ScaleConst(pool.VarPoly(x), big.NewRat(3, 1)), pool.ScaleConst(pool.VarPoly(y), big.NewRat(5, 1)))
	c1 := pool.InternConstraint(pool.Sub(threeX5Y, pool.One()), poly.EQ)
	c2 := pool.InternConstraint(pool.Add(pool.VarPoly(x), pool.VarPoly(y)), poly.EQ)
	c3 := pool.InternConstraint(pool.VarPoly(x), poly.GEQ)

	integer := map[poly.VarID]bool{x: true, y: true}
	e := newTestEngine(t, pool, integer)
	result, model, _ := e.Check(context.Background(), []*poly.Constraint{c1, c2, c3}, []poly.VarID{x, y})

	assert.Equal(t, Unsat, result)
	assert.Nil(t, model)
}

// Without the integrality requirement the same system is satisfiable
// over the rationals at x=1/8, y=-1/8.
func TestCheckSameLinearSystemSatOverRationals(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	y := pool.Var("y")

	threeX5Y := pool.Sub(pool.ScaleConst(pool.VarPoly(x), big.NewRat(3, 1)), pool.ScaleConst(pool.VarPoly(y), big.NewRat(5, 1)))
	c1 := pool.InternConstraint(pool.Sub(threeX5Y, pool.One()), poly.EQ)
	c2 := pool.InternConstraint(pool.Add(pool.VarPoly(x), pool.VarPoly(y)), poly.EQ)
	c3 := pool.InternConstraint(pool.VarPoly(x), poly.GEQ)

	e := newTestEngine(t, pool, nil)
	result, model, _ := e.Check(context.Background(), []*poly.Constraint{c1, c2, c3}, []poly.VarID{x, y})

	require.Equal(t, Sat, result)
	xv, ok := model[x].RationalValue()
	require.True(t, ok)
	assert.Equal(t, 0, xv.Cmp(big.NewRat(1, 8)))
	yv, ok := model[y].RationalValue()
	require.True(t, ok)
	assert.Equal(t, 0, yv.Cmp(big.NewRat(-1, 8)))
}

// A purely linear system (degree 1 in every variable) is fully decided
// by GenerateCandidates' degree-1 branch alone; GenerateCandidates
// never sees a degree >= 3 polynomial, so it never reports unsupported.
func TestGenerateCandidatesNeverEscalatesOnLinearSystem(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	c := pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.One()), poly.EQ)
	_, supported := GenerateCandidates(pool, c, x, false, DefaultOptions())
	assert.True(t, supported)
}

// x^2 + 1 > 0 has negative discriminant, so the equality x^2+1=0 is
// refuted, but the strict inequality itself is satisfied everywhere.
func TestCheckQuadraticNegativeDiscriminantStrictInequalitySat(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	c := pool.InternConstraint(pool.Add(pool.Mul(pool.VarPoly(x), pool.VarPoly(x)), pool.One()), poly.GREATER)

	e := newTestEngine(t, pool, nil)
	result, _, _ := e.Check(context.Background(), []*poly.Constraint{c}, []poly.VarID{x})
	assert.Equal(t, Sat, result)
}

func TestCheckQuadraticNegativeDiscriminantEqualityUnsat(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	c := pool.InternConstraint(pool.Add(pool.Mul(pool.VarPoly(x), pool.VarPoly(x)), pool.One()), poly.EQ)

	e := newTestEngine(t, pool, nil)
	result, _, mis := e.Check(context.Background(), []*poly.Constraint{c}, []poly.VarID{x})
	assert.Equal(t, Unsat, result)
	require.Len(t, mis, 1)
	assert.Equal(t, c.ID(), mis[0].ID())
}

func TestConditionSourcesPicksSoleEquationOverInequalities(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	ineq := pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.One()), poly.GEQ)
	eq := pool.InternConstraint(pool.Mul(pool.VarPoly(x), pool.VarPoly(x)), poly.EQ)

	atoms := []taggedAtom{
		{c: ineq, origins: map[poly.ID]bool{ineq.ID(): true}},
		{c: eq, origins: map[poly.ID]bool{eq.ID(): true}},
	}
	sources, found := conditionSources(atoms, x, DefaultOptions())
	require.True(t, found)
	require.Len(t, sources, 1)
	assert.Equal(t, eq.ID(), sources[0].c.ID())
}

func TestConditionSourcesUsesEveryInequalityWhenNoEquation(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	lower := pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.One()), poly.GEQ)
	upper := pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.Const(big.NewRat(5, 1))), poly.LEQ)

	atoms := []taggedAtom{
		{c: lower, origins: map[poly.ID]bool{lower.ID(): true}},
		{c: upper, origins: map[poly.ID]bool{upper.ID(): true}},
	}
	sources, found := conditionSources(atoms, x, DefaultOptions())
	require.True(t, found)
	require.Len(t, sources, 2)
}
