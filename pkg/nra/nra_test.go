package nra

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrat/nra/pkg/nra/poly"
)

func rat(n, d int64) *big.Rat { return big.NewRat(n, d) }

func TestSolverAssertAndCheckUnsat(t *testing.T) {
	s := NewSolver()
	x := s.Var("x")
	p := s.Pool()
	xsq := p.Mul(p.VarPoly(x), p.VarPoly(x))
	bad := p.InternConstraint(p.Add(xsq, p.One()), poly.EQ)
	s.Assert(bad)

	res, err := s.Check(context.Background())
	require.Error(t, err)
	assert.Equal(t, Unsat, res)

	var ns NotSatisfiable
	require.ErrorAs(t, err, &ns)
	require.Len(t, ns, 1)
	assert.Equal(t, bad.ID(), ns[0].ID())

	core, cerr := s.UnsatCore()
	require.NoError(t, cerr)
	require.Len(t, core, 1)

	_, merr := s.Model()
	assert.ErrorIs(t, merr, ErrNoModel)
}

func TestSolverAssertAndCheckSat(t *testing.T) {
	s := NewSolver()
	x := s.Var("x")
	p := s.Pool()
	eq := p.InternConstraint(p.Sub(p.Mul(p.VarPoly(x), p.VarPoly(x)), p.Const(rat(2, 1))), poly.EQ)
	pos := p.InternConstraint(p.VarPoly(x), poly.GREATER)
	s.Assert(eq)
	s.Assert(pos)

	res, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Sat, res)

	model, merr := s.Model()
	require.NoError(t, merr)
	require.Contains(t, model, x)

	_, cerr := s.UnsatCore()
	assert.ErrorIs(t, cerr, ErrNoCore)
}

// Push/Pop is a group action: popping back to before a push restores
// exactly the prior assertion set, so a constraint made infeasible only
// inside the pushed frame stops mattering once popped.
func TestSolverPushPopRestoresFeasibility(t *testing.T) {
	s := NewSolver()
	x := s.Var("x")
	p := s.Pool()
	s.Assert(p.InternConstraint(p.VarPoly(x), poly.GEQ))

	res, err := s.Check(context.Background())
	require.NoError(t, err)
	require.Equal(t, Sat, res)

	s.Push()
	s.Assert(p.InternConstraint(p.Add(p.VarPoly(x), p.One()), poly.LEQ))
	res, err = s.Check(context.Background())
	require.Error(t, err)
	assert.Equal(t, Unsat, res)

	s.Pop()
	res, err = s.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Sat, res)
}

func TestSolverIntVarBranchAndBound(t *testing.T) {
	s := NewSolver()
	x := s.IntVar("x")
	p := s.Pool()
	s.Assert(p.InternConstraint(p.Sub(p.ScaleConst(p.VarPoly(x), rat(2, 1)), p.Const(rat(5, 1))), poly.EQ))

	res, err := s.Check(context.Background())
	require.Error(t, err)
	assert.Equal(t, Unsat, res)
}
