package vs

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrat/nra/pkg/nra/poly"
)

// x > 1: the strict lower bound's PLUS_EPSILON candidate is exactly
// rational (root 1), so the two SnapEpsilonToRational interpretations
// are exercised directly against GenerateCandidates' output.
func TestGenerateCandidatesSnapEpsilonToRationalCollapsesType(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	c := pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.One()), poly.GREATER)

	notSnapped, ok := GenerateCandidates(pool, c, x, false, Options{})
	require.True(t, ok)
	require.NotEmpty(t, notSnapped)
	assert.Equal(t, PlusEpsilon, notSnapped[0].Type)

	snapped, ok := GenerateCandidates(pool, c, x, false, Options{SnapEpsilonToRational: true})
	require.True(t, ok)
	require.NotEmpty(t, snapped)
	assert.Equal(t, Normal, snapped[0].Type)
}

// A non-strict relation never produces a PLUS_EPSILON candidate in the
// first place, regardless of the option: there is no boundary to push
// past.
func TestGenerateCandidatesNonStrictRelationNeverEpsilon(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	c := pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.One()), poly.GEQ)

	cands, ok := GenerateCandidates(pool, c, x, false, Options{})
	require.True(t, ok)
	require.NotEmpty(t, cands)
	assert.Equal(t, Normal, cands[0].Type)
}

// buildModel materializes a PLUS_EPSILON candidate's witness strictly
// past its rational root, while the same value tagged Normal (the
// snapped interpretation) is returned exactly on the root: the two
// interpretations genuinely diverge downstream of candidate generation,
// not just in the Type tag.
func TestBuildModelDivergesOnEpsilonInterpretation(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	one := pool.One()
	root := SquareRootExpr{P: one, S: one} // 1/1

	e := newTestEngine(t, pool, nil)

	notSnapped := e.buildModel([]poly.VarID{x}, map[poly.VarID]TestCandidate{
		x: {Type: PlusEpsilon, Value: root},
	})
	v, ok := notSnapped[x].RationalValue()
	require.True(t, ok)
	assert.Equal(t, 1, v.Cmp(big.NewRat(1, 1)))

	snapped := e.buildModel([]poly.VarID{x}, map[poly.VarID]TestCandidate{
		x: {Type: Normal, Value: root},
	})
	v, ok = snapped[x].RationalValue()
	require.True(t, ok)
	assert.Equal(t, 0, v.Cmp(big.NewRat(1, 1)))
}
