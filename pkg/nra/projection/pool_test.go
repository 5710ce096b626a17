package projection

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrat/nra/pkg/nra/poly"
)

func TestResultantOfSharedRootIsZero(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	// p = x - 1, q = x - 1: share every root, resultant must vanish.
	p := pool.Sub(pool.VarPoly(x), pool.Const(big.NewRat(1, 1)))
	proj := NewPool(pool)
	res := proj.Res(p, p, x)
	assert.True(t, res.IsZero())
}

func TestRealRootsOfCubic(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	one := pool.Const(big.NewRat(1, 1))
	two := pool.Const(big.NewRat(2, 1))
	three := pool.Const(big.NewRat(3, 1))
	xm1 := pool.Sub(pool.VarPoly(x), one)
	xm2 := pool.Sub(pool.VarPoly(x), two)
	xm3 := pool.Sub(pool.VarPoly(x), three)
	p := pool.Mul(pool.Mul(xm1, xm2), xm3)

	proj := NewPool(pool)
	roots := proj.RealRoots(p, x, Assignment{})
	require.Len(t, roots, 3)
	for i := range roots {
		if i > 0 {
			r0, _ := roots[i-1].RationalValue()
			r1, _ := roots[i].RationalValue()
			assert.True(t, r0.Cmp(r1) < 0)
		}
	}
}

func TestIsNullifiedUnderAssignment(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	y := pool.Var("y")
	// p = y*x: nullified in x whenever y = 0.
	p := pool.Mul(pool.VarPoly(y), pool.VarPoly(x))
	proj := NewPool(pool)
	assert.True(t, proj.IsNullified(p, x, Assignment{y: big.NewRat(0, 1)}))
	assert.False(t, proj.IsNullified(p, x, Assignment{y: big.NewRat(1, 1)}))
}
