package cad

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrat/nra/pkg/nra/poly"
)

func threeConstraints(pool *poly.Pool) (a, b, c *poly.Constraint) {
	x := pool.Var("x")
	a = pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.Const(big.NewRat(1, 1))), poly.EQ)
	b = pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.Const(big.NewRat(2, 1))), poly.EQ)
	c = pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.Const(big.NewRat(3, 1))), poly.EQ)
	return
}

func TestExtractMISTrivialReturnsEverything(t *testing.T) {
	pool := poly.NewPool()
	a, b, c := threeConstraints(pool)
	g := newConflictGraph([]*poly.Constraint{a, b, c})
	g.markFailing(a, SampleID(0))
	g.markFailing(b, SampleID(0))

	mis := g.extractMIS(Trivial)
	require.Len(t, mis, 3)
}

func TestExtractMISGreedyCoversUniverse(t *testing.T) {
	pool := poly.NewPool()
	a, b, c := threeConstraints(pool)
	g := newConflictGraph([]*poly.Constraint{a, b, c})
	// a covers samples {0,1}, b covers {1,2}, c covers nothing (never fails).
	g.markFailing(a, SampleID(0))
	g.markFailing(a, SampleID(1))
	g.markFailing(b, SampleID(1))
	g.markFailing(b, SampleID(2))

	mis := g.extractMIS(Greedy)
	ids := map[poly.ID]bool{}
	for _, m := range mis {
		ids[m.ID()] = true
	}
	assert.True(t, ids[a.ID()])
	assert.True(t, ids[b.ID()])
	assert.False(t, ids[c.ID()])
}

func TestExtractMISHybridSmallInstanceIsMinimal(t *testing.T) {
	pool := poly.NewPool()
	a, b, c := threeConstraints(pool)
	g := newConflictGraph([]*poly.Constraint{a, b, c})
	// a alone covers every failing sample; hybrid must not also pick b or c.
	g.markFailing(a, SampleID(0))
	g.markFailing(a, SampleID(1))
	g.markFailing(b, SampleID(0))
	g.markFailing(c, SampleID(1))

	mis := g.extractMIS(Hybrid)
	require.Len(t, mis, 1)
	assert.Equal(t, a.ID(), mis[0].ID())
}

// Seven useful rows (more than the 6-row exhaustive threshold): four
// head rows over disjoint columns, plus a tail trio where tailBait ties
// tailOpt1/tailOpt2's coverage but isn't part of any minimum cover of
// the tail. A plain greedy continuation (the pre-fix behavior once more
// than 6 rows are useful) would tie-break on smallest id and fall into
// the tailBait trap; residualizing via greedy only until 6 rows remain,
// then exhausting, must avoid it.
func TestExtractMISHybridResidualizesThenExhausts(t *testing.T) {
	pool := poly.NewPool()
	x := pool.Var("x")
	mk := func(k int64) *poly.Constraint {
		return pool.InternConstraint(pool.Sub(pool.VarPoly(x), pool.Const(big.NewRat(k, 1))), poly.EQ)
	}

	headA, headB, headC, headD := mk(1), mk(2), mk(3), mk(4)
	tailBait, tailOpt1, tailOpt2 := mk(5), mk(6), mk(7)

	g := newConflictGraph([]*poly.Constraint{headA, headB, headC, headD, tailBait, tailOpt1, tailOpt2})
	g.markFailing(headA, SampleID(1))
	g.markFailing(headA, SampleID(2))
	g.markFailing(headB, SampleID(3))
	g.markFailing(headB, SampleID(4))
	g.markFailing(headC, SampleID(5))
	g.markFailing(headC, SampleID(6))
	g.markFailing(headD, SampleID(7))
	g.markFailing(headD, SampleID(8))
	g.markFailing(tailBait, SampleID(10))
	g.markFailing(tailBait, SampleID(30))
	g.markFailing(tailOpt1, SampleID(10))
	g.markFailing(tailOpt1, SampleID(20))
	g.markFailing(tailOpt2, SampleID(30))
	g.markFailing(tailOpt2, SampleID(40))

	mis := g.extractMIS(Hybrid)
	ids := map[poly.ID]bool{}
	for _, m := range mis {
		ids[m.ID()] = true
	}
	assert.True(t, ids[headA.ID()])
	assert.True(t, ids[headB.ID()])
	assert.True(t, ids[headC.ID()])
	assert.True(t, ids[headD.ID()])
	assert.True(t, ids[tailOpt1.ID()])
	assert.True(t, ids[tailOpt2.ID()])
	assert.False(t, ids[tailBait.ID()])
	require.Len(t, mis, 6)
}

func TestExtractMISEmptyGraphIsNil(t *testing.T) {
	g := newConflictGraph(nil)
	assert.Nil(t, g.extractMIS(Hybrid))
}

func TestExtractMISGreedyPreKeepsEssentialRows(t *testing.T) {
	pool := poly.NewPool()
	a, b, c := threeConstraints(pool)
	g := newConflictGraph([]*poly.Constraint{a, b, c})
	// only c covers sample 2, so c is essential.
	g.markFailing(a, SampleID(0))
	g.markFailing(b, SampleID(0))
	g.markFailing(c, SampleID(2))

	mis := g.extractMIS(GreedyPre)
	ids := map[poly.ID]bool{}
	for _, m := range mis {
		ids[m.ID()] = true
	}
	assert.True(t, ids[c.ID()])
}
