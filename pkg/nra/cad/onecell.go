package cad

import (
	"fmt"
	"sort"

	"github.com/polyrat/nra/pkg/nra/algebraic"
	"github.com/polyrat/nra/pkg/nra/poly"
	"github.com/polyrat/nra/pkg/nra/projection"
)

// RootDescription names one polynomial's root involved in a cell's
// boundary, by its index in that polynomial's ascending root list at
// the cell's assignment (the "indexed root ordering" of the McCallum
// construction).
type RootDescription struct {
	Poly      *poly.Polynomial
	RootIndex int
	Value     algebraic.Number
}

// CellBound is either an explicit root bound or an unbounded (±infinity) side.
type CellBound struct {
	Infinite bool
	Sign     int // +1 or -1 when Infinite; ignored otherwise
	Root     RootDescription
}

// Cell is a one-level description of the sample interval a lifted
// sample lies in: the lower and upper bounds (a named root, or ±∞), and
// the full ordering of every projection polynomial's roots at this
// level, which downstream levels need to preserve sign/order-invariance
// when their own projection polynomials are added.
type Cell struct {
	Variable poly.VarID
	Lower    CellBound
	Upper    CellBound
	OnRoot   bool // true iff the sample itself sits exactly on Lower(==Upper)
	Ordering []RootDescription
}

func (c Cell) String() string {
	if c.OnRoot {
		return fmt.Sprintf("{%s}", c.Lower.Root.Value.String())
	}
	lo := "-inf"
	if !c.Lower.Infinite {
		lo = c.Lower.Root.Value.String()
	}
	hi := "+inf"
	if !c.Upper.Infinite {
		hi = c.Upper.Root.Value.String()
	}
	return fmt.Sprintf("(%s, %s)", lo, hi)
}

// ExplainCell builds the one-cell explanation of the sample at leaf: the
// exact root leaf sits on (if leaf is a root sample), or the open
// interval bounded by the nearest roots of levelPolys below and above
// leaf's value (or infinity), plus the ascending root ordering of every
// projection polynomial considered at this level. The caller propagates
// this as the certificate that must hold at the level below when
// escalating a local conflict to an unsat core.
func ExplainCell(tree *Tree, proj *projection.Pool, leaf SampleID, levelPolys []*poly.Polynomial) Cell {
	v := tree.VariableAt(leaf)
	assignment := projection.Assignment{}
	if parent := tree.Parent(leaf); parent != noSample {
		assignment = projection.Assignment(tree.Assignment(parent))
	}

	var ordering []RootDescription
	for _, p := range levelPolys {
		if proj.IsNullified(p, v, assignment) {
			continue
		}
		roots := proj.RealRoots(p, v, assignment)
		for i, r := range roots {
			ordering = append(ordering, RootDescription{Poly: p, RootIndex: i, Value: r})
		}
	}
	sort.Slice(ordering, func(i, j int) bool {
		a, b := ordering[i].Value, ordering[j].Value
		return algebraic.Compare(&a, &b) < 0
	})

	leafValue := tree.Value(leaf)
	cell := Cell{Variable: v, Ordering: ordering}

	if tree.IsRootSample(leaf) {
		for _, rd := range ordering {
			val := rd.Value
			if algebraic.Compare(&val, &leafValue) == 0 {
				cell.OnRoot = true
				cell.Lower = CellBound{Root: rd}
				cell.Upper = CellBound{Root: rd}
				return cell
			}
		}
		// leaf claims to be a root but none of levelPolys' roots match at
		// this assignment (e.g. levelPolys narrower than the polynomial
		// leaf was lifted from); fall through to interval bracketing.
	}

	cell.Lower = CellBound{Infinite: true, Sign: -1}
	cell.Upper = CellBound{Infinite: true, Sign: 1}
	for _, rd := range ordering {
		val := rd.Value
		if algebraic.Compare(&val, &leafValue) < 0 {
			cell.Lower = CellBound{Root: rd}
		}
		if algebraic.Compare(&val, &leafValue) > 0 {
			cell.Upper = CellBound{Root: rd}
			break
		}
	}
	return cell
}
