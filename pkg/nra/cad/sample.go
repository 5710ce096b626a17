// Package cad implements the Cylindrical Algebraic Decomposition engine:
// a persistent lifting tree of partial samples per variable prefix, a
// projection-driven core state machine, conflict-graph MIS extraction,
// and a one-cell conflict explanation.
package cad

import (
	"math/big"

	"github.com/polyrat/nra/pkg/nra/algebraic"
	"github.com/polyrat/nra/pkg/nra/poly"
)

// SampleID is a 32-bit arena index into a Tree. It carries no
// generation, so a stale id is not detected.
type SampleID int32

const noSample SampleID = -1

// sample is a single node of the lifting tree: a real-algebraic value
// chosen for one level, together with which constraints have been
// evaluated against the full assignment reaching this sample and the
// outcome, and a dependency bitset recording which projection
// polynomials this sample's position depends on.
type sample struct {
	generation int
	level      int // index into the ordered variable slice this sample assigns
	value      algebraic.Number
	isRoot     bool // false for a midpoint/outer interval sample
	parent     SampleID
	children   []SampleID

	evaluated map[poly.ID]bool // constraint id -> was it fully assigned and checked here
	result    map[poly.ID]bool // constraint id -> did it hold
	dependsOn map[poly.ID]bool // projection polynomials whose roots produced this sample

	falsified bool // true iff some already-evaluated constraint failed at or below this sample
}

// Tree owns sample storage for one check. Parents own children. Each
// node records the generation current when it was allocated, but get
// does not check it, so a SampleID kept across Invalidate is not
// detected as stale.
type Tree struct {
	vars    []poly.VarID // the fixed variable order this tree lifts over, ascending
	nodes   []sample
	roots   []SampleID
	current int // number of live generations issued, monotonically increasing
}

// NewTree returns an empty lifting tree over the given (ascending)
// variable order.
func NewTree(vars []poly.VarID) *Tree {
	return &Tree{vars: vars}
}

func (t *Tree) alloc(s sample) SampleID {
	id := SampleID(len(t.nodes))
	s.generation = t.current
	t.nodes = append(t.nodes, s)
	return id
}

func (t *Tree) get(id SampleID) *sample {
	if id == noSample {
		return nil
	}
	return &t.nodes[id]
}

// AddRoot inserts a fresh top-level sample (level 0) with value v,
// keeping roots sorted in ascending real-algebraic order. isRoot marks
// whether v is an actual projection-polynomial root (as opposed to a
// midpoint/outer interval sample), for the one-cell explanation.
func (t *Tree) AddRoot(v algebraic.Number, isRoot bool) SampleID {
	id := t.alloc(sample{
		level:     0,
		value:     v,
		isRoot:    isRoot,
		parent:    noSample,
		evaluated: map[poly.ID]bool{},
		result:    map[poly.ID]bool{},
		dependsOn: map[poly.ID]bool{},
	})
	t.insertOrdered(&t.roots, id)
	return id
}

// Extend inserts a fresh child of parent one level deeper, keeping the
// parent's children sorted in ascending real-algebraic order.
func (t *Tree) Extend(parent SampleID, v algebraic.Number, isRoot bool) SampleID {
	level := t.get(parent).level + 1
	id := t.alloc(sample{
		level:     level,
		value:     v,
		isRoot:    isRoot,
		parent:    parent,
		evaluated: map[poly.ID]bool{},
		result:    map[poly.ID]bool{},
		dependsOn: map[poly.ID]bool{},
	})
	// t.alloc may have grown the backing array, so re-fetch the parent
	// pointer rather than reuse one taken before the allocation.
	t.insertOrdered(&t.get(parent).children, id)
	return id
}

func (t *Tree) insertOrdered(list *[]SampleID, id SampleID) {
	v := t.get(id).value
	i := 0
	for ; i < len(*list); i++ {
		if algebraic.Compare(&v, t.valueOf((*list)[i])) < 0 {
			break
		}
	}
	*list = append(*list, noSample)
	copy((*list)[i+1:], (*list)[i:])
	(*list)[i] = id
}

func (t *Tree) valueOf(id SampleID) *algebraic.Number {
	return &t.nodes[id].value
}

// Assignment returns the rational values on the path from the root to
// id, as a map keyed by the concrete variables of the tree's order up
// to id's level. A level whose sample is not rational is left out.
func (t *Tree) Assignment(id SampleID) map[poly.VarID]*big.Rat {
	// Only used for constraints whose variables are already known
	// rational (interval samples or resolved roots); callers needing
	// exact algebraic evaluation use AssignmentAlgebraic instead.
	out := map[poly.VarID]*big.Rat{}
	for cur := id; cur != noSample; cur = t.get(cur).parent {
		s := t.get(cur)
		if q, ok := s.value.RationalValue(); ok {
			out[t.vars[s.level]] = q
		}
	}
	return out
}

// AssignmentAlgebraic returns the full chain of algebraic-number values
// from root to id, keyed by variable.
func (t *Tree) AssignmentAlgebraic(id SampleID) map[poly.VarID]algebraic.Number {
	out := map[poly.VarID]algebraic.Number{}
	for cur := id; cur != noSample; cur = t.get(cur).parent {
		s := t.get(cur)
		out[t.vars[s.level]] = s.value
	}
	return out
}

// MarkFalsified records that constraint c evaluated to false at sample
// id, and propagates the falsified flag up to every ancestor so that
// the core can prune the corresponding subtree from further lifting.
func (t *Tree) MarkFalsified(id SampleID, c poly.ID) {
	s := t.get(id)
	s.evaluated[c] = true
	s.result[c] = false
	for cur := id; cur != noSample; cur = t.get(cur).parent {
		t.get(cur).falsified = true
	}
}

// MarkSatisfied records that constraint c evaluated to true at sample id.
func (t *Tree) MarkSatisfied(id SampleID, c poly.ID) {
	s := t.get(id)
	s.evaluated[c] = true
	s.result[c] = true
}

// IsFalsified reports whether some constraint was found false at id or
// at one of its descendants (MarkFalsified sets the flag on a sample and
// all its ancestors), so lifting should not extend it further.
func (t *Tree) IsFalsified(id SampleID) bool {
	return t.get(id).falsified
}

// Level returns id's level (0-indexed position in the variable order).
func (t *Tree) Level(id SampleID) int { return t.get(id).level }

// Roots returns the top-level samples in ascending order.
func (t *Tree) Roots() []SampleID { return t.roots }

// Children returns id's children in ascending order.
func (t *Tree) Children(id SampleID) []SampleID { return t.get(id).children }

// Value returns id's chosen real-algebraic value.
func (t *Tree) Value(id SampleID) algebraic.Number { return t.get(id).value }

// IsRootSample reports whether id was placed at an actual
// projection-polynomial root, as opposed to an interior/outer interval
// sample.
func (t *Tree) IsRootSample(id SampleID) bool { return t.get(id).isRoot }

// Parent returns id's parent, or noSample if id is a root.
func (t *Tree) Parent(id SampleID) SampleID { return t.get(id).parent }

// VariableAt returns the variable id's level assigns.
func (t *Tree) VariableAt(id SampleID) poly.VarID { return t.vars[t.get(id).level] }

// Siblings returns the ordered sample list id belongs to: its parent's
// children, or the tree's roots if id is a root.
func (t *Tree) Siblings(id SampleID) []SampleID {
	parent := t.get(id).parent
	if parent == noSample {
		return t.roots
	}
	return t.get(parent).children
}

// Invalidate discards every sample and bumps the tree's generation
// counter; the tree is then repopulated by fresh lifting. SampleIDs
// issued before the call are not detected as stale: get indexes the new
// node slice without comparing generations.
func (t *Tree) Invalidate() {
	t.current++
	t.nodes = nil
	t.roots = nil
}
