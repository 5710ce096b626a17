// Package boolabs compiles the Boolean skeleton of a formula.Formula —
// treating every distinct CONSTRAINT leaf as an opaque propositional
// atom — into a github.com/go-air/gini circuit, the same way constraint
// applications compile into gini literals for SAT-based dependency
// resolution: build a circuit of literals, hand it to a gini solver,
// and read the model or the conflict back off the solver.
package boolabs

import (
	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"github.com/polyrat/nra/pkg/nra/formula"
)

const (
	satisfiable   = 1
	unsatisfiable = -1
)

// Skeleton is a compiled Boolean abstraction of a formula.
type Skeleton struct {
	arena   *formula.Arena
	circuit *logic.C
	litOf   map[formula.ID]z.Lit
	atomOf  map[z.Lit]formula.ID // maps an atom literal back to its CONSTRAINT leaf
	root    z.Lit
	trueLit z.Lit
	falseLit z.Lit
}

// Compile builds the Boolean skeleton of the formula rooted at id.
func Compile(arena *formula.Arena, id formula.ID) *Skeleton {
	c := logic.NewC()
	sk := &Skeleton{
		arena:    arena,
		circuit:  c,
		litOf:    map[formula.ID]z.Lit{},
		atomOf:   map[z.Lit]formula.ID{},
		trueLit:  c.Lit(),
		falseLit: c.Lit(),
	}
	sk.root = sk.compile(id)
	return sk
}

func (sk *Skeleton) compile(id formula.ID) z.Lit {
	if m, ok := sk.litOf[id]; ok {
		return m
	}
	var m z.Lit
	switch sk.arena.Kind(id) {
	case formula.TRUE:
		m = sk.trueLit
	case formula.FALSE:
		m = sk.falseLit
	case formula.CONSTRAINT, formula.BOOL, formula.BITVECTOR, formula.UEQ, formula.VARCOMPARE:
		m = sk.circuit.Lit()
		sk.atomOf[m] = id
	case formula.NOT:
		m = sk.compile(sk.arena.Children(id)[0]).Not()
	case formula.AND:
		children := sk.arena.Children(id)
		m = sk.trueLit
		for _, ch := range children {
			m = andLit(sk.circuit, m, sk.compile(ch))
		}
	case formula.OR:
		children := sk.arena.Children(id)
		m = sk.falseLit
		for _, ch := range children {
			m = sk.circuit.Or(m, sk.compile(ch))
		}
	case formula.XOR:
		ch := sk.arena.Children(id)
		a, b := sk.compile(ch[0]), sk.compile(ch[1])
		m = sk.circuit.Or(andLit(sk.circuit, a, b.Not()), andLit(sk.circuit, a.Not(), b))
	case formula.IFF:
		ch := sk.arena.Children(id)
		a, b := sk.compile(ch[0]), sk.compile(ch[1])
		xor := sk.circuit.Or(andLit(sk.circuit, a, b.Not()), andLit(sk.circuit, a.Not(), b))
		m = xor.Not()
	case formula.IMPLIES:
		ch := sk.arena.Children(id)
		a, b := sk.compile(ch[0]), sk.compile(ch[1])
		m = sk.circuit.Or(a.Not(), b)
	case formula.ITE:
		ch := sk.arena.Children(id)
		c, t, e := sk.compile(ch[0]), sk.compile(ch[1]), sk.compile(ch[2])
		m = sk.circuit.Or(andLit(sk.circuit, c, t), andLit(sk.circuit, c.Not(), e))
	case formula.EXISTS, formula.FORALL:
		// Quantifiers are opaque to the propositional skeleton; the
		// dispatcher never reaches them for a quantifier-free input,
		// but the arena's closed Kind set still requires a case.
		m = sk.compile(sk.arena.Children(id)[0])
	default:
		m = sk.circuit.Lit()
	}
	sk.litOf[id] = m
	return m
}

// andLit expresses AND purely in terms of gini's Or/Not, since Or is the
// only compound-literal builder exercised directly elsewhere in this
// codebase's SAT-facing code.
func andLit(c *logic.C, a, b z.Lit) z.Lit {
	return c.Or(a.Not(), b.Not()).Not()
}

// AtomOf returns the CONSTRAINT (or opaque leaf) formula id a skeleton
// literal m stands for, and whether m is an atom at all (as opposed to a
// literal only meaningful inside the circuit's internal gates).
func (sk *Skeleton) AtomOf(m z.Lit) (formula.ID, bool) {
	id, ok := sk.atomOf[m]
	return id, ok
}

// Atoms returns every propositional atom literal, in no defined order;
// AtomOf maps a literal back to the formula leaf it represents.
func (sk *Skeleton) Atoms() []z.Lit {
	out := make([]z.Lit, 0, len(sk.atomOf))
	for m := range sk.atomOf {
		out = append(out, m)
	}
	return out
}

// PropositionallyUnsat reports whether the Boolean skeleton is
// unsatisfiable independent of the meaning of its atoms — e.g.
// `p AND NOT p` over the same constraint atom. The module dispatcher
// (pkg/nra/dispatch) uses this as a cheap pre-check before invoking VS
// or CAD.
func (sk *Skeleton) PropositionallyUnsat() bool {
	g := gini.New()
	sk.circuit.ToCnf(g)
	sk.fixTrueFalse(g)
	g.Assume(sk.root)
	return g.Solve() == unsatisfiable
}

// fixTrueFalse pins the circuit's reserved true/false literals as
// permanent unit clauses in g, rather than assumptions: gini's Solve
// consumes and forgets untested assumptions after one call, so a solver
// reused across more than one Solve (EnumerateModels) needs trueLit/
// falseLit nailed down by a clause that survives every subsequent call,
// not just the next one.
func (sk *Skeleton) fixTrueFalse(g *gini.Gini) {
	g.Add(sk.trueLit)
	g.Add(0)
	g.Add(sk.falseLit.Not())
	g.Add(0)
}

// EnumerateModels calls yield once for every propositional model of the
// skeleton (an assignment of every atom that makes the skeleton true),
// stopping early if yield returns false. Each found model is excluded
// from every later Solve by a literal built from the circuit (the OR of
// each atom's negated value) and asserted as a permanent unit clause
// rather than an assumption: an assumption only holds for the next
// Solve, so a blocking clause taught that way would stop blocking the
// moment the following model is found, and the loop would keep
// reproducing already-yielded models forever. Asserting it with Add
// instead keeps every prior model permanently excluded.
func EnumerateModels(sk *Skeleton, yield func(map[formula.ID]bool) bool) {
	g := gini.New()
	sk.circuit.ToCnf(g)
	sk.fixTrueFalse(g)
	atoms := sk.Atoms()

	for {
		g.Assume(sk.root)
		if g.Solve() != satisfiable {
			return
		}
		model := make(map[formula.ID]bool, len(atoms))
		blocking := sk.falseLit
		for _, a := range atoms {
			val := g.Value(a)
			model[sk.atomOf[a]] = val
			if val {
				blocking = sk.circuit.Or(blocking, a.Not())
			} else {
				blocking = sk.circuit.Or(blocking, a)
			}
		}
		if !yield(model) {
			return
		}
		sk.circuit.ToCnf(g)
		g.Add(blocking)
		g.Add(0)
	}
}
