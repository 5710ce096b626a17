// Package es implements the equality-substitution preprocessing pass:
// a fixed-point walk that turns every linear equality it finds into a
// variable-for-polynomial substitution, applies it to the rest of the
// conjunction, and repeats until nothing new is found, folding away
// Boolean literals the same way. It runs ahead of both the CAD and
// Virtual Substitution engines to shrink what they have to decide.
package es

import (
	"math/big"

	"github.com/polyrat/nra/pkg/nra/formula"
	"github.com/polyrat/nra/pkg/nra/poly"
)

// Substitutions accumulates every elimination found while simplifying a
// formula, so a caller can reconstruct a full model over the eliminated
// variables and subformulas once the simplified formula is decided.
type Substitutions struct {
	Arith map[poly.VarID]*poly.Polynomial
	Bool  map[formula.ID]bool
}

func newSubstitutions() *Substitutions {
	return &Substitutions{Arith: map[poly.VarID]*poly.Polynomial{}, Bool: map[formula.ID]bool{}}
}

func (s *Substitutions) clone() *Substitutions {
	out := newSubstitutions()
	for k, v := range s.Arith {
		out.Arith[k] = v
	}
	for k, v := range s.Bool {
		out.Bool[k] = v
	}
	return out
}

// Eliminate simplifies f and returns the accumulated substitutions used
// to do so.
func Eliminate(arena *formula.Arena, f formula.ID) (formula.ID, *Substitutions) {
	subs := newSubstitutions()
	return eliminate(arena, f, subs), subs
}

func eliminate(arena *formula.Arena, f formula.ID, subs *Substitutions) formula.ID {
	if v, ok := subs.Bool[f]; ok {
		if v {
			return arena.True()
		}
		return arena.False()
	}
	switch arena.Kind(f) {
	case formula.CONSTRAINT:
		return substituteConstraint(arena, f, subs)
	case formula.NOT:
		return arena.Not(eliminate(arena, arena.Children(f)[0], subs))
	case formula.AND:
		return eliminateAnd(arena, f, subs)
	case formula.OR:
		children := arena.Children(f)
		out := make([]formula.ID, len(children))
		for i, c := range children {
			out[i] = eliminate(arena, c, subs)
		}
		return arena.Or(out...)
	case formula.XOR, formula.IFF, formula.IMPLIES:
		children := arena.Children(f)
		x := eliminate(arena, children[0], subs)
		y := eliminate(arena, children[1], subs)
		return rebuildBinary(arena, arena.Kind(f), x, y)
	case formula.ITE:
		return eliminateIte(arena, f, subs)
	default:
		return f
	}
}

func rebuildBinary(arena *formula.Arena, kind formula.Kind, x, y formula.ID) formula.ID {
	switch kind {
	case formula.XOR:
		return arena.Xor(x, y)
	case formula.IFF:
		return arena.Iff(x, y)
	default:
		return arena.Implies(x, y)
	}
}

func substituteConstraint(arena *formula.Arena, f formula.ID, subs *Substitutions) formula.ID {
	c, ok := arena.ConstraintOf(f)
	if !ok {
		return f
	}
	pool := arena.Pool()
	p := c.Poly
	for v, repl := range subs.Arith {
		if p.DegreeIn(v) > 0 {
			p = substituteVar(pool, p, v, repl)
		}
	}
	if p == c.Poly {
		return f
	}
	newC := pool.InternConstraint(p, c.Rel)
	switch newC.Consistency() {
	case poly.Tautological:
		return arena.True()
	case poly.Inconsistent:
		return arena.False()
	}
	return arena.Constraint(newC)
}

// eliminateAnd repeats "process every linear equation first, substitute
// into every sibling, repeat" to a fixed point, mirroring the source
// system's ESModule::elimSubstitutions AND case.
func eliminateAnd(arena *formula.Arena, f formula.ID, subs *Substitutions) formula.ID {
	current := arena.Children(f)
	for {
		var eqs, others []formula.ID
		for _, sf := range current {
			if isLinearEquality(arena, sf) {
				eqs = append(eqs, sf)
			} else {
				others = append(others, sf)
			}
		}

		foundNew := false
		var kept []formula.ID

		for _, sf := range eqs {
			simplified := eliminate(arena, sf, subs)
			switch arena.Kind(simplified) {
			case formula.FALSE:
				return arena.False()
			case formula.TRUE:
				continue
			}
			if c, ok := arena.ConstraintOf(simplified); ok {
				if v, repl, ok2 := extractSubstitution(arena.Pool(), c); ok2 {
					if _, exists := subs.Arith[v]; !exists {
						subs.Arith[v] = repl
						foundNew = true
						continue
					}
				}
			}
			kept = append(kept, simplified)
		}

		for _, sf := range others {
			simplified := eliminate(arena, sf, subs)
			switch arena.Kind(simplified) {
			case formula.FALSE:
				return arena.False()
			case formula.TRUE:
				continue
			}
			if simplified != sf {
				foundNew = true
			}
			if arena.Kind(simplified) == formula.AND {
				kept = append(kept, arena.Children(simplified)...)
				continue
			}
			kept = append(kept, simplified)
		}

		if !foundNew {
			switch len(kept) {
			case 0:
				return arena.True()
			case 1:
				return kept[0]
			default:
				return arena.And(kept...)
			}
		}
		current = kept
	}
}

// eliminateIte simplifies an ITE's condition first: if it collapses to a
// constant, only the taken branch survives. Otherwise the condition's
// positive-case substitution (when it's itself a linear equality) is
// visible only inside the "then" branch, and its negative case only
// inside "else" — a substitution true along one branch of a case split
// is not sound on the other, so each branch gets its own scoped copy of
// the accumulated substitutions rather than sharing the parent's.
func eliminateIte(arena *formula.Arena, f formula.ID, subs *Substitutions) formula.ID {
	children := arena.Children(f)
	cond, then, els := children[0], children[1], children[2]

	cond = eliminate(arena, cond, subs)
	switch arena.Kind(cond) {
	case formula.TRUE:
		return eliminate(arena, then, subs)
	case formula.FALSE:
		return eliminate(arena, els, subs)
	}

	thenSubs := subs.clone()
	scopeCondition(arena, cond, true, thenSubs)
	thenResult := eliminate(arena, then, thenSubs)

	elseSubs := subs.clone()
	scopeCondition(arena, cond, false, elseSubs)
	elseResult := eliminate(arena, els, elseSubs)

	return arena.Ite(cond, thenResult, elseResult)
}

func scopeCondition(arena *formula.Arena, cond formula.ID, truth bool, subs *Substitutions) {
	subs.Bool[cond] = truth
	if !truth {
		return
	}
	c, ok := arena.ConstraintOf(cond)
	if !ok || c.Rel != poly.EQ || !isLinear(c.Poly) {
		return
	}
	if v, repl, ok := extractSubstitution(arena.Pool(), c); ok {
		subs.Arith[v] = repl
	}
}

// isLinear reports whether every monomial of p has total degree <= 1.
func isLinear(p *poly.Polynomial) bool {
	for _, t := range p.Terms() {
		deg := 0
		for _, e := range t.Exp {
			deg += int(e)
		}
		if deg > 1 {
			return false
		}
	}
	return true
}

func isLinearEquality(arena *formula.Arena, f formula.ID) bool {
	c, ok := arena.ConstraintOf(f)
	if !ok || c.Rel != poly.EQ {
		return false
	}
	return isLinear(c.Poly)
}

// extractSubstitution picks the smallest-VarID variable in c's linear
// polynomial and solves for it: c.Poly = b*v + d = 0  =>  v = -d/b.
func extractSubstitution(pool *poly.Pool, c *poly.Constraint) (poly.VarID, *poly.Polynomial, bool) {
	vars := c.Poly.Vars()
	if len(vars) == 0 {
		return 0, nil, false
	}
	v := vars[0]
	coeffs := pool.CoeffsIn(c.Poly, v)
	if len(coeffs) < 2 {
		return 0, nil, false
	}
	b, d := coeffs[1], coeffs[0]
	bv, ok := b.ConstantValue()
	if !ok || bv.Sign() == 0 {
		return 0, nil, false
	}
	scale := new(big.Rat).Neg(new(big.Rat).Inv(bv))
	return v, pool.ScaleConst(d, scale), true
}

// substituteVar replaces every occurrence of v in p by repl, writing p
// as sum_i coeffs[i]*v^i and evaluating that sum with repl in place of v.
func substituteVar(pool *poly.Pool, p *poly.Polynomial, v poly.VarID, repl *poly.Polynomial) *poly.Polynomial {
	coeffs := pool.CoeffsIn(p, v)
	result := pool.Zero()
	power := pool.One()
	for i, c := range coeffs {
		if i > 0 {
			power = pool.Mul(power, repl)
		}
		result = pool.Add(result, pool.Mul(c, power))
	}
	return result
}
