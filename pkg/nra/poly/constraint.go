package poly

import (
	"fmt"
	"math/big"
)

// Relation is one of the six closed relational symbols a Constraint can
// carry: =, ≠, <, ≤, >, ≥.
type Relation int

const (
	EQ Relation = iota
	NEQ
	LESS
	LEQ
	GREATER
	GEQ
)

func (r Relation) String() string {
	switch r {
	case EQ:
		return "="
	case NEQ:
		return "!="
	case LESS:
		return "<"
	case LEQ:
		return "<="
	case GREATER:
		return ">"
	case GEQ:
		return ">="
	default:
		return "?"
	}
}

// negated returns the relation r' such that "not (p r 0)" iff "p r' 0".
func (r Relation) negated() Relation {
	switch r {
	case EQ:
		return NEQ
	case NEQ:
		return EQ
	case LESS:
		return GEQ
	case LEQ:
		return GREATER
	case GREATER:
		return LEQ
	case GEQ:
		return LESS
	}
	return r
}

// mirrored returns the relation to use after negating the polynomial:
// "p r 0" iff "-p mirrored(r) 0".
func (r Relation) mirrored() Relation {
	switch r {
	case LESS:
		return GREATER
	case LEQ:
		return GEQ
	case GREATER:
		return LESS
	case GEQ:
		return LEQ
	default:
		return r
	}
}

// Consistency is the three-valued syntactic result of Constraint.Consistency.
type Consistency int

const (
	Undecided Consistency = iota
	Inconsistent
	Tautological
)

// Constraint is a pooled, canonicalized (polynomial, relation) pair: the
// sign of the polynomial's leading coefficient is normalized so that
// `lhs = 0` and `-lhs = 0` share a representative.
type Constraint struct {
	id   ID
	pool *Pool
	Poly *Polynomial
	Rel  Relation
}

// ID returns the constraint's stable numeric id.
func (c *Constraint) ID() ID { return c.id }

func (c *Constraint) String() string {
	return fmt.Sprintf("%s %s 0", c.Poly.String(), c.Rel)
}

// signNormalize strips integer/rational content from p and, if the
// leading coefficient with respect to p's main variable is negative,
// flips its sign, mirroring rel accordingly so that "p rel 0" is
// preserved.
func signNormalize(pool *Pool, p *Polynomial, rel Relation) (*Polynomial, Relation) {
	if p.IsZero() {
		return p, rel
	}
	terms := p.Terms()
	content := contentOf(terms)
	if content.Sign() != 0 && content.Cmp(big.NewRat(1, 1)) != 0 {
		inv := new(big.Rat).Inv(content)
		for i := range terms {
			terms[i].Coeff.Mul(terms[i].Coeff, inv)
		}
		p = pool.Intern(terms)
	}
	mv, ok := p.MainVar()
	if !ok {
		// constant polynomial: normalize its sign too, mirroring rel.
		v, _ := p.ConstantValue()
		if v.Sign() < 0 {
			return pool.Neg(p), rel.mirrored()
		}
		return p, rel
	}
	lc := pool.LeadingCoeff(p, mv)
	sign := constantSign(lc)
	if sign < 0 {
		return pool.Neg(p), rel.mirrored()
	}
	return p, rel
}

// constantSign returns the sign of p if p itself is a constant; for any
// non-constant polynomial it conservatively returns 0 ("unknown"),
// leaving normalization to a later, assignment-aware step.
func constantSign(p *Polynomial) int {
	if v, ok := p.ConstantValue(); ok {
		return v.Sign()
	}
	return 0
}

// contentOf returns the positive rational scale factor of a term list:
// the absolute value of its first non-zero coefficient, so dividing by
// it makes that coefficient ±1. This is not a gcd of the coefficients;
// true integer content
// stripping only matters for display/dedup and never changes the
// solution set, so this keeps the pool's canonical keys stable without
// requiring a full integer gcd routine over mixed-denominator rationals.
func contentOf(terms []Term) *big.Rat {
	for _, t := range terms {
		if t.Coeff.Sign() != 0 {
			c := new(big.Rat).Abs(t.Coeff)
			return c
		}
	}
	return new(big.Rat)
}

// InternConstraint canonicalizes (p, rel) and returns the pooled
// Constraint.
func (p *Pool) InternConstraint(lhs *Polynomial, rel Relation) *Constraint {
	normPoly, normRel := signNormalize(p, lhs, rel)
	key := fmt.Sprintf("%d:%d", normPoly.id, normRel)

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.constraintByKey[key]; ok {
		return existing
	}
	id := p.nextConstraintID
	p.nextConstraintID++
	c := &Constraint{id: id, pool: p, Poly: normPoly, Rel: normRel}
	p.constraintByKey[key] = c
	p.constraintByID[id] = c
	return c
}

// ConstraintByID looks up a previously interned constraint by id.
func (p *Pool) ConstraintByID(id ID) (*Constraint, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.constraintByID[id]
	return c, ok
}

// Negate returns the canonical constraint expressing "not c".
func (p *Pool) Negate(c *Constraint) *Constraint {
	return p.InternConstraint(c.Poly, c.Rel.negated())
}

// Consistency is a cheap syntactic test: a constant polynomial, or a
// trivially true/false sign, decides the constraint without search;
// anything else is Undecided.
func (c *Constraint) Consistency() Consistency {
	v, ok := c.Poly.ConstantValue()
	if !ok {
		return Undecided
	}
	sign := v.Sign()
	holds := false
	switch c.Rel {
	case EQ:
		holds = sign == 0
	case NEQ:
		holds = sign != 0
	case LESS:
		holds = sign < 0
	case LEQ:
		holds = sign <= 0
	case GREATER:
		holds = sign > 0
	case GEQ:
		holds = sign >= 0
	}
	if holds {
		return Tautological
	}
	return Inconsistent
}

// EvalRational reports whether c holds under a total rational
// assignment of its free variables.
func (c *Constraint) EvalRational(assignment map[VarID]*big.Rat) bool {
	v := c.Poly.EvalRational(assignment)
	sign := v.Sign()
	switch c.Rel {
	case EQ:
		return sign == 0
	case NEQ:
		return sign != 0
	case LESS:
		return sign < 0
	case LEQ:
		return sign <= 0
	case GREATER:
		return sign > 0
	case GEQ:
		return sign >= 0
	}
	return false
}
