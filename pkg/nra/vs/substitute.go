package vs

import (
	"math/big"

	"github.com/polyrat/nra/pkg/nra/poly"
)

// DNF is a disjunction of conjunctions of constraints: the shape every
// substitution result and every downstream combination step is kept in.
type DNF [][]*poly.Constraint

// SubstResult is the outcome of substituting one TestCandidate into one
// constraint. Escalate is set when the target constraint's degree in x
// exceeds what this package's square-root elimination handles (see
// DESIGN.md); the caller must hand the pair off to a CAD or linear
// backend instead.
type SubstResult struct {
	DNF      DNF
	Refuted  bool
	Escalate bool
}

// Substitute applies cand in place of x inside constr, returning the
// resulting DNF of new constraints over the surviving variables.
func Substitute(pool *poly.Pool, constr *poly.Constraint, x poly.VarID, cand TestCandidate) SubstResult {
	base := SubstResult{}
	base.DNF = DNF{append([]*poly.Constraint{}, cand.SideConditions...)}

	switch cand.Type {
	case MinusInfinity, PlusInfinity:
		c, ok := substituteInfinity(pool, constr, x, cand.Type)
		if !ok {
			return SubstResult{Escalate: true}
		}
		return conjoin(base, c)
	}

	if cand.Value.IsRational() {
		c, ok := substituteRational(pool, constr, x, cand.Value)
		if !ok {
			return SubstResult{Escalate: true}
		}
		return conjoinDNF(base, c)
	}

	res, ok := substituteSqrt(pool, constr, x, cand.Value)
	if !ok {
		return SubstResult{Escalate: true}
	}
	return conjoinDNF(base, res)
}

func conjoin(base SubstResult, extra ...*poly.Constraint) SubstResult {
	out := DNF{}
	for _, conj := range base.DNF {
		out = append(out, append(append([]*poly.Constraint{}, conj...), extra...))
	}
	base.DNF = out
	return base
}

func conjoinDNF(base SubstResult, extra DNF) SubstResult {
	if len(extra) == 0 {
		base.Refuted = true
		base.DNF = nil
		return base
	}
	out := DNF{}
	for _, conj := range base.DNF {
		for _, extraConj := range extra {
			out = append(out, append(append([]*poly.Constraint{}, conj...), extraConj...))
		}
	}
	base.DNF = out
	return base
}

// substituteInfinity replaces x by +/- infinity: the sign of a degree-n
// polynomial in x as x diverges is the sign of its leading coefficient
// (as x -> +inf) or that sign times (-1)^n (as x -> -inf). The result is
// a single constraint purely on the leading coefficient.
func substituteInfinity(pool *poly.Pool, constr *poly.Constraint, x poly.VarID, dir TestCandidateType) (*poly.Constraint, bool) {
	n := constr.Poly.DegreeIn(x)
	if n <= 0 {
		return constr, true
	}
	switch constr.Rel {
	case poly.EQ:
		// A nonconstant polynomial can't vanish at a diverging value.
		return pool.InternConstraint(pool.One(), poly.EQ), true
	case poly.NEQ:
		return pool.InternConstraint(pool.One(), poly.NEQ), true
	}
	ldcf := pool.LeadingCoeff(constr.Poly, x)
	rel := constr.Rel
	if dir == MinusInfinity && n%2 == 1 {
		rel = mirror(rel)
	}
	return pool.InternConstraint(ldcf, rel), true
}

// substituteRational replaces x by num/den (den != 0 guaranteed by a
// side condition already threaded into the candidate) into constr,
// clearing the denominator. Because den's sign is unknown when its
// degree in x's coefficient ring is odd, that case splits into a
// disjunction over sign(den); an even power of den is always positive
// (den != 0), so no split is needed there, and equalities never need a
// split at all since sign is irrelevant to being zero.
func substituteRational(pool *poly.Pool, constr *poly.Constraint, x poly.VarID, val SquareRootExpr) (DNF, bool) {
	n := constr.Poly.DegreeIn(x)
	coeffs := pool.CoeffsIn(constr.Poly, x)
	num, den := val.P, val.S

	numPow := pool.One()
	denPow := pool.One()
	denPowersDesc := make([]*poly.Polynomial, n+1) // denPowersDesc[i] = den^i
	numPowersAsc := make([]*poly.Polynomial, n+1)  // numPowersAsc[i] = num^i
	denPowersDesc[0] = pool.One()
	numPowersAsc[0] = pool.One()
	for i := 1; i <= n; i++ {
		numPow = pool.Mul(numPow, num)
		denPow = pool.Mul(denPow, den)
		numPowersAsc[i] = numPow
		denPowersDesc[i] = denPow
	}

	numerator := pool.Zero()
	for i := 0; i <= n; i++ {
		term := pool.Mul(coeffs[i], pool.Mul(numPowersAsc[i], denPowersDesc[n-i]))
		numerator = pool.Add(numerator, term)
	}

	if constr.Rel == poly.EQ || constr.Rel == poly.NEQ {
		return DNF{{pool.InternConstraint(numerator, constr.Rel)}}, true
	}
	if n%2 == 0 {
		return DNF{{pool.InternConstraint(numerator, constr.Rel)}}, true
	}
	posBranch := []*poly.Constraint{
		pool.InternConstraint(den, poly.GREATER),
		pool.InternConstraint(numerator, constr.Rel),
	}
	negBranch := []*poly.Constraint{
		pool.InternConstraint(den, poly.LESS),
		pool.InternConstraint(numerator, mirror(constr.Rel)),
	}
	return DNF{posBranch, negBranch}, true
}

// substituteSqrt replaces x by (p + q*sqrt(r))/s into constr, where
// constr has degree at most 2 in x (higher degrees escalate to a
// backend, per spec.md's own scope for this package). The target
// polynomial c0 + c1*x + c2*x^2, expanded and rationalized over s^2,
// reduces to A + B*sqrt(r) rel'' 0 for polynomials A, B not containing
// sqrt(r); the classical elimination rules below remove the radical.
func substituteSqrt(pool *poly.Pool, constr *poly.Constraint, x poly.VarID, val SquareRootExpr) (DNF, bool) {
	n := constr.Poly.DegreeIn(x)
	if n > 2 {
		return nil, false
	}
	coeffs := pool.CoeffsIn(constr.Poly, x)
	c0 := coeffs[0]
	var c1, c2 *poly.Polynomial
	if n >= 1 {
		c1 = coeffs[1]
	} else {
		c1 = pool.Zero()
	}
	if n >= 2 {
		c2 = coeffs[2]
	} else {
		c2 = pool.Zero()
	}

	p, q, r, s := val.P, val.Q, val.R, val.S
	// x = (p+q*sqrt r)/s; x^2 = (p^2+q^2*r + 2pq*sqrt r) / s^2.
	// c0 + c1*x + c2*x^2, times s^2, splits into rational part A and the
	// sqrt(r) coefficient B: c0*s^2 + c1*p*s + c2*(p^2+q^2*r)  [A]
	//                        + (c1*q*s + c2*2*p*q) * sqrt(r)   [B]
	s2 := pool.Mul(s, s)
	a := pool.Add(pool.Add(pool.Mul(c0, s2), pool.Mul(c1, pool.Mul(p, s))),
		pool.Mul(c2, pool.Add(pool.Mul(p, p), pool.Mul(q, pool.Mul(q, r)))))
	b := pool.Add(pool.Mul(c1, pool.Mul(q, s)), pool.ScaleConst(pool.Mul(c2, pool.Mul(p, q)), big.NewRat(2, 1)))

	aSq := pool.Mul(a, a)
	bSqR := pool.Mul(pool.Mul(b, b), r)
	diff := pool.Sub(aSq, bSqR) // A^2 - B^2*r

	switch constr.Rel {
	case poly.EQ:
		// A + B*sqrt(r) = 0 <=> (B=0 and A=0) or (A^2=B^2*r and A*B<=0).
		branch1 := []*poly.Constraint{
			pool.InternConstraint(b, poly.EQ),
			pool.InternConstraint(a, poly.EQ),
		}
		branch2 := []*poly.Constraint{
			pool.InternConstraint(diff, poly.EQ),
			pool.InternConstraint(pool.Mul(a, b), poly.LEQ),
		}
		return DNF{branch1, branch2}, true
	case poly.NEQ:
		branch1 := []*poly.Constraint{pool.InternConstraint(diff, poly.NEQ)}
		branch2 := []*poly.Constraint{
			pool.InternConstraint(diff, poly.EQ),
			pool.InternConstraint(pool.Mul(a, b), poly.GREATER),
		}
		return DNF{branch1, branch2}, true
	case poly.LESS, poly.LEQ, poly.GREATER, poly.GEQ:
		return sqrtInequality(pool, constr.Rel, a, b, diff), true
	}
	return nil, false
}

// sqrtInequality implements A + B*sqrt(r) rel 0 for rel in {<,<=,>,>=}.
// With t = sqrt(r) >= 0, a case split on sign(B) and, within each case,
// on whether |A| dominates (diff = A^2 - B^2*r) removes the radical:
//
//	A + B*t < 0  <=>  (B>=0 and A<0 and diff>0) or (B<0 and A<0) or (B<0 and diff<0)
//	A + B*t > 0  <=>  (B<=0 and A>0 and diff>0) or (B>0 and A>0) or (B>0 and diff<0)
//
// The non-strict relations add the A+B*t=0 branches from the equality rule.
func sqrtInequality(pool *poly.Pool, rel poly.Relation, a, b, diff *poly.Polynomial) DNF {
	var dnf DNF
	switch rel {
	case poly.LESS, poly.LEQ:
		dnf = DNF{
			{pool.InternConstraint(b, poly.GEQ), pool.InternConstraint(a, poly.LESS), pool.InternConstraint(diff, poly.GREATER)},
			{pool.InternConstraint(b, poly.LESS), pool.InternConstraint(a, poly.LESS)},
			{pool.InternConstraint(b, poly.LESS), pool.InternConstraint(diff, poly.LESS)},
		}
	case poly.GREATER, poly.GEQ:
		dnf = DNF{
			{pool.InternConstraint(b, poly.LEQ), pool.InternConstraint(a, poly.GREATER), pool.InternConstraint(diff, poly.GREATER)},
			{pool.InternConstraint(b, poly.GREATER), pool.InternConstraint(a, poly.GREATER)},
			{pool.InternConstraint(b, poly.GREATER), pool.InternConstraint(diff, poly.LESS)},
		}
	}
	if rel == poly.LEQ || rel == poly.GEQ {
		dnf = append(dnf,
			[]*poly.Constraint{pool.InternConstraint(b, poly.EQ), pool.InternConstraint(a, poly.EQ)},
			[]*poly.Constraint{pool.InternConstraint(diff, poly.EQ), pool.InternConstraint(pool.Mul(a, b), poly.LEQ)},
		)
	}
	return dnf
}

func mirror(rel poly.Relation) poly.Relation {
	switch rel {
	case poly.LESS:
		return poly.GREATER
	case poly.LEQ:
		return poly.GEQ
	case poly.GREATER:
		return poly.LESS
	case poly.GEQ:
		return poly.LEQ
	default:
		return rel
	}
}
