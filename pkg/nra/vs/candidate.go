// Package vs implements Virtual Substitution: symbolic test-candidate
// generation for degree 1/2 eliminations, DNF substitution into the
// remaining conjunction, and a recursive depth-first search over the
// resulting disjuncts with conflict-set-driven backtracking and
// divisibility-by-gcd pruning of integer equations. Integer
// branch-and-bound is done by the dispatcher, not by this package.
package vs

import (
	"math/big"

	"github.com/polyrat/nra/pkg/nra/poly"
)

// TestCandidateType names the substitution shape a candidate encodes.
type TestCandidateType int

const (
	Invalid TestCandidateType = iota
	Normal
	PlusEpsilon
	MinusInfinity
	PlusInfinity
)

// SquareRootExpr is a symbolic value (P + Q·√R) / S, all of P, Q, R, S
// polynomials in the variables surviving elimination. Q and R are nil
// (equivalently zero/one) for a purely rational candidate.
type SquareRootExpr struct {
	P, Q, R, S *poly.Polynomial
}

// IsRational reports whether the expression carries no square root.
func (e SquareRootExpr) IsRational() bool { return e.Q == nil || e.Q.IsZero() }

// TestCandidate is one symbolic value Virtual Substitution tries in
// place of the eliminated variable, together with the side conditions
// (e.g. "b != 0") that must hold for the candidate to be well-formed.
type TestCandidate struct {
	Type           TestCandidateType
	Value          SquareRootExpr
	SideConditions []*poly.Constraint
}

// GenerateCandidates returns the test candidates for eliminating x from
// constr, per the degree-1/degree-2 rules: degree 1 yields one rational
// candidate; degree 2 yields the degenerate-to-linear branch plus the
// two square-root branches; both also gain a +infinity and a -infinity
// candidate for non-equalities. integral is unused by this function
// directly; the divisibility-by-gcd pruning it enables is applied by the
// caller once a candidate's value is known (see Engine.eliminate), since
// that check needs the origin-tracked conflict bookkeeping this function
// doesn't have access to.
// Degree >= 3 is out of scope for this package (see DESIGN.md) and
// returns (nil, false).
func GenerateCandidates(pool *poly.Pool, constr *poly.Constraint, x poly.VarID, integral bool, opts Options) ([]TestCandidate, bool) {
	deg := constr.Poly.DegreeIn(x)
	coeffs := pool.CoeffsIn(constr.Poly, x)
	switch deg {
	case 0:
		return nil, true
	case 1:
		b, d := coeffs[1], coeffs[0]
		epsType := Normal
		if constr.Rel == poly.LESS || constr.Rel == poly.GREATER {
			epsType = PlusEpsilon
			if opts.SnapEpsilonToRational {
				epsType = Normal
			}
		}
		neg := pool.ScaleConst(d, big.NewRat(-1, 1))
		cands := []TestCandidate{
			{
				Type:           epsType,
				Value:          SquareRootExpr{P: neg, S: b},
				SideConditions: []*poly.Constraint{pool.InternConstraint(b, poly.NEQ)},
			},
		}
		if constr.Rel != poly.EQ {
			cands = append(cands, infinityCandidates()...)
		}
		return cands, true
	case 2:
		a, b, d := coeffs[2], coeffs[1], coeffs[0]
		var cands []TestCandidate
		// degenerate branch: a = 0, falls back to the linear candidate,
		// guarded by a itself being zero.
		neg := pool.ScaleConst(d, big.NewRat(-1, 1))
		cands = append(cands, TestCandidate{
			Type:  Normal,
			Value: SquareRootExpr{P: neg, S: b},
			SideConditions: []*poly.Constraint{
				pool.InternConstraint(a, poly.EQ),
				pool.InternConstraint(b, poly.NEQ),
			},
		})
		// quadratic branches: x = (-b +/- sqrt(b^2-4ad)) / (2a), guarded
		// by a != 0 and the discriminant being non-negative.
		disc := pool.Sub(pool.Mul(b, b), pool.ScaleConst(pool.Mul(a, d), big.NewRat(4, 1)))
		twoA := pool.ScaleConst(a, big.NewRat(2, 1))
		negB := pool.ScaleConst(b, big.NewRat(-1, 1))
		nonNeg := pool.InternConstraint(disc, poly.GEQ)
		aNonZero := pool.InternConstraint(a, poly.NEQ)
		for _, sign := range []*big.Rat{big.NewRat(1, 1), big.NewRat(-1, 1)} {
			cands = append(cands, TestCandidate{
				Type:           Normal,
				Value:          SquareRootExpr{P: negB, Q: pool.Const(sign), R: disc, S: twoA},
				SideConditions: []*poly.Constraint{aNonZero, nonNeg},
			})
		}
		if constr.Rel != poly.EQ {
			cands = append(cands, infinityCandidates()...)
		}
		return cands, true
	default:
		return nil, false
	}
}

// infinityCandidates always tries both directions: the satisfying
// region's unbounded side could be at either end regardless of whether
// the eliminated variable is required to be integral.
func infinityCandidates() []TestCandidate {
	return []TestCandidate{{Type: MinusInfinity}, {Type: PlusInfinity}}
}

// isIntegerValued reports whether val's exact rational value is an
// integer, once every coefficient it depends on has resolved to a
// constant. It returns true (nothing to prune) for a sqrt-carrying
// value or one still depending on unresolved variables, since
// divisibility can't be decided from symbolic coefficients: the
// divisibility-by-gcd-of-coefficients check this feeds is only sound
// once P and S are concrete numbers, i.e. gcd(S) either does or doesn't
// divide P with no remainder.
func isIntegerValued(val SquareRootExpr) bool {
	if !val.IsRational() {
		return true
	}
	if val.P == nil || val.S == nil || !val.P.IsConstant() || !val.S.IsConstant() {
		return true
	}
	p, _ := val.P.ConstantValue()
	s, _ := val.S.ConstantValue()
	if s.Sign() == 0 {
		return true
	}
	return new(big.Rat).Quo(p, s).IsInt()
}
