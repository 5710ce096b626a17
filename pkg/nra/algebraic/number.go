package algebraic

import (
	"fmt"
	"math/big"
)

// Number is a real-algebraic number: a real root of a square-free
// rational polynomial, represented by that polynomial together with an
// isolating interval that brackets exactly one root.
type Number struct {
	defining  Univariate
	low, high *big.Rat // low <= high; low == high means the value is exactly rational
}

// FromRational returns the (degenerate) algebraic number equal to the
// rational q, defined by the linear polynomial x - q.
func FromRational(q *big.Rat) Number {
	n := Number{
		defining: Univariate{new(big.Rat).Neg(q), big.NewRat(1, 1)},
		low:      new(big.Rat).Set(q),
		high:     new(big.Rat).Set(q),
	}
	return n
}

// normalize collapses the interval to a point if either endpoint is
// exactly a root of the defining polynomial, or if the root inside it is
// rational: by the rational root theorem every rational root is a
// multiple of 1/A (A the leading coefficient times the coefficients'
// denominators), so once the interval is narrower than 1/A the one such
// multiple inside it is tested directly.
func (n *Number) normalize() {
	if n.defining.Eval(n.low).Sign() == 0 {
		n.high = new(big.Rat).Set(n.low)
		return
	}
	if n.defining.Eval(n.high).Sign() == 0 {
		n.low = new(big.Rat).Set(n.high)
		return
	}
	d := trim(n.defining)
	a := new(big.Rat).Abs(d[len(d)-1])
	for _, c := range d {
		a.Mul(a, new(big.Rat).SetInt(c.Denom()))
	}
	for !n.IsRational() && new(big.Rat).Mul(new(big.Rat).Sub(n.high, n.low), a).Cmp(big.NewRat(1, 1)) >= 0 {
		n.Refine()
	}
	t := new(big.Rat).Mul(n.low, a)
	k := new(big.Int).Add(new(big.Int).Div(t.Num(), t.Denom()), big.NewInt(1))
	if cand := new(big.Rat).Quo(new(big.Rat).SetInt(k), a); cand.Cmp(n.high) < 0 && n.defining.Eval(cand).Sign() == 0 {
		n.low, n.high = cand, new(big.Rat).Set(cand)
	}
}

// IsRational reports whether the number's isolating interval has
// collapsed to an exact rational value.
func (n Number) IsRational() bool { return n.low.Cmp(n.high) == 0 }

// RationalValue returns the exact value and true, iff IsRational.
func (n Number) RationalValue() (*big.Rat, bool) {
	if n.IsRational() {
		return new(big.Rat).Set(n.low), true
	}
	return nil, false
}

// Defining returns the number's defining polynomial.
func (n Number) Defining() Univariate { return n.defining }

// Interval returns the current isolating interval [low, high].
func (n Number) Interval() (*big.Rat, *big.Rat) {
	return new(big.Rat).Set(n.low), new(big.Rat).Set(n.high)
}

// Refine bisects the isolating interval once, halving its width while
// preserving the invariant that it contains exactly this one root.
func (n *Number) Refine() {
	if n.IsRational() {
		return
	}
	mid := new(big.Rat).Add(n.low, n.high)
	mid.Quo(mid, big.NewRat(2, 1))
	v := n.defining.Eval(mid)
	if v.Sign() == 0 {
		n.low, n.high = mid, new(big.Rat).Set(mid)
		return
	}
	loSign := n.defining.Eval(n.low).Sign()
	if loSign == v.Sign() {
		n.low = mid
	} else {
		n.high = mid
	}
}

// RefineTo bisects until the interval width is less than eps (or the
// value is found to be exactly rational).
func (n *Number) RefineTo(eps *big.Rat) {
	for !n.IsRational() {
		width := new(big.Rat).Sub(n.high, n.low)
		if width.Cmp(eps) <= 0 {
			return
		}
		n.Refine()
	}
}

// Sign returns the sign of n (-1, 0, +1), refining the interval as
// needed. This is exact: it never returns a wrong sign.
func (n *Number) Sign() int {
	for {
		if n.low.Sign() > 0 {
			return 1
		}
		if n.high.Sign() < 0 {
			return -1
		}
		if n.IsRational() {
			return n.low.Sign()
		}
		n.Refine()
	}
}

// CompareRational returns -1, 0, +1 as n is less than, equal to, or
// greater than q, exact and terminating because n's defining polynomial
// is square-free and q is rational (so either q is not a root of
// n.defining, in which case bisection eventually separates them, or q
// is exactly the root, detected by direct evaluation).
func (n *Number) CompareRational(q *big.Rat) int {
	if n.defining.Eval(q).Sign() == 0 && n.low.Cmp(q) <= 0 && q.Cmp(n.high) <= 0 {
		n.low, n.high = q, q
		return 0
	}
	for {
		if n.high.Cmp(q) < 0 {
			return -1
		}
		if n.low.Cmp(q) > 0 {
			return 1
		}
		if n.IsRational() {
			return n.low.Cmp(q)
		}
		n.Refine()
	}
}

// Compare returns -1, 0, +1 as n is less than, equal to, or greater than
// m. A rational side is compared exactly via CompareRational; two
// irrational values whose overlapping intervals hold a common root of
// both defining polynomials (a root of their gcd) are equal; otherwise
// both intervals are refined in lockstep until they are disjoint.
func Compare(n, m *Number) int {
	if q, ok := m.RationalValue(); ok {
		return n.CompareRational(q)
	}
	if q, ok := n.RationalValue(); ok {
		return -m.CompareRational(q)
	}
	lo, hi := n.low, n.high
	if m.low.Cmp(lo) > 0 {
		lo = m.low
	}
	if m.high.Cmp(hi) < 0 {
		hi = m.high
	}
	if lo.Cmp(hi) < 0 && RealRootCount(GCD(n.defining, m.defining), lo, hi) > 0 {
		return 0
	}
	for {
		if n.high.Cmp(m.low) < 0 {
			return -1
		}
		if m.high.Cmp(n.low) < 0 {
			return 1
		}
		if n.IsRational() && m.IsRational() {
			return n.low.Cmp(m.low)
		}
		if !n.IsRational() {
			n.Refine()
		}
		if !m.IsRational() {
			m.Refine()
		}
	}
}

// Approx returns a rational approximation of n within the current
// isolating interval (its midpoint), refining first if width exceeds
// eps. This value is only for advisory heuristics such as search
// ordering or progress display; it must never itself be the basis of a
// satisfiability decision.
func (n *Number) Approx(eps *big.Rat) *big.Rat {
	n.RefineTo(eps)
	mid := new(big.Rat).Add(n.low, n.high)
	return mid.Quo(mid, big.NewRat(2, 1))
}

// EvalPolySign returns the exact sign of an arbitrary univariate
// polynomial p evaluated at n, and whether that sign could be pinned
// down. Sign 0/decided true covers p vanishing at every root of n's
// defining polynomial (in particular at n itself, detected by an exact
// polynomial remainder test, no floating point involved); otherwise the
// sign is determined by refining n's isolating interval until p's
// remainder no longer changes sign across it, which terminates as long
// as that remainder's only root in range is n itself. n's defining
// polynomial is square-free but not necessarily irreducible (it can
// come from SquareFreePart on a product of distinct irreducible
// factors), so the remainder can have an actual root strictly inside
// n's interval without vanishing identically, and then the endpoint signs
// never agree no matter how far the interval is refined. decided is
// false after exhausting the refinement budget without separating the
// endpoints, reporting that obstruction to the caller instead of
// panicking on input that was never actually invalid.
func (n *Number) EvalPolySign(p Univariate) (sign int, decided bool) {
	_, rem := DivRem(p, n.defining)
	if len(trim(rem)) == 0 {
		return 0, true
	}
	for i := 0; i < 4096; i++ {
		lo := rem.Eval(n.low).Sign()
		hi := rem.Eval(n.high).Sign()
		if lo == hi {
			return lo, true
		}
		if n.IsRational() {
			return rem.Eval(n.low).Sign(), true
		}
		n.Refine()
	}
	return 0, false
}

func (n Number) String() string {
	if n.IsRational() {
		return n.low.RatString()
	}
	return fmt.Sprintf("root of %v in (%s, %s)", n.defining, n.low.RatString(), n.high.RatString())
}
