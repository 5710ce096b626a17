// Package algebraic implements the real-algebraic number kernel: an
// exact representation of a real root of a rational univariate
// polynomial as (defining polynomial, isolating interval), with exact
// sign/comparison/evaluation under a partial assignment.
//
// All decisions here are made by exact rational arithmetic over
// math/big.Rat; the engine never relies on floating-point comparisons
// to decide the sign or ordering of a real-algebraic number.
package algebraic

import "math/big"

// Univariate is a dense coefficient vector: Univariate[i] is the
// coefficient of x^i. A trimmed Univariate has a non-zero (or absent)
// leading coefficient.
type Univariate []*big.Rat

func trim(u Univariate) Univariate {
	n := len(u)
	for n > 0 && u[n-1].Sign() == 0 {
		n--
	}
	return u[:n]
}

// Degree returns the polynomial's degree, or -1 for the zero polynomial.
func (u Univariate) Degree() int { return len(trim(u)) - 1 }

// Clone returns a deep copy.
func (u Univariate) Clone() Univariate {
	out := make(Univariate, len(u))
	for i, c := range u {
		out[i] = new(big.Rat).Set(c)
	}
	return out
}

// Eval evaluates u at x using Horner's method.
func (u Univariate) Eval(x *big.Rat) *big.Rat {
	t := trim(u)
	acc := new(big.Rat)
	for i := len(t) - 1; i >= 0; i-- {
		acc.Mul(acc, x)
		acc.Add(acc, t[i])
	}
	return acc
}

// Derivative returns the formal derivative of u.
func (u Univariate) Derivative() Univariate {
	t := trim(u)
	if len(t) <= 1 {
		return Univariate{}
	}
	out := make(Univariate, len(t)-1)
	for i := 1; i < len(t); i++ {
		out[i-1] = new(big.Rat).Mul(t[i], new(big.Rat).SetInt64(int64(i)))
	}
	return trim(out)
}

// Add returns a+b.
func Add(a, b Univariate) Univariate {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make(Univariate, n)
	for i := 0; i < n; i++ {
		out[i] = new(big.Rat)
		if i < len(a) {
			out[i].Add(out[i], a[i])
		}
		if i < len(b) {
			out[i].Add(out[i], b[i])
		}
	}
	return trim(out)
}

// Scale returns c*a.
func Scale(a Univariate, c *big.Rat) Univariate {
	out := make(Univariate, len(a))
	for i, coeff := range a {
		out[i] = new(big.Rat).Mul(coeff, c)
	}
	return trim(out)
}

// Neg returns -a.
func Neg(a Univariate) Univariate { return Scale(a, big.NewRat(-1, 1)) }

// Sub returns a-b.
func Sub(a, b Univariate) Univariate { return Add(a, Neg(b)) }

// DivRem performs exact polynomial division a = q*b + r with deg(r) < deg(b).
// b must be non-zero.
func DivRem(a, b Univariate) (q, rem Univariate) {
	b = trim(b)
	if len(b) == 0 {
		panic("algebraic: division by zero polynomial")
	}
	rem = a.Clone()
	rem = trim(rem)
	degB := len(b) - 1
	lcB := b[degB]
	if len(rem) == 0 {
		return Univariate{}, Univariate{}
	}
	q = make(Univariate, len(rem))
	for i := range q {
		q[i] = new(big.Rat)
	}
	for len(rem) > 0 && len(rem)-1 >= degB {
		degR := len(rem) - 1
		coeff := new(big.Rat).Quo(rem[degR], lcB)
		shift := degR - degB
		q[shift].Add(q[shift], coeff)
		sub := make(Univariate, degR+1)
		for i := range sub {
			sub[i] = new(big.Rat)
		}
		for i, c := range b {
			sub[shift+i].Add(sub[shift+i], new(big.Rat).Mul(c, coeff))
		}
		rem = trim(Sub(rem, sub))
	}
	return trim(q), rem
}

// GCD returns the monic-scaled greatest common divisor of a and b via
// the Euclidean algorithm over Q[x].
func GCD(a, b Univariate) Univariate {
	a, b = trim(a), trim(b)
	for len(b) > 0 {
		_, r := DivRem(a, b)
		a, b = b, trim(r)
	}
	if len(a) == 0 {
		return a
	}
	return Scale(a, new(big.Rat).Inv(a[len(a)-1]))
}

// SquareFreePart returns a/gcd(a, a'), removing repeated roots while
// preserving the set of distinct real roots. Used as the projection
// pool's stand-in for full irreducible factorization (see DESIGN.md).
func SquareFreePart(a Univariate) Univariate {
	a = trim(a)
	if len(a) <= 1 {
		return a
	}
	g := GCD(a, a.Derivative())
	if len(g) <= 1 {
		return a
	}
	q, _ := DivRem(a, g)
	return trim(q)
}

// CauchyBound returns a rational B such that every real root of a lies
// in (-B, B).
func CauchyBound(a Univariate) *big.Rat {
	a = trim(a)
	n := len(a) - 1
	if n <= 0 {
		return big.NewRat(1, 1)
	}
	lc := a[n]
	max := new(big.Rat)
	for i := 0; i < n; i++ {
		ratio := new(big.Rat).Abs(new(big.Rat).Quo(a[i], lc))
		if ratio.Cmp(max) > 0 {
			max = ratio
		}
	}
	return new(big.Rat).Add(big.NewRat(1, 1), max)
}
