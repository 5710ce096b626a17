package algebraic

import "math/big"

// sturmSequence builds the Sturm sequence of a square-free univariate
// polynomial: seq[0] = a, seq[1] = a', seq[i+1] = -rem(seq[i-1], seq[i]).
func sturmSequence(a Univariate) []Univariate {
	a = trim(a)
	seq := []Univariate{a, a.Derivative()}
	for {
		prev, cur := seq[len(seq)-2], seq[len(seq)-1]
		cur = trim(cur)
		if len(cur) == 0 {
			break
		}
		_, rem := DivRem(prev, cur)
		next := Neg(trim(rem))
		if len(next) == 0 {
			seq = append(seq, next)
			break
		}
		seq = append(seq, next)
	}
	return seq
}

func signAt(seq []Univariate, x *big.Rat) []int {
	signs := make([]int, 0, len(seq))
	for _, p := range seq {
		if len(trim(p)) == 0 {
			continue
		}
		signs = append(signs, p.Eval(x).Sign())
	}
	return signs
}

func signVariations(signs []int) int {
	count := 0
	prev := 0
	for _, s := range signs {
		if s == 0 {
			continue
		}
		if prev != 0 && s != prev {
			count++
		}
		prev = s
	}
	return count
}

// RealRootCount returns the number of distinct real roots of a
// (square-free) polynomial a in the open interval (low, high), using a
// Sturm sequence. Neither endpoint may itself be a root.
func RealRootCount(a Univariate, low, high *big.Rat) int {
	sf := SquareFreePart(a)
	if len(trim(sf)) <= 1 {
		return 0
	}
	seq := sturmSequence(sf)
	return signVariations(signAt(seq, low)) - signVariations(signAt(seq, high))
}

// isolatingInterval is a half-open-free interval [low, high] known to
// contain exactly one real root of a square-free polynomial (or to have
// low == high, the root's exact rational value).
type isolatingInterval struct {
	low, high *big.Rat
}

// IsolateRealRoots returns isolating intervals for every distinct real
// root of a, in ascending order, since callers that build ordered
// sample sequences over a's root set rely on that order directly.
func IsolateRealRoots(a Univariate) []Number {
	sf := SquareFreePart(a)
	sf = trim(sf)
	if len(sf) <= 1 {
		return nil
	}
	bound := CauchyBound(sf)
	negBound := new(big.Rat).Neg(bound)

	var out []isolatingInterval
	var isolate func(low, high *big.Rat)
	isolate = func(low, high *big.Rat) {
		count := RealRootCount(sf, low, high)
		if count == 0 {
			return
		}
		if count == 1 {
			out = append(out, isolatingInterval{low: low, high: high})
			return
		}
		mid := new(big.Rat).Add(low, high)
		mid.Quo(mid, big.NewRat(2, 1))
		if sf.Eval(mid).Sign() == 0 {
			// Perturb: shift the midpoint by a small rational so no
			// endpoint of either sub-interval is itself a root.
			eps := new(big.Rat).Sub(high, low)
			eps.Quo(eps, big.NewRat(1000000, 1))
			mid.Add(mid, eps)
		}
		isolate(low, mid)
		isolate(mid, high)
	}
	isolate(negBound, bound)

	numbers := make([]Number, len(out))
	for i, iv := range out {
		numbers[i] = Number{defining: sf, low: iv.low, high: iv.high}
		numbers[i].normalize()
	}
	return numbers
}
