package poly

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Term is a single monomial: a rational coefficient times a product of
// variable powers. Exp maps a VarID to its (non-zero) exponent; a
// variable absent from Exp has exponent zero.
type Term struct {
	Coeff *big.Rat
	Exp   map[VarID]uint32
}

func (t Term) clone() Term {
	exp := make(map[VarID]uint32, len(t.Exp))
	for v, e := range t.Exp {
		exp[v] = e
	}
	return Term{Coeff: new(big.Rat).Set(t.Coeff), Exp: exp}
}

func (t Term) degreeIn(v VarID) uint32 { return t.Exp[v] }

func (t Term) totalDegree() int {
	d := 0
	for _, e := range t.Exp {
		d += int(e)
	}
	return d
}

// Polynomial is a hash-consed multivariate polynomial with exact
// rational coefficients. Terms are stored in canonical
// (combined, sorted, non-zero-coefficient) form. Two Polynomials
// produced by the same Pool with the same terms share the same pointer
// and ID.
type Polynomial struct {
	id    ID
	pool  *Pool
	terms []Term // canonical: sorted, combined, zero-coeff terms dropped

	// caches, filled lazily and guarded by the field's own presence
	// check under pool.mu; a nil value means "not yet computed", not
	// "computed as nil" (nilness of a genuine zero result is
	// represented by pool.Zero()).
	ldcfCache map[VarID]*Polynomial
	discCache map[VarID]*Polynomial
}

// ID returns the polynomial's stable numeric id.
func (p *Polynomial) ID() ID { return p.id }

// Pool returns the owning Pool.
func (p *Polynomial) Pool() *Pool { return p.pool }

// IsZero reports whether p is the additive identity.
func (p *Polynomial) IsZero() bool { return len(p.terms) == 0 }

// IsConstant reports whether p has no variables at all.
func (p *Polynomial) IsConstant() bool {
	return len(p.terms) == 0 || (len(p.terms) == 1 && len(p.terms[0].Exp) == 0)
}

// ConstantValue returns the constant value of p and true, iff p IsConstant.
func (p *Polynomial) ConstantValue() (*big.Rat, bool) {
	if len(p.terms) == 0 {
		return new(big.Rat), true
	}
	if len(p.terms) == 1 && len(p.terms[0].Exp) == 0 {
		return new(big.Rat).Set(p.terms[0].Coeff), true
	}
	return nil, false
}

// Terms returns a defensive copy of p's canonical term list.
func (p *Polynomial) Terms() []Term {
	out := make([]Term, len(p.terms))
	for i, t := range p.terms {
		out[i] = t.clone()
	}
	return out
}

// Vars returns the set of variables that occur in p with a non-zero
// exponent in at least one term, ascending by VarID.
func (p *Polynomial) Vars() []VarID {
	set := map[VarID]bool{}
	for _, t := range p.terms {
		for v, e := range t.Exp {
			if e > 0 {
				set[v] = true
			}
		}
	}
	out := make([]VarID, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MainVar returns the variable with the greatest VarID occurring in p,
// i.e. the "main variable" whose index in the pool's order defines p's
// projection level, and reports false if p is constant.
func (p *Polynomial) MainVar() (VarID, bool) {
	vars := p.Vars()
	if len(vars) == 0 {
		return 0, false
	}
	return vars[len(vars)-1], true
}

// Level is a convenience wrapper over MainVar returning -1 for constants.
func (p *Polynomial) Level() int {
	v, ok := p.MainVar()
	if !ok {
		return -1
	}
	return int(v)
}

// DegreeIn returns the degree of p in variable v.
func (p *Polynomial) DegreeIn(v VarID) int {
	d := 0
	for _, t := range p.terms {
		if int(t.Exp[v]) > d {
			d = int(t.Exp[v])
		}
	}
	return d
}

// Degree returns the degree of p in its own main variable, or -1 if
// p is constant.
func (p *Polynomial) Degree() int {
	v, ok := p.MainVar()
	if !ok {
		return -1
	}
	return p.DegreeIn(v)
}

func combineTerms(raw []Term) []Term {
	combined := map[string]Term{}
	order := []string{}
	for _, t := range raw {
		if t.Coeff.Sign() == 0 {
			continue
		}
		exp := map[VarID]uint32{}
		for v, e := range t.Exp {
			if e != 0 {
				exp[v] = e
			}
		}
		key := monomialKey(exp)
		if existing, ok := combined[key]; ok {
			existing.Coeff.Add(existing.Coeff, t.Coeff)
			combined[key] = existing
		} else {
			combined[key] = Term{Coeff: new(big.Rat).Set(t.Coeff), Exp: exp}
			order = append(order, key)
		}
	}
	out := make([]Term, 0, len(order))
	for _, k := range order {
		term := combined[k]
		if term.Coeff.Sign() != 0 {
			out = append(out, term)
		}
	}
	sort.Slice(out, func(i, j int) bool { return monomialLess(out[i].Exp, out[j].Exp) })
	return out
}

func monomialKey(exp map[VarID]uint32) string {
	vars := make([]VarID, 0, len(exp))
	for v := range exp {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	var b strings.Builder
	for _, v := range vars {
		fmt.Fprintf(&b, "x%d^%d;", v, exp[v])
	}
	return b.String()
}

// monomialLess orders monomials by their highest-indexed variable
// (descending), then by that variable's exponent (descending), then by
// descending total degree — an ordering convenient for reading off
// leading coefficients with respect to the main variable.
func monomialLess(a, b map[VarID]uint32) bool {
	maxVar := func(m map[VarID]uint32) VarID {
		best := VarID(-1)
		for v := range m {
			if v > best {
				best = v
			}
		}
		return best
	}
	va, vb := maxVar(a), maxVar(b)
	if va != vb {
		return va > vb
	}
	if va == -1 {
		return false
	}
	if a[va] != b[va] {
		return a[va] > b[va]
	}
	da, db := 0, 0
	for _, e := range a {
		da += int(e)
	}
	for _, e := range b {
		db += int(e)
	}
	return da > db
}

// Intern canonicalizes raw and returns the (possibly pre-existing)
// hash-consed Polynomial with that content. Intern is idempotent:
// Intern(Intern(p).Terms()) == Intern(p).
func (p *Pool) Intern(raw []Term) *Polynomial {
	terms := combineTerms(raw)
	key := canonicalKey(terms)

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.polyByKey[key]; ok {
		return existing
	}
	id := p.nextPolyID
	p.nextPolyID++
	poly := &Polynomial{id: id, pool: p, terms: terms, ldcfCache: map[VarID]*Polynomial{}, discCache: map[VarID]*Polynomial{}}
	p.polyByKey[key] = poly
	p.polyByID[id] = poly
	return poly
}

// Zero returns the pool's canonical zero polynomial.
func (p *Pool) Zero() *Polynomial { return p.Intern(nil) }

// One returns the pool's canonical constant-one polynomial.
func (p *Pool) One() *Polynomial { return p.Const(big.NewRat(1, 1)) }

// Const returns the canonical constant polynomial with value v.
func (p *Pool) Const(v *big.Rat) *Polynomial {
	if v.Sign() == 0 {
		return p.Zero()
	}
	return p.Intern([]Term{{Coeff: new(big.Rat).Set(v), Exp: map[VarID]uint32{}}})
}

// VarPoly returns the canonical degree-1 polynomial equal to variable v.
func (p *Pool) VarPoly(v VarID) *Polynomial {
	return p.Intern([]Term{{Coeff: big.NewRat(1, 1), Exp: map[VarID]uint32{v: 1}}})
}

// PolyByID looks up a previously interned polynomial by id.
func (p *Pool) PolyByID(id ID) (*Polynomial, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	poly, ok := p.polyByID[id]
	return poly, ok
}

// Add returns the interned sum a+b.
func (p *Pool) Add(a, b *Polynomial) *Polynomial {
	return p.Intern(append(a.Terms(), b.Terms()...))
}

// Sub returns the interned difference a-b.
func (p *Pool) Sub(a, b *Polynomial) *Polynomial {
	return p.Add(a, p.Neg(b))
}

// Neg returns the interned negation of a.
func (p *Pool) Neg(a *Polynomial) *Polynomial {
	terms := a.Terms()
	for i := range terms {
		terms[i].Coeff.Neg(terms[i].Coeff)
	}
	return p.Intern(terms)
}

// Mul returns the interned product a*b.
func (p *Pool) Mul(a, b *Polynomial) *Polynomial {
	if a.IsZero() || b.IsZero() {
		return p.Zero()
	}
	var out []Term
	for _, ta := range a.terms {
		for _, tb := range b.terms {
			exp := map[VarID]uint32{}
			for v, e := range ta.Exp {
				exp[v] += e
			}
			for v, e := range tb.Exp {
				exp[v] += e
			}
			coeff := new(big.Rat).Mul(ta.Coeff, tb.Coeff)
			out = append(out, Term{Coeff: coeff, Exp: exp})
		}
	}
	return p.Intern(out)
}

// ScaleConst returns the interned product of a with the rational scalar c.
func (p *Pool) ScaleConst(a *Polynomial, c *big.Rat) *Polynomial {
	if c.Sign() == 0 {
		return p.Zero()
	}
	terms := a.Terms()
	for i := range terms {
		terms[i].Coeff.Mul(terms[i].Coeff, c)
	}
	return p.Intern(terms)
}

// Pow returns a raised to a non-negative integer power n.
func (p *Pool) Pow(a *Polynomial, n int) *Polynomial {
	result := p.One()
	for i := 0; i < n; i++ {
		result = p.Mul(result, a)
	}
	return result
}

// Derivative returns d(p)/d(v), the formal partial derivative of p with
// respect to variable v.
func (p *Pool) Derivative(a *Polynomial, v VarID) *Polynomial {
	var out []Term
	for _, t := range a.terms {
		e := t.Exp[v]
		if e == 0 {
			continue
		}
		exp := map[VarID]uint32{}
		for w, ew := range t.Exp {
			exp[w] = ew
		}
		exp[v] = e - 1
		if exp[v] == 0 {
			delete(exp, v)
		}
		coeff := new(big.Rat).Mul(t.Coeff, new(big.Rat).SetInt64(int64(e)))
		out = append(out, Term{Coeff: coeff, Exp: exp})
	}
	return p.Intern(out)
}

// CoeffsIn returns p written as a univariate polynomial in v with
// coefficients that are themselves Polynomials in the remaining
// variables: CoeffsIn(v)[i] is the coefficient of v^i. This is the
// univariate-over-lower-ring view in the main variable that projection
// needs to compute resultants and discriminants.
func (p *Pool) CoeffsIn(a *Polynomial, v VarID) []*Polynomial {
	degree := a.DegreeIn(v)
	buckets := make([][]Term, degree+1)
	for _, t := range a.terms {
		e := t.Exp[v]
		exp := map[VarID]uint32{}
		for w, ew := range t.Exp {
			if w != v {
				exp[w] = ew
			}
		}
		buckets[e] = append(buckets[e], Term{Coeff: new(big.Rat).Set(t.Coeff), Exp: exp})
	}
	out := make([]*Polynomial, degree+1)
	for i, terms := range buckets {
		out[i] = p.Intern(terms)
	}
	return out
}

// FromCoeffs is the inverse of CoeffsIn: it rebuilds a polynomial in v
// from a slice of coefficient polynomials, coeffs[i] being the
// coefficient of v^i.
func (p *Pool) FromCoeffs(coeffs []*Polynomial, v VarID) *Polynomial {
	var out []Term
	for i, c := range coeffs {
		if c == nil || c.IsZero() {
			continue
		}
		for _, t := range c.terms {
			exp := map[VarID]uint32{}
			for w, ew := range t.Exp {
				exp[w] = ew
			}
			if i > 0 {
				exp[v] += uint32(i)
			}
			out = append(out, Term{Coeff: new(big.Rat).Set(t.Coeff), Exp: exp})
		}
	}
	return p.Intern(out)
}

// LeadingCoeff returns the (cached) leading coefficient of p with
// respect to v, i.e. CoeffsIn(v)[DegreeIn(v)].
func (p *Pool) LeadingCoeff(a *Polynomial, v VarID) *Polynomial {
	p.mu.Lock()
	if c, ok := a.ldcfCache[v]; ok {
		p.mu.Unlock()
		return c
	}
	p.mu.Unlock()

	coeffs := p.CoeffsIn(a, v)
	var lc *Polynomial
	if len(coeffs) == 0 {
		lc = p.Zero()
	} else {
		lc = coeffs[len(coeffs)-1]
	}
	p.mu.Lock()
	a.ldcfCache[v] = lc
	p.mu.Unlock()
	return lc
}

// EvalRational evaluates p at a total rational assignment of all its
// variables and returns the exact result.
func (p *Polynomial) EvalRational(assignment map[VarID]*big.Rat) *big.Rat {
	sum := new(big.Rat)
	for _, t := range p.terms {
		term := new(big.Rat).Set(t.Coeff)
		for v, e := range t.Exp {
			val, ok := assignment[v]
			if !ok {
				panic(fmt.Sprintf("poly: EvalRational missing assignment for var %d", v))
			}
			pw := new(big.Rat).SetInt64(1)
			for i := uint32(0); i < e; i++ {
				pw.Mul(pw, val)
			}
			term.Mul(term, pw)
		}
		sum.Add(sum, term)
	}
	return sum
}

// SubstituteRational replaces every variable named in assignment by its
// rational value, returning the resulting (generally lower-arity)
// Polynomial.
func (p *Pool) SubstituteRational(a *Polynomial, assignment map[VarID]*big.Rat) *Polynomial {
	var out []Term
	for _, t := range a.terms {
		coeff := new(big.Rat).Set(t.Coeff)
		exp := map[VarID]uint32{}
		for v, e := range t.Exp {
			if val, ok := assignment[v]; ok {
				pw := new(big.Rat).SetInt64(1)
				for i := uint32(0); i < e; i++ {
					pw.Mul(pw, val)
				}
				coeff.Mul(coeff, pw)
			} else {
				exp[v] = e
			}
		}
		out = append(out, Term{Coeff: coeff, Exp: exp})
	}
	return p.Intern(out)
}

// DivExact divides a by b, assuming b evenly divides a, and returns the
// quotient. It repeatedly cancels the leading monomial of the remainder
// (under the pool's canonical monomial order) against b's leading
// monomial, so it terminates whether or not the division is exact; a
// non-zero final remainder means the caller's exactness assumption was
// wrong, and DivExact panics rather than return a wrong quotient.
func (p *Pool) DivExact(a, b *Polynomial) *Polynomial {
	if b.IsZero() {
		panic("poly: DivExact by zero")
	}
	remainder := a.Terms()
	lead := b.terms[0]
	var quotient []Term
	for len(remainder) > 0 {
		rl := remainder[0]
		exp := map[VarID]uint32{}
		ok := true
		for v, e := range lead.Exp {
			re := rl.Exp[v]
			if re < e {
				ok = false
				break
			}
			exp[v] = re - e
		}
		if !ok {
			panic("poly: DivExact: b does not evenly divide a")
		}
		for v, e := range rl.Exp {
			if _, inLead := lead.Exp[v]; !inLead {
				exp[v] = e
			}
		}
		coeff := new(big.Rat).Quo(rl.Coeff, lead.Coeff)
		quotient = append(quotient, Term{Coeff: coeff, Exp: exp})

		var scaled []Term
		for _, t := range b.terms {
			e := map[VarID]uint32{}
			for v, ev := range t.Exp {
				e[v] += ev
			}
			for v, ev := range exp {
				e[v] += ev
			}
			scaled = append(scaled, Term{Coeff: new(big.Rat).Mul(t.Coeff, coeff), Exp: e})
		}
		diffTerms := append(remainder[0:0:0], remainder...)
		diffTerms = append(diffTerms, negateTerms(scaled)...)
		remainder = combineTerms(diffTerms)
	}
	if len(remainder) != 0 {
		panic("poly: DivExact: non-zero remainder")
	}
	return p.Intern(quotient)
}

func negateTerms(terms []Term) []Term {
	out := make([]Term, len(terms))
	for i, t := range terms {
		out[i] = Term{Coeff: new(big.Rat).Neg(t.Coeff), Exp: t.Exp}
	}
	return out
}

// String renders p using the pool's variable names, for diagnostics.
func (p *Polynomial) String() string {
	if p.IsZero() {
		return "0"
	}
	var parts []string
	for _, t := range p.terms {
		parts = append(parts, termString(t, p.pool))
	}
	return strings.Join(parts, " + ")
}

func termString(t Term, pool *Pool) string {
	vars := make([]VarID, 0, len(t.Exp))
	for v := range t.Exp {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	factors := []string{t.Coeff.RatString()}
	for _, v := range vars {
		name := fmt.Sprintf("x%d", v)
		if pool != nil {
			name = pool.VarName(v)
		}
		if t.Exp[v] == 1 {
			factors = append(factors, name)
		} else {
			factors = append(factors, fmt.Sprintf("%s^%d", name, t.Exp[v]))
		}
	}
	return strings.Join(factors, "*")
}
