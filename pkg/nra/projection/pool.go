// Package projection implements the CAD projection pool: memoized
// resultant, discriminant, leading coefficient, square-free
// factorization and real-root isolation, keyed by polynomial-id pairs
// and by partial-assignment hash, with level-scoped invalidation.
package projection

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/polyrat/nra/pkg/nra/algebraic"
	"github.com/polyrat/nra/pkg/nra/poly"
)

// Assignment is a partial rational assignment of lower-level variables,
// used both to evaluate polynomials and as a cache key (via Hash).
type Assignment map[poly.VarID]*big.Rat

// Hash returns a stable string key for a, sorted by VarID so that
// insertion order never affects the cache key.
func (a Assignment) Hash() string {
	vars := make([]poly.VarID, 0, len(a))
	for v := range a {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	key := ""
	for _, v := range vars {
		key += fmt.Sprintf("%d=%s;", v, a[v].RatString())
	}
	return key
}

// Pool memoizes projection operations over a poly.Pool. It is safe for
// concurrent use only insofar as the underlying poly.Pool is; callers
// running one Pool per check (as pkg/nra/cad does) need no locking of
// their own.
type Pool struct {
	polys *poly.Pool

	resultants map[[2]poly.ID]*poly.Polynomial
	discs      map[poly.ID]*poly.Polynomial

	rootsByAssignment map[string][]algebraic.Number
	nullifiedCache    map[string]bool
}

// NewPool returns an empty projection Pool over polys.
func NewPool(polys *poly.Pool) *Pool {
	return &Pool{
		polys:             polys,
		resultants:        map[[2]poly.ID]*poly.Polynomial{},
		discs:             map[poly.ID]*poly.Polynomial{},
		rootsByAssignment: map[string][]algebraic.Number{},
		nullifiedCache:    map[string]bool{},
	}
}

func pairKey(a, b *poly.Polynomial) [2]poly.ID {
	if a.ID() <= b.ID() {
		return [2]poly.ID{a.ID(), b.ID()}
	}
	return [2]poly.ID{b.ID(), a.ID()}
}

// Res returns the resultant of p and q with respect to v, computed as
// the determinant of their Sylvester matrix over the coefficient ring
// (polynomials in the remaining variables).
func (pp *Pool) Res(p, q *poly.Polynomial, v poly.VarID) *poly.Polynomial {
	key := pairKey(p, q)
	if cached, ok := pp.resultants[key]; ok {
		return cached
	}
	result := sylvesterResultant(pp.polys, p, q, v)
	pp.resultants[key] = result
	return result
}

// Disc returns the discriminant of p with respect to its main variable
// v: disc(p) = (-1)^(n(n-1)/2) / ldcf(p) * res(p, p').
func (pp *Pool) Disc(p *poly.Polynomial, v poly.VarID) *poly.Polynomial {
	if cached, ok := pp.discs[p.ID()]; ok {
		return cached
	}
	n := p.DegreeIn(v)
	if n <= 0 {
		pp.discs[p.ID()] = pp.polys.Zero()
		return pp.discs[p.ID()]
	}
	deriv := pp.polys.Derivative(p, v)
	res := pp.Res(p, deriv, v)
	ldcf := pp.polys.LeadingCoeff(p, v)
	var disc *poly.Polynomial
	if ldcf.IsConstant() {
		val, _ := ldcf.ConstantValue()
		disc = pp.polys.ScaleConst(res, new(big.Rat).Inv(val))
	} else {
		disc = pp.polys.DivExact(res, ldcf)
	}
	if n*(n-1)/2%2 != 0 {
		disc = pp.polys.Neg(disc)
	}
	pp.discs[p.ID()] = disc
	return disc
}

// Ldcf returns the (cached, via poly.Pool) leading coefficient of p in v.
func (pp *Pool) Ldcf(p *poly.Polynomial, v poly.VarID) *poly.Polynomial {
	return pp.polys.LeadingCoeff(p, v)
}

// NonconstFactors returns a set of non-constant factors of p sufficient
// to capture its distinct real roots. Full irreducible factorization
// over Q is out of scope; this returns the square-free part of p
// treated univariately in its main variable (see DESIGN.md).
func (pp *Pool) NonconstFactors(p *poly.Polynomial) []*poly.Polynomial {
	v, ok := p.MainVar()
	if !ok {
		return nil
	}
	u := toUnivariate(pp.polys, p, v)
	sf := algebraic.SquareFreePart(u)
	return []*poly.Polynomial{fromUnivariate(pp.polys, sf, v)}
}

// RealRoots isolates the real roots of p's main variable under the
// partial assignment a of the remaining (lower-level) variables.
func (pp *Pool) RealRoots(p *poly.Polynomial, v poly.VarID, a Assignment) []algebraic.Number {
	key := fmt.Sprintf("%d|%s", p.ID(), a.Hash())
	if cached, ok := pp.rootsByAssignment[key]; ok {
		return cached
	}
	specialized := pp.polys.SubstituteRational(p, a)
	u := toUnivariate(pp.polys, specialized, v)
	roots := algebraic.IsolateRealRoots(u)
	pp.rootsByAssignment[key] = roots
	return roots
}

// IsNullified reports whether p vanishes identically (every coefficient
// in its main variable evaluates to zero) under assignment a.
func (pp *Pool) IsNullified(p *poly.Polynomial, v poly.VarID, a Assignment) bool {
	key := fmt.Sprintf("null|%d|%s", p.ID(), a.Hash())
	if cached, ok := pp.nullifiedCache[key]; ok {
		return cached
	}
	specialized := pp.polys.SubstituteRational(p, a)
	result := specialized.DegreeIn(v) <= 0 && specialized.IsZero()
	pp.nullifiedCache[key] = result
	return result
}

// IsZero reports whether p evaluates to exactly zero under the total
// assignment a (a must cover every variable of p including v).
func (pp *Pool) IsZero(p *poly.Polynomial, a Assignment) bool {
	return p.EvalRational(a).Sign() == 0
}

// InvalidateLevel drops every cached entry that could be affected by a
// change at level or above: resultants/discriminants of polynomials
// whose main variable is >= level, and every assignment-keyed root or
// nullification entry that assigns a variable >= level.
func (pp *Pool) InvalidateLevel(level poly.VarID) {
	for k, p := range pp.resultants {
		if mainVarAtLeast(p, level) {
			delete(pp.resultants, k)
		}
	}
	for id, p := range pp.discs {
		if mainVarAtLeast(p, level) {
			delete(pp.discs, id)
		}
	}
	pp.rootsByAssignment = map[string][]algebraic.Number{}
	pp.nullifiedCache = map[string]bool{}
}

func mainVarAtLeast(p *poly.Polynomial, level poly.VarID) bool {
	v, ok := p.MainVar()
	return ok && v >= level
}

func toUnivariate(pool *poly.Pool, p *poly.Polynomial, v poly.VarID) algebraic.Univariate {
	coeffs := pool.CoeffsIn(p, v)
	out := make(algebraic.Univariate, len(coeffs))
	for i, c := range coeffs {
		val, ok := c.ConstantValue()
		if !ok {
			panic("projection: toUnivariate called on a polynomial with unassigned lower variables")
		}
		out[i] = val
	}
	return out
}

func fromUnivariate(pool *poly.Pool, u algebraic.Univariate, v poly.VarID) *poly.Polynomial {
	coeffs := make([]*poly.Polynomial, len(u))
	for i, c := range u {
		coeffs[i] = pool.Const(c)
	}
	return pool.FromCoeffs(coeffs, v)
}

// sylvesterResultant computes res(p, q, v) as the determinant of the
// Sylvester matrix built from p and q's coefficient vectors in v, with
// entries in the polynomial ring of the remaining variables.
func sylvesterResultant(pool *poly.Pool, p, q *poly.Polynomial, v poly.VarID) *poly.Polynomial {
	m := p.DegreeIn(v)
	n := q.DegreeIn(v)
	if m == 0 && n == 0 {
		return pool.One()
	}
	pc := pool.CoeffsIn(p, v) // pc[i] = coeff of v^i, ascending
	qc := pool.CoeffsIn(q, v)
	size := m + n
	matrix := make([][]*poly.Polynomial, size)
	for i := range matrix {
		matrix[i] = make([]*poly.Polynomial, size)
		for j := range matrix[i] {
			matrix[i][j] = pool.Zero()
		}
	}
	// n rows of shifted p coefficients (descending degree m..0), then m
	// rows of shifted q coefficients (descending degree n..0).
	for r := 0; r < n; r++ {
		for i := 0; i <= m; i++ {
			matrix[r][r+i] = pc[m-i]
		}
	}
	for r := 0; r < m; r++ {
		for i := 0; i <= n; i++ {
			matrix[n+r][r+i] = qc[n-i]
		}
	}
	return determinant(pool, matrix)
}

// determinant computes the determinant of a square matrix of
// polynomials via cofactor expansion along the first row. This is
// exponential in matrix size, acceptable for the small Sylvester
// matrices a bounded-degree NRA/NIA input produces.
func determinant(pool *poly.Pool, m [][]*poly.Polynomial) *poly.Polynomial {
	n := len(m)
	if n == 0 {
		return pool.One()
	}
	if n == 1 {
		return m[0][0]
	}
	sum := pool.Zero()
	for j := 0; j < n; j++ {
		if m[0][j].IsZero() {
			continue
		}
		minor := make([][]*poly.Polynomial, n-1)
		for r := 1; r < n; r++ {
			row := make([]*poly.Polynomial, 0, n-1)
			for c := 0; c < n; c++ {
				if c == j {
					continue
				}
				row = append(row, m[r][c])
			}
			minor[r-1] = row
		}
		term := pool.Mul(m[0][j], determinant(pool, minor))
		if j%2 == 1 {
			term = pool.Neg(term)
		}
		sum = pool.Add(sum, term)
	}
	return sum
}
