// Package linear implements a shared linear backend interface used by
// both CAD (delegated linear feasibility checks over a cell's
// constraints) and VS (variable-bound pruning during test-candidate
// generation). A full LRA tableau is an out-of-scope external
// collaborator; this package ships one lightweight concrete
// implementation — exact Fourier–Motzkin elimination over big.Rat —
// behind the same Backend interface.
package linear

import (
	"context"
	"math/big"

	"github.com/polyrat/nra/pkg/nra/poly"
)

// LinearAtom is a single linear constraint sum(coeff[v]*v) + constant
// REL 0, extracted from a poly.Constraint whose polynomial has degree at
// most 1 in every variable.
type LinearAtom struct {
	Coeffs   map[poly.VarID]*big.Rat
	Constant *big.Rat
	Rel      poly.Relation
	Origin   *poly.Constraint // the constraint this atom was extracted from, for conflict reporting
}

// FromConstraint extracts a LinearAtom from c, and reports false if c is
// not linear (degree > 1 in some variable).
func FromConstraint(pool *poly.Pool, c *poly.Constraint) (LinearAtom, bool) {
	coeffs := map[poly.VarID]*big.Rat{}
	constant := new(big.Rat)
	for _, t := range c.Poly.Terms() {
		if len(t.Exp) == 0 {
			constant.Add(constant, t.Coeff)
			continue
		}
		if len(t.Exp) > 1 {
			return LinearAtom{}, false
		}
		for v, e := range t.Exp {
			if e != 1 {
				return LinearAtom{}, false
			}
			if existing, ok := coeffs[v]; ok {
				coeffs[v] = new(big.Rat).Add(existing, t.Coeff)
			} else {
				coeffs[v] = new(big.Rat).Set(t.Coeff)
			}
		}
	}
	return LinearAtom{Coeffs: coeffs, Constant: constant, Rel: c.Rel, Origin: c}, true
}

// Bound is a (possibly one-sided) rational bound on a single variable:
// Low <= v <= High, with strictness flags. A nil Low/High means
// unbounded on that side.
type Bound struct {
	Low, High             *big.Rat
	LowStrict, HighStrict bool
}

// Backend is the interface consumed by the CAD core and the VS engine.
type Backend interface {
	// Feasible reports whether the conjunction of atoms is linearly
	// feasible over the reals and, if so, returns a witness point for
	// every variable that occurs.
	Feasible(ctx context.Context, atoms []LinearAtom) (bool, map[poly.VarID]*big.Rat, error)

	// TightenBounds derives, for every variable occurring in atoms, the
	// tightest box implied by the linear atoms alone.
	TightenBounds(ctx context.Context, atoms []LinearAtom) (map[poly.VarID]Bound, error)

	// Conflict returns a minimal-effort subset of atoms sufficient to
	// explain infeasibility, for the last Feasible call that returned
	// false. Returns nil if the backend has no better explanation than
	// "all of them".
	Conflict(atoms []LinearAtom) []LinearAtom
}

// Option configures a Backend built by NewBackend, mirroring the
// teacher's functional-options constructor
// (internal/solver/solver.go's NewSolver/Option/WithInput/WithTracer).
type Option func(*fmBackend) error

// NewBackend returns the default Fourier–Motzkin-elimination Backend.
func NewBackend(options ...Option) (Backend, error) {
	b := &fmBackend{}
	for _, opt := range append(options, defaults...) {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// WithEpsilon overrides the rational slack used when reporting a witness
// for a strict inequality (default 1/2).
func WithEpsilon(eps *big.Rat) Option {
	return func(b *fmBackend) error {
		b.epsilon = eps
		return nil
	}
}

var defaults = []Option{
	func(b *fmBackend) error {
		if b.epsilon == nil {
			b.epsilon = big.NewRat(1, 2)
		}
		return nil
	},
}
