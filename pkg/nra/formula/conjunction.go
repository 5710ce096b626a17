package formula

import "github.com/polyrat/nra/pkg/nra/poly"

// FlattenConjunction reports whether id is (a conjunction reducible to)
// a flat list of constraint literals — TRUE, a single CONSTRAINT, or an
// AND of such — and if so returns that list. NOT(CONSTRAINT) is
// accepted too, turned into the pool's negated constraint, so that a
// conjunction of literals (not just of bare atoms) is recognized. This
// is the shape the CAD and VS engines consume directly as their
// `check(constraints, ...)` input; any other Boolean structure must
// first be resolved by pkg/nra/boolabs.
func FlattenConjunction(a *Arena, id ID) ([]*poly.Constraint, bool) {
	var out []*poly.Constraint
	var rec func(ID) bool
	rec = func(cur ID) bool {
		switch a.Kind(cur) {
		case TRUE:
			return true
		case CONSTRAINT:
			c, ok := a.ConstraintOf(cur)
			if !ok {
				return false
			}
			out = append(out, c)
			return true
		case NOT:
			child := a.Children(cur)[0]
			if a.Kind(child) != CONSTRAINT {
				return false
			}
			c, ok := a.ConstraintOf(child)
			if !ok {
				return false
			}
			out = append(out, a.pool.Negate(c))
			return true
		case AND:
			for _, c := range a.Children(cur) {
				if !rec(c) {
					return false
				}
			}
			return true
		default:
			return false
		}
	}
	if !rec(id) {
		return nil, false
	}
	return out, true
}
