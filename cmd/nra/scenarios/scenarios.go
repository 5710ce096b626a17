// Package scenarios builds the worked examples used as the CLI's smoke
// suite: each one returns a ready-to-check *nra.Solver plus the outcome
// a correct implementation is expected to reach, for "nra check" to run
// and compare against.
package scenarios

import (
	"math/big"
	"sort"

	"github.com/polyrat/nra/pkg/nra"
	"github.com/polyrat/nra/pkg/nra/poly"
)

// Scenario is one named worked example.
type Scenario struct {
	Name     string
	Describe string
	Build    func() *nra.Solver
	Want     nra.Result
}

func rat(n, d int64) *big.Rat { return big.NewRat(n, d) }

var all = []Scenario{
	{
		Name:     "circle-point",
		Describe: "x^2 + 1 = 0 has no real root",
		Want:     nra.Unsat,
		Build: func() *nra.Solver {
			s := nra.NewSolver()
			x := s.Var("x")
			p := s.Pool()
			xsq := p.Mul(p.VarPoly(x), p.VarPoly(x))
			s.Assert(p.InternConstraint(p.Add(xsq, p.One()), poly.EQ))
			return s
		},
	},
	{
		Name:     "sqrt-two",
		Describe: "x^2 - 2 = 0 and x > 0 is satisfied by sqrt(2)",
		Want:     nra.Sat,
		Build: func() *nra.Solver {
			s := nra.NewSolver()
			x := s.Var("x")
			p := s.Pool()
			xsq := p.Mul(p.VarPoly(x), p.VarPoly(x))
			s.Assert(p.InternConstraint(p.Sub(xsq, p.Const(rat(2, 1))), poly.EQ))
			s.Assert(p.InternConstraint(p.VarPoly(x), poly.GREATER))
			return s
		},
	},
	{
		Name:     "hyperbola-antidiagonal",
		Describe: "x*y = 1 and x + y = 0 is unsatisfiable over the reals",
		Want:     nra.Unsat,
		Build: func() *nra.Solver {
			s := nra.NewSolver()
			x, y := s.Var("x"), s.Var("y")
			p := s.Pool()
			s.Assert(p.InternConstraint(p.Sub(p.Mul(p.VarPoly(x), p.VarPoly(y)), p.One()), poly.EQ))
			s.Assert(p.InternConstraint(p.Add(p.VarPoly(x), p.VarPoly(y)), poly.EQ))
			return s
		},
	},
	{
		Name:     "disk-halfplane",
		Describe: "x^2 + y^2 <= 1 and x + y >= 2 is unsatisfiable",
		Want:     nra.Unsat,
		Build: func() *nra.Solver {
			s := nra.NewSolver()
			x, y := s.Var("x"), s.Var("y")
			p := s.Pool()
			xsq := p.Mul(p.VarPoly(x), p.VarPoly(x))
			ysq := p.Mul(p.VarPoly(y), p.VarPoly(y))
			s.Assert(p.InternConstraint(p.Sub(p.Add(xsq, ysq), p.One()), poly.LEQ))
			s.Assert(p.InternConstraint(p.Sub(p.Add(p.VarPoly(x), p.VarPoly(y)), p.Const(rat(2, 1))), poly.GEQ))
			return s
		},
	},
	{
		Name:     "integer-divisible",
		Describe: "2x = 4 over the integers is satisfied at x = 2",
		Want:     nra.Sat,
		Build: func() *nra.Solver {
			s := nra.NewSolver()
			x := s.IntVar("x")
			p := s.Pool()
			s.Assert(p.InternConstraint(p.Sub(p.ScaleConst(p.VarPoly(x), rat(2, 1)), p.Const(rat(4, 1))), poly.EQ))
			return s
		},
	},
	{
		Name:     "integer-not-divisible",
		Describe: "2x = 5 over the integers has no witness",
		Want:     nra.Unsat,
		Build: func() *nra.Solver {
			s := nra.NewSolver()
			x := s.IntVar("x")
			p := s.Pool()
			s.Assert(p.InternConstraint(p.Sub(p.ScaleConst(p.VarPoly(x), rat(2, 1)), p.Const(rat(5, 1))), poly.EQ))
			return s
		},
	},
	{
		Name:     "cubic-roots",
		Describe: "(x-1)(x-2)(x-3) = 0 and x != 2 is satisfied at x = 1 or x = 3",
		Want:     nra.Sat,
		Build: func() *nra.Solver {
			s := nra.NewSolver()
			x := s.Var("x")
			p := s.Pool()
			xp := p.VarPoly(x)
			f1 := p.Sub(xp, p.One())
			f2 := p.Sub(xp, p.Const(rat(2, 1)))
			f3 := p.Sub(xp, p.Const(rat(3, 1)))
			cubic := p.Mul(p.Mul(f1, f2), f3)
			s.Assert(p.InternConstraint(cubic, poly.EQ))
			s.Assert(p.InternConstraint(p.Sub(xp, p.Const(rat(2, 1))), poly.NEQ))
			return s
		},
	},
}

// All returns every registered scenario, sorted by name.
func All() []Scenario {
	out := make([]Scenario, len(all))
	copy(out, all)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByName returns the scenario with the given name.
func ByName(name string) (Scenario, bool) {
	for _, s := range all {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}
