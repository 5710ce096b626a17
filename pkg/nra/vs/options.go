package vs

// Options configures one Engine.Check run. The zero value is usable,
// though PreferEquationOverAll's zero value (false) picks the lowest-id
// equation rather than the best-scored one; use DefaultOptions for the
// scored behavior every other Options field assumes.
type Options struct {
	// SnapEpsilonToRational resolves an open question: when a strict
	// inequality's root candidate is exactly rational, should the
	// PLUS_EPSILON witness snap to that rational value (losing the
	// "strictly past the boundary" distinction), or should the built
	// model nudge the witness by a small positive rational step so it
	// doesn't sit exactly on the excluded root? Decided false (not
	// snapped) by default, see DESIGN.md; GenerateCandidates and
	// Engine.buildModel both read this.
	SnapEpsilonToRational bool

	// PreferEquationOverAll ranks which single equation bestScored picks
	// when a conjunction has more than one equation over the variable
	// being eliminated: true (the default) scores candidates by
	// degree/monomial-count/linearity (conditionScore); false just picks
	// the lowest constraint id. Either way, using some equation's
	// candidates instead of an inequality's is mandatory for
	// termination, not something this flag controls.
	PreferEquationOverAll bool

	// MaxIterations aborts Check (returning Unknown) once the same
	// (eliminated variable, conjunction size, chosen-candidate
	// valuation) tuple recurs this many times in a row: the
	// termination-invariance safety net. Zero disables the check.
	MaxIterations int
}

// DefaultOptions returns the engine's default configuration.
func DefaultOptions() Options {
	return Options{MaxIterations: 10000, PreferEquationOverAll: true}
}
