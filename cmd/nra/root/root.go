package root

import (
	"github.com/spf13/cobra"

	"github.com/polyrat/nra/cmd/nra/check"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nra",
		Short: "nra decides quantifier-free nonlinear real/integer arithmetic formulas",
		Long: `nra is a small SMT-NRA/NIA decision procedure toolbox: an
equality-substitution preprocessor feeding a Virtual Substitution
engine, falling back to a Cylindrical Algebraic Decomposition core for
anything too high-degree for Virtual Substitution to eliminate.`,
	}

	rootCmd.AddCommand(check.NewCheckCommand())

	return rootCmd
}
