package check

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polyrat/nra/cmd/nra/scenarios"
	"github.com/polyrat/nra/pkg/nra/dispatch"
)

// Exit codes at the CLI boundary (spec.md §7): 0 for a decided result
// that matched the scenario's own expectation, 1 for an unmet
// expectation or genuine UNKNOWN, 2 for malformed/unsupported input, 3
// for an internal invariant violation recovered at the dispatcher
// boundary.
const (
	ExitUnmetOrUnknown = 1
	ExitRejected       = 2
	ExitInternal       = 3
)

// ExitError carries the process exit code a cobra.Command's RunE wants
// main to use, since cobra itself only distinguishes "error" from
// "no error".
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// NewCheckCommand returns the "check" subcommand: run one or all of the
// built-in worked scenarios and report sat/unsat/unknown per scenario.
func NewCheckCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "check [scenario]",
		Short: "Decide one of the built-in worked scenarios",
		Long: `check runs a named scenario (or, with --all, every scenario) through
the module dispatcher and reports the outcome, exiting nonzero if the
scenario's own expectation was not met.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return runAll(cmd)
			}
			if len(args) != 1 {
				return fmt.Errorf("check: exactly one scenario name is required unless --all is set")
			}
			return runOne(cmd, args[0])
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "run every built-in scenario")
	return cmd
}

func runAll(cmd *cobra.Command) error {
	var worst *ExitError
	for _, sc := range scenarios.All() {
		if err := runOne(cmd, sc.Name); err != nil {
			var ee *ExitError
			if errors.As(err, &ee) {
				if worst == nil || ee.Code > worst.Code {
					worst = ee
				}
				continue
			}
			return err
		}
	}
	if worst != nil {
		return worst
	}
	return nil
}

func runOne(cmd *cobra.Command, name string) error {
	sc, ok := scenarios.ByName(name)
	if !ok {
		return fmt.Errorf("check: unknown scenario %q", name)
	}
	return report(cmd, sc)
}

// report runs one scenario and prints its outcome, returning an
// *ExitError carrying the CLI boundary's exit code whenever the
// scenario did not cleanly confirm its own expectation.
func report(cmd *cobra.Command, sc scenarios.Scenario) error {
	s := sc.Build()
	res, err := s.Check(context.Background())
	switch {
	case errors.Is(err, dispatch.ErrMalformedInput), errors.Is(err, dispatch.ErrUnsupportedConstruct):
		fmt.Fprintf(cmd.OutOrStdout(), "%-24s rejected: %v\n", sc.Name, err)
		return &ExitError{Code: ExitRejected, Err: err}
	case errors.Is(err, dispatch.ErrInternalInvariant):
		fmt.Fprintf(cmd.OutOrStdout(), "%-24s internal: %v\n", sc.Name, err)
		return &ExitError{Code: ExitInternal, Err: err}
	case err != nil:
		return &ExitError{Code: ExitInternal, Err: err}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-6s (want %s) -- %s\n", sc.Name, res, sc.Want, sc.Describe)
	if res != sc.Want {
		return &ExitError{Code: ExitUnmetOrUnknown, Err: fmt.Errorf("%s: got %s, want %s", sc.Name, res, sc.Want)}
	}
	return nil
}
