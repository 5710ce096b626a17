package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/polyrat/nra/cmd/nra/check"
	"github.com/polyrat/nra/cmd/nra/root"
)

func main() {
	rootCmd := root.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ee *check.ExitError
		if errors.As(err, &ee) {
			os.Exit(ee.Code)
		}
		os.Exit(1)
	}
}
