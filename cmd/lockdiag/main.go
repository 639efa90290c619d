package main

import (
	"errors"
	"os"

	"lockdiag/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		if errors.Is(err, cli.ErrNotElevated) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
