// Command stripe validates, executes and inspects Stripe tensor programs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/stripe/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "stripe: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
