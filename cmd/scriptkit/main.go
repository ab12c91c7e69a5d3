// Command scriptkit is the host binary: it assembles the cobra command
// tree and maps a failing command into the exit codes spec §6 reserves
// for the script runtime's terminal outcomes.
//
// Grounded on the teacher's main.go (flat os.Exit-on-error wrapper,
// exec.ExitError passthrough), generalized from wrapping one fixed TUI
// command into running a cobra command tree whose subcommands signal
// their own exit code via *cli.ExitCodeError.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/johnlindquist/scriptkit-gpui/internal/cli"
)

func main() {
	root := cli.NewRootCmd()
	if err := root.Execute(); err != nil {
		var exitErr *cli.ExitCodeError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", exitErr.Err)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
