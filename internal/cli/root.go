// Package cli assembles the host binary's cobra command tree (spec §6
// "CLI surface"): `run`, `serve`, `export-config`, `open-kit`.
//
// Grounded on the teacher's internal/cmd/root.go (NewRootCmd assembling a
// flat list of subcommands via cobra.Command.AddCommand) — the tree shape
// is kept, the subcommand surface is rewritten from the teacher's
// pod/bridge/role multi-agent CLI to this spec's single-launcher surface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/johnlindquist/scriptkit-gpui/internal/version"
)

// NewRootCmd creates the root cobra command with all subcommands wired.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "scriptkit",
		Short:         "Keyboard-first script launcher and prompt runtime",
		Long:          "Script Kit GPUI spawns a script as a child process and drives it through a sequence of prompts over a framed JSON-RPC channel.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newExportConfigCmd(),
		newOpenKitCmd(),
	)

	return rootCmd
}
