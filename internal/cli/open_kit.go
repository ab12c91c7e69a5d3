package cli

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/johnlindquist/scriptkit-gpui/internal/config"
)

// newOpenKitCmd implements the `open-kit` subcommand (spec §6): opens the
// resolved kit directory in the user's configured editor, falling back to
// macOS's `open` when no editor is configured.
func newOpenKitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open-kit",
		Short: "Open the kit directory in an editor",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ResolveDir()
			if err != nil {
				return fmt.Errorf("open-kit: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("open-kit: %w", err)
			}

			editor := cfg.Editor
			if editor == "" {
				editor = "open"
			}
			c := exec.CommandContext(cmd.Context(), editor, dir)
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			c.Stdin = os.Stdin
			return c.Run()
		},
	}
}
