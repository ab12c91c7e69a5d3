package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/johnlindquist/scriptkit-gpui/internal/config"
)

// newExportConfigCmd implements the `export-config` subcommand (spec §6):
// writes the fully resolved (file + environment layered) configuration as
// TOML, either to stdout or to a file named with --out.
//
// Grounded on the teacher's own config-dump helpers; the TOML encoding
// choice is internal/config's, not new here.
func newExportConfigCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export-config",
		Short: "Print the resolved configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("export-config: %w", err)
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("export-config: %w", err)
				}
				defer f.Close()
				w = f
			}
			return config.ExportConfig(w, cfg)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Write to this file instead of stdout")
	return cmd
}
