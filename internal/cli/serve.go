package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/johnlindquist/scriptkit-gpui/internal/catalog"
	"github.com/johnlindquist/scriptkit-gpui/internal/config"
	"github.com/johnlindquist/scriptkit-gpui/internal/mcpserve"
	"github.com/johnlindquist/scriptkit-gpui/internal/version"
)

// newServeCmd implements the `serve` subcommand (spec §6, §1 "MCP
// server"): exposes the script catalog over MCP stdio and, concurrently,
// a websocket status feed for a monitoring dashboard. The prompt runtime
// core never imports this package; it runs entirely behind
// mcpserve.CatalogSource.
func newServeCmd() *cobra.Command {
	var statusAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server exposing the script catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			kenvDir := cfg.KenvDir
			if kenvDir == "" {
				kenvDir = filepath.Join(config.KitDir(), "kenv")
			}

			entries, err := catalog.Scan(filepath.Join(kenvDir, "scripts"))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			source := newCatalogSource(entries, filepath.Join(kenvDir, "preload.ts"))
			events := mcpserve.NewBroadcaster()
			server := mcpserve.NewServer("scriptkit", version.Version, source, events)

			watcher, err := catalog.NewWatcher(filepath.Join(kenvDir, "scripts"))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			ctx := cmd.Context()
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return mcpserve.ServeStdio(ctx, server) })
			if statusAddr != "" {
				g.Go(func() error { return mcpserve.ServeStatus(ctx, statusAddr, events) })
			}
			g.Go(func() error {
				go watcher.Run(func(entries []catalog.Entry, revision uint64) {
					source.SetEntries(entries)
					events.Broadcast(mcpserve.ToolEvent{Tool: "catalog_refresh", StartedAt: time.Now(), ID: fmt.Sprintf("rev=%d", revision)})
				}, nil)
				<-ctx.Done()
				return watcher.Close()
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "Also serve a websocket status feed on this address (disabled when empty)")
	return cmd
}
