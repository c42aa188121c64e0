package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marxiv/marxiv/internal/dashboard"
	marxivsync "github.com/marxiv/marxiv/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live dashboard and search API",
	Long: `Start a local server exposing:

  /ws           WebSocket feed of settings and note changes
  /api/search   arXiv search proxy (q, start, max_results)
  /health       server health

Other marxiv processes share the same database, so changes they make are
picked up through the appearance cache watcher and broadcast to
connected clients.

Example usage:
  marxiv serve
  marxiv serve --addr localhost:9000`,
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		a.facade.Load(cmd.Context())

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.cfg.Serve.Addr
		}

		server := dashboard.NewServer(&dashboard.Config{
			Addr:   addr,
			Facade: a.facade,
			Search: newArxivClient(a.cfg),
			Logger: a.logger,
		})
		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start server: %v\n", err)
			os.Exit(1)
		}

		// Watch the appearance cache so writes from other marxiv processes
		// trigger a durable reload and a broadcast.
		watcher, err := marxivsync.NewCacheWatcher(a.facade)
		if err != nil {
			a.logger.Printf("Cache watcher unavailable: %v", err)
		} else if err := watcher.Start(); err != nil {
			a.logger.Printf("Cache watcher unavailable: %v", err)
		} else {
			defer watcher.Stop()
		}

		fmt.Printf("Dashboard on http://%s\n", server.Addr())
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", server.Addr())
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		fmt.Println("\nShutting down...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
