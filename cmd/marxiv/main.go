// marxiv is a terminal client for browsing arXiv and keeping a local,
// durable library of per-paper notes and preferences.
package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/marxiv/marxiv/internal/arxiv"
	"github.com/marxiv/marxiv/internal/config"
	"github.com/marxiv/marxiv/internal/store"
	"github.com/marxiv/marxiv/internal/sync"
	"github.com/marxiv/marxiv/internal/theme"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "marxiv",
	Short: "Browse arXiv and keep local notes on papers",
	Long: `marxiv is a research paper companion: search arXiv, keep notes
attached to papers, and carry your preferences in a local SQLite
database that survives reinstalls via export/import.`,
	SilenceUsage: true,
}

// app bundles the shared runtime objects commands need.
type app struct {
	cfg    *config.Config
	store  *store.Store
	facade *sync.Facade
	logger *log.Logger
}

// loadApp opens the database and seeds the settings facade. The caller
// must invoke close when done; it flushes pending background writes and
// checkpoints the database.
func loadApp() (*app, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger(cfg)

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	st.SetLogger(logger)

	cache := sync.NewFastCache(cfg.CachePath())
	facade := sync.New(st, cache,
		sync.WithLogger(logger),
		sync.WithThemeApplier(theme.Apply),
	)

	a := &app{cfg: cfg, store: st, facade: facade, logger: logger}
	cleanup := func() {
		facade.Flush()
		if err := st.Close(); err != nil {
			logger.Printf("Failed to close database: %v", err)
		}
	}
	return a, cleanup, nil
}

// newLogger builds the process logger. When a log file is configured it
// rotates via lumberjack and mirrors to stderr.
func newLogger(cfg *config.Config) *log.Logger {
	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	return log.New(out, "[marxiv] ", log.LstdFlags)
}

// newArxivClient builds the search client from configuration.
func newArxivClient(cfg *config.Config) *arxiv.Client {
	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}
	return arxiv.NewClient(cfg.Arxiv.BaseURL, httpClient)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/marxiv/config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
