// Package main is the entry point for the gfxsync agent binary.
// It wires all internal packages together and starts the sync pipeline.
//
// Startup sequence:
//  1. Parse CLI flags
//  2. Load configuration (defaults < config file < env vars)
//  3. Build logger
//  4. Build the agent (retry queue, uploader, watcher, debouncer, retry loop)
//  5. Acquire the single-instance lock and start the pipeline
//  6. Block until SIGINT/SIGTERM, then graceful shutdown
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pgfx-sync/agent/internal/agent"
	"github.com/pgfx-sync/agent/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:     "gfxsync",
		Short:   "gfxsync — one-way PokerGFX export sync agent",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Long: `gfxsync watches a directory for PokerGFX live-data-export JSON files
and forwards each new or modified file, exactly once, to a remote
relational backend. It tolerates network outages and process restarts
without losing files or uploading duplicates.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: ./gfxsync.yaml or $XDG_CONFIG_HOME/gfxsync/config.yaml)")
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gfxsync %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, configPath string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := agent.BuildLogger(settings.LogLevel, settings.LogPath)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting gfxsync agent",
		zap.String("version", version),
		zap.String("watch_path", settings.WatchPath),
		zap.String("remote_url", settings.RemoteURL),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := agent.New(settings, logger)
	if err != nil {
		return fmt.Errorf("building agent: %w", err)
	}

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("starting agent: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping agent")

	if err := a.Stop(); err != nil {
		return fmt.Errorf("stopping agent: %w", err)
	}

	logger.Info("gfxsync agent stopped")
	return nil
}
