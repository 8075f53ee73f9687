package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lakeops/metalake/internal/analytics"
	"github.com/lakeops/metalake/internal/collector"
	"github.com/lakeops/metalake/internal/metrics"
	"github.com/lakeops/metalake/internal/report"
	"github.com/lakeops/metalake/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled analytics with a metrics endpoint",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Graceful shutdown handler
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	state, err := analytics.NewStateManager(cfg.Serve.StateDir)
	if err != nil {
		return err
	}

	runner := analytics.NewRunner(store, collector.New(store, store),
		report.NewAnalyst(newAnalystModel(cfg)), reportOptions(cfg))
	scheduler := analytics.NewScheduler(runner, state, cfg.Serve.Interval, cfg.Serve.Lookback,
		analytics.RunOptions{
			Prefix:      cfg.Collector.Prefix,
			MaxResults:  cfg.Collector.MaxResults,
			Parallelism: cfg.Collector.Parallelism,
		})

	slog.Info("metalake serving",
		"version", version.String(),
		"interval", cfg.Serve.Interval,
		"metrics", cfg.Metrics.Enabled,
	)

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}
