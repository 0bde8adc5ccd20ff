package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"newsgrid.app/grid/internal/cli"
	"newsgrid.app/grid/internal/clustering"
	"newsgrid.app/grid/internal/db"
	"newsgrid.app/grid/internal/logging"
)

// runDaemon runs cluster + prune on a fixed interval until SIGINT or
// SIGTERM. One pass runs immediately on startup.
func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	interval := fs.Duration("interval", 15*time.Minute, "Time between maintenance passes")
	passTimeout := fs.Duration("pass-timeout", 10*time.Minute, "Timeout for a single pass")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon does not accept positional arguments")
		return 2
	}
	if *interval <= 0 {
		fmt.Fprintln(os.Stderr, "--interval must be > 0")
		return 2
	}

	cfg, err := loadCLIConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("daemon failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	svc := newClusterService(pool, cfg, logger)
	logger.Info().Dur("interval", *interval).Msg("clustering daemon started")

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		runMaintenancePass(ctx, svc, logger, *passTimeout)

		select {
		case <-ctx.Done():
			logger.Info().Msg("clustering daemon stopping")
			return 0
		case <-ticker.C:
		}
	}
}

func runMaintenancePass(ctx context.Context, svc *clustering.Service, logger zerolog.Logger, timeout time.Duration) {
	passCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := svc.ClusterRecentStories(passCtx, 0, 0); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Msg("clustering pass failed")
	}
	if _, err := svc.PruneOldClusters(passCtx, 0); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Msg("prune pass failed")
	}
}
