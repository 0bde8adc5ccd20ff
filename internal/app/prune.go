package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"newsgrid.app/grid/internal/cli"
	"newsgrid.app/grid/internal/db"
	"newsgrid.app/grid/internal/logging"
)

func runPrune(args []string) int {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	days := fs.Int("days", 0, "Prune clusters idle for this many days (0 = configured default)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "prune does not accept positional arguments")
		return 2
	}
	if *days < 0 {
		fmt.Fprintln(os.Stderr, "--days must be >= 0")
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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("prune failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc := newClusterService(pool, cfg, logger)
	stats, err := svc.PruneOldClusters(ctx, *days)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Prune failed: %v\n", err)
		return 1
	}

	fmt.Printf("clusters_deleted=%d\n", stats.ClustersDeleted)
	return 0
}
