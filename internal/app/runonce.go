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

// runOnce runs one full maintenance pass: cluster, then prune.
func runOnce(args []string) int {
	fs := flag.NewFlagSet("run-once", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "run-once does not accept positional arguments")
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
		logger.Error().Err(err).Msg("run-once failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc := newClusterService(pool, cfg, logger)

	clusterStats, err := svc.ClusterRecentStories(ctx, 0, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Clustering failed: %v\n", err)
		return 1
	}
	printClusterStats(clusterStats)

	pruneStats, err := svc.PruneOldClusters(ctx, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Prune failed: %v\n", err)
		return 1
	}
	fmt.Printf("clusters_deleted=%d\n", pruneStats.ClustersDeleted)

	return 0
}
