package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"newsgrid.app/grid/internal/cli"
	"newsgrid.app/grid/internal/clustering"
	"newsgrid.app/grid/internal/config"
	"newsgrid.app/grid/internal/db"
	"newsgrid.app/grid/internal/logging"
)

func runCluster(args []string) int {
	fs := flag.NewFlagSet("cluster", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	hours := fs.Int("hours", 0, "Clustering window in hours (0 = configured default)")
	batchSize := fs.Int("batch-size", 0, "Stories per run (0 = configured default)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "cluster does not accept positional arguments")
		return 2
	}
	if *hours < 0 {
		fmt.Fprintln(os.Stderr, "--hours must be >= 0")
		return 2
	}
	if *batchSize < 0 {
		fmt.Fprintln(os.Stderr, "--batch-size must be >= 0")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
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
		logger.Error().Err(err).Msg("cluster failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc := newClusterService(pool, cfg, logger)
	stats, err := svc.ClusterRecentStories(ctx, *hours, *batchSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Clustering failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	printClusterStats(stats)
	return 0
}

func newClusterService(pool *db.Pool, cfg *config.Config, logger zerolog.Logger) *clustering.Service {
	return clustering.NewService(pool.ClusterStore(), cfg.Clustering(), logger)
}

func printClusterStats(stats clustering.ClusterStats) {
	fmt.Printf(
		"processed=%d clustered=%d new_clusters=%d errors=%d\n",
		stats.StoriesProcessed,
		stats.StoriesClustered,
		stats.NewClusters,
		stats.Errors,
	)
}
