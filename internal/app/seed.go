package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"newsgrid.app/grid/internal/cli"
	"newsgrid.app/grid/internal/db"
	"newsgrid.app/grid/internal/logging"
	"newsgrid.app/grid/internal/seed"
)

func runSeed(args []string) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	file := fs.String("file", "", "Path to a JSON array of story seed documents")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "seed does not accept positional arguments")
		return 2
	}

	path := strings.TrimSpace(*file)
	if path == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		return 2
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read seed file %q: %v\n", path, err)
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
		logger.Error().Err(err).Msg("seed failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc := seed.NewService(pool, logger)
	stats, err := svc.SeedDocuments(ctx, raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seeding failed: %v\n", err)
		return 1
	}

	fmt.Printf(
		"read=%d inserted=%d skipped=%d errors=%d\n",
		stats.StoriesRead,
		stats.StoriesInserted,
		stats.StoriesSkipped,
		stats.Errors,
	)
	if stats.Errors > 0 {
		return 1
	}
	return 0
}
