package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"newsgrid.app/grid/internal/cli"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	dayStart := defaultUTCDay()
	_, dayEnd := utcDayBounds(dayStart)

	stats, err := pool.QueryClusterStats(ctx, dayStart, dayEnd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query cluster stats: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	lastUpdate := ""
	if stats.LastClusterUpdate != nil {
		lastUpdate = formatUTCTimestamp(*stats.LastClusterUpdate)
	}

	rows := [][]string{
		{"stories", fmt.Sprintf("%d", stats.Stories)},
		{"clusters", fmt.Sprintf("%d", stats.Clusters)},
		{"clustered_stories", fmt.Sprintf("%d", stats.ClusteredStories)},
		{"unclustered_stories", fmt.Sprintf("%d", stats.UnclusteredStories)},
		{"joined_today", fmt.Sprintf("%d", stats.JoinedToday)},
		{"founded_today", fmt.Sprintf("%d", stats.FoundedToday)},
		{"largest_cluster", fmt.Sprintf("%d", stats.LargestCluster)},
		{"last_cluster_update", lastUpdate},
	}
	if err := writeTable([]string{"metric", "value"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render stats table: %v\n", err)
		return 1
	}

	return 0
}
