package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"newsgrid.app/grid/internal/cli"
	"newsgrid.app/grid/internal/db"
)

func runClusters(args []string) int {
	fs := flag.NewFlagSet("clusters", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	limit := fs.Int("limit", 20, "Maximum clusters to list")
	offset := fs.Int("offset", 0, "Clusters to skip")
	clusterUUID := fs.String("uuid", "", "Show one cluster with its members")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "clusters does not accept positional arguments")
		return 2
	}
	if *limit <= 0 || *limit > 500 {
		fmt.Fprintln(os.Stderr, "--limit must be between 1 and 500")
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

	if uuid := strings.TrimSpace(*clusterUUID); uuid != "" {
		detail, err := pool.GetClusterDetail(ctx, uuid)
		if err != nil {
			if db.IsNoRows(err) {
				fmt.Fprintf(os.Stderr, "Cluster %s not found\n", uuid)
				return 1
			}
			fmt.Fprintf(os.Stderr, "Failed to load cluster: %v\n", err)
			return 1
		}
		return printClusterDetail(detail, outputFormat)
	}

	clusters, err := pool.ListClusters(ctx, db.ClusterListOptions{
		Limit:  *limit,
		Offset: *offset,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list clusters: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(clusters); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(clusters))
	for _, c := range clusters {
		rows = append(rows, []string{
			c.ClusterUUID,
			truncateForTable(c.RepresentativeTitle, 60),
			fmt.Sprintf("%d", c.StoryCount),
			fmt.Sprintf("%d", c.CountryCount),
			truncateForTable(strings.Join(c.DominantTags, ","), 40),
			formatUTCTimestamp(c.LastPubDate),
		})
	}
	if err := writeTable(
		[]string{"cluster_uuid", "representative_title", "stories", "countries", "dominant_tags", "last_pub_date"},
		rows,
	); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render cluster table: %v\n", err)
		return 1
	}
	return 0
}

func printClusterDetail(detail *db.ClusterDetail, outputFormat string) int {
	if outputFormat == outputFormatJSON {
		if err := printJSON(detail); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	c := detail.Cluster
	fmt.Printf("cluster_uuid=%s stories=%d countries=%d tags=%s\n",
		c.ClusterUUID, c.StoryCount, c.CountryCount, strings.Join(c.DominantTags, ","))
	fmt.Printf("first_pub_date=%s last_pub_date=%s\n",
		formatUTCTimestamp(c.FirstPubDate), formatUTCTimestamp(c.LastPubDate))
	fmt.Println()

	rows := make([][]string, 0, len(detail.Members))
	for _, m := range detail.Members {
		category := ""
		if m.CategoryName != nil {
			category = *m.CategoryName
		}
		rows = append(rows, []string{
			truncateForTable(m.Title, 60),
			m.PublisherName,
			category,
			fmt.Sprintf("%.3f", m.Similarity),
			formatUTCTimestamp(m.PubDate),
		})
	}
	if err := writeTable(
		[]string{"title", "publisher", "category", "similarity", "pub_date"},
		rows,
	); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render member table: %v\n", err)
		return 1
	}
	return 0
}
