package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "cluster":
		return runCluster(args[1:])
	case "prune":
		return runPrune(args[1:])
	case "run-once":
		return runOnce(args[1:])
	case "daemon":
		return runDaemon(args[1:])
	case "seed":
		return runSeed(args[1:])
	case "stats":
		return runStats(args[1:])
	case "clusters":
		return runClusters(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "grid CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  grid <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  cluster   Assign recent unclustered stories to clusters")
	fmt.Fprintln(os.Stderr, "  prune     Delete clusters with no recent activity")
	fmt.Fprintln(os.Stderr, "  run-once  Run cluster + prune in sequence")
	fmt.Fprintln(os.Stderr, "  daemon    Run cluster + prune on a fixed interval")
	fmt.Fprintln(os.Stderr, "  seed      Load stories from a JSON seed file")
	fmt.Fprintln(os.Stderr, "  stats     Print clustering statistics")
	fmt.Fprintln(os.Stderr, "  clusters  List clusters, or show one with --uuid")
	fmt.Fprintln(os.Stderr, "  serve     Start Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"grid <command> -h\" for command-specific flags.")
}
