package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bids-indexer/internal/logging"
	"bids-indexer/internal/startup"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "index":
		os.Exit(runIndex(signalContext(), args))
	case "find":
		os.Exit(runFind(signalContext(), args))
	case "serve":
		runServe()
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		// Sanitize command input using allowlist to break taint chain
		sanitized := sanitizeCommand(command)
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitized) //nolint:gosec // G705 - input is sanitized via allowlist in sanitizeCommand; only [a-zA-Z0-9_-] characters pass through
		printUsage()
		os.Exit(1)
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM. A run
// in flight sees the cancellation at its next checkpoint, commits
// nothing further and returns; serve mode does not use this because it
// owns a full graceful-shutdown sequence instead.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()
	return ctx
}

// setVerbosity maps the -v/-vv flags onto the log level. Without either
// flag the level stays wherever LOG_LEVEL or DEBUG put it.
func setVerbosity(verbose, debug bool) {
	switch {
	case debug:
		logging.SetVerbosity(2)
	case verbose:
		logging.SetVerbosity(1)
	}
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printVersion() {
	info := startup.GetBuildInfo()
	fmt.Printf("bids-indexer %s\n", info.Version)
	fmt.Printf("  commit:     %s\n", info.Commit)
	fmt.Printf("  built:      %s\n", info.BuildTime)
	fmt.Printf("  go version: %s\n", info.GoVersion)
	fmt.Printf("  platform:   %s/%s\n", info.OS, info.Arch)
}

func printUsage() {
	fmt.Println("BIDS Indexer")
	fmt.Println("")
	fmt.Println("Usage: bids-indexer <command> [flags] [args]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  index    - Index dataset roots into a sqlite or parquet table")
	fmt.Println("  find     - List the datasets under a root without indexing them")
	fmt.Println("  serve    - Run the indexing service with an HTTP API")
	fmt.Println("  version  - Print version and build information")
	fmt.Println("")
	fmt.Println("Run 'bids-indexer <command> -h' for the flags of a command.")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  bids-indexer index -output index.db /data/openneuro")
	fmt.Println("  bids-indexer index -output tables/ -format parquet s3://bucket/datasets")
	fmt.Println("  bids-indexer find -exclude-dirs sourcedata /data")
}
