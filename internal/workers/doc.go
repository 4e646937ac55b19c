/*
Package workers provides utilities for determining worker pool sizes in
containerized environments.

# Overview

When running Go applications in containers (Docker, Kubernetes, etc.), the
number of available CPUs may be limited by cgroup constraints. While Go 1.19+
automatically sets GOMAXPROCS based on container CPU limits, the commonly used
runtime.NumCPU() function still returns the host machine's CPU count.

This package provides helper functions that use GOMAXPROCS to determine
appropriate worker counts for different types of workloads, ensuring the
indexer respects container resource limits.

# Basic Usage

The package provides task-specific helper functions:

	import "bids-indexer/internal/workers"

	// For CPU-intensive tasks
	numWorkers := workers.ForCPU(8) // max 8 workers

	// For I/O-bound tasks (directory listing, sidecar reads)
	numWorkers := workers.ForIO(16) // max 16 workers

	// For mixed workloads (walk, parse, resolve)
	numWorkers := workers.ForMixed(12) // max 12 workers

Dataset indexing is a mixed workload: directory walking and sidecar reads
wait on I/O while filename parsing and metadata merging burn CPU, so the
pool defaults to ForMixed.

# CLI Mapping

The index command's --workers flag follows the convention that -1 means
"use all cores" and 0 means "run serially". FromFlag translates that
convention into a concrete count:

	numWorkers := workers.FromFlag(cfg.Workers)

# Environment Variable Override

All functions respect the INDEX_WORKERS environment variable, allowing
operators to override the automatic calculation:

	env:
	- name: INDEX_WORKERS
	  value: "4"

# Thread Safety

All functions in this package are safe for concurrent use. They read from
runtime.GOMAXPROCS and environment variables, which are themselves
thread-safe.
*/
package workers
