// Package main provides the entry point for the BIDS Indexer.
//
// BIDS Indexer walks directory trees of BIDS neuroimaging datasets and
// builds a flat, queryable table of their files: one row per data
// file, with the filename entities, the datatype, acquisition metadata
// aggregated from JSON sidecars, and file facts. The same engine runs
// as a one-shot CLI or as a long-lived service.
//
// # Commands
//
// The binary dispatches on its first argument:
//
//   - index: one-shot run over the given roots, then exit
//   - find: dataset discovery only, one line per dataset
//   - serve: long-running service with an HTTP API
//   - version: print version and build information
//
// # Service Lifecycle
//
// serve follows a structured initialization sequence:
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or cgroup limits
//  2. Configuration Loading: Reads environment variables and validates them
//  3. Schema Initialization: Loads the entity rules (built-in or from a YAML file)
//  4. Output Probe: Opens and closes a sink so a bad output path fails the boot
//  5. Component Initialization:
//     - Memory Monitor: Pauses workers under memory pressure
//     - Indexer: Initial run in the background plus change and interval triggers
//     - Metrics Collector: Feeds index gauges from the last run report
//  6. HTTP Server Setup: Configures routes, middleware, and starts servers
//  7. Graceful Shutdown: Handles SIGINT/SIGTERM, stops components in order
//
// # Background Services
//
// Several goroutines run throughout the service lifetime:
//
//   - Initial index run, started before the HTTP server comes up
//   - Change-detection poller probing the root mtimes and entry counts
//   - Periodic re-index ticker (when INDEX_INTERVAL is set)
//   - Memory monitor sampling allocation against GOMEMLIMIT
//   - Metrics collector updating the index gauges every minute
//
// # HTTP Server
//
// serve runs up to two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - /health, /healthz: detailed health report
//     - /livez: lightweight liveness probe (GET and HEAD)
//     - /readyz: readiness, 503 until the first run completes
//     - /version: version and build information
//     - /metrics: Prometheus exposition
//     - POST /api/index: trigger a run, 409 while one is active
//     - GET /api/stats: last run report and live progress
//
//  2. Metrics Server (default port 9090, optional):
//     - /metrics on a separate listener for scrape isolation
//
// # Environment Variables
//
// serve is configured through environment variables:
//
//   - INDEX_ROOTS: comma-separated dataset roots, local paths or s3:// URLs (default: /data)
//   - OUTPUT_DIR: directory for the table and its manifest (default: /index)
//   - OUTPUT_FORMAT: sqlite or parquet (default: sqlite)
//   - SCHEMA_FILE: entity rules YAML (default: built-in rules)
//   - PORT: main HTTP server port (default: 8080)
//   - METRICS_PORT: metrics server port (default: 9090)
//   - METRICS_ENABLED: enable the metrics server (default: true)
//   - INDEX_INTERVAL: periodic re-index interval (default: 30m)
//   - POLL_INTERVAL: change-detection probe interval (default: 30s)
//   - WORKERS: concurrent dataset builds (default: one per CPU)
//   - SUBJECTS, EXCLUDE, EXCLUDE_DIRS: comma-separated glob filters
//   - INCREMENTAL, PRUNE: manifest-driven change skipping and row removal
//   - LOG_LEVEL: logging level (debug/info/warn/error)
//   - GOMEMLIMIT / MEMORY_LIMIT: memory limit (auto-detected from cgroups if not set)
//
// The one-shot commands take the same knobs as flags instead; run
// 'bids-indexer index -h' for the list.
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the service stops in order: cancel the run
// context so no new indexing starts, stop the metrics collector and
// the memory monitor, drain the metrics server, then drain the main
// server with a 30s timeout.
// A one-shot run interrupted by a signal stops at its next checkpoint
// without committing further batches.
//
// # Build Requirements
//
// The sqlite sink requires CGO:
//
//	CGO_ENABLED=1 go build -o bids-indexer ./cmd/bids-indexer
//
// The parquet sink is pure Go.
//
// # Related Packages
//
//   - [bids-indexer/internal/dataset]: dataset discovery and walking
//   - [bids-indexer/internal/entities]: filename entity parsing
//   - [bids-indexer/internal/sidecar]: JSON sidecar metadata resolution
//   - [bids-indexer/internal/table]: sqlite and parquet sinks, snapshot manifest
//   - [bids-indexer/internal/indexer]: run orchestration and serve-mode triggers
//   - [bids-indexer/internal/handlers]: HTTP request handlers
//   - [bids-indexer/internal/middleware]: HTTP middleware (logging, metrics, compression)
//   - [bids-indexer/internal/startup]: configuration and initialization logging
package main
