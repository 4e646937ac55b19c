// Package startup handles serve-mode initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all serve-mode configuration and provides consistent
// logging throughout the application lifecycle. The index and find subcommands
// configure themselves from flags instead and do not use [LoadConfig].
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - INDEX_ROOTS: Comma-separated dataset roots to index (default: /data)
//   - OUTPUT_DIR: Directory for the index and run manifest (default: /index)
//   - OUTPUT_FORMAT: Index output format, sqlite or parquet (default: sqlite)
//   - SCHEMA_FILE: Entity rule file; empty uses the built-in rules
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - INDEX_INTERVAL: Full re-index interval as Go duration (default: 30m)
//   - POLL_INTERVAL: Change detection interval as Go duration (default: 30s)
//   - INDEX_WORKERS: Worker count override (default: sized from GOMAXPROCS)
//   - BATCH_SIZE: Rows per sink write (default: 500)
//   - INDEX_SUBJECTS: Comma-separated subject label globs (default: all)
//   - INDEX_EXCLUDE: Comma-separated relative path globs to skip
//   - EXCLUDE_DIRS: Comma-separated directory names to skip while walking
//   - INCREMENTAL: Reuse prior rows for unchanged datasets (default: true)
//   - PRUNE: Delete rows for vanished datasets, sqlite only (default: false)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: warn)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - MEMORY_LIMIT: Container memory limit for automatic GOMEMLIMIT configuration
//   - MEMORY_RATIO: Percentage of MEMORY_LIMIT for Go heap (default: 0.85)
//   - GOMEMLIMIT: Direct override for Go's memory limit
//
// # Directory Setup
//
// The package validates and creates required directories:
//   - Output directory: Required, must be writable
//   - Data roots: Checked but never created (read-only input, usually mounted)
//
// Roots with an s3:// prefix are logged and passed through untouched; remote
// listing is handled by the dataset walker.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// The package provides structured logging functions for consistent output:
//   - [LogSchemaInit]: Entity rule loading and rule counts
//   - [LogSinkInit]: Index output initialization timing
//   - [LogIndexerInit]: Indexer configuration and intervals
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
//   - [LogMemoryConfig]: Memory limit configuration
//
// # Example Usage
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//
//	// Initialize components...
//	startup.LogSchemaInit(ruleSource, entityCount, datatypeCount)
//	startup.LogIndexerInit(config.IndexInterval, config.PollInterval, config.Workers)
//
//	// Start server...
//	startup.LogServerStarted(startup.ServerConfig{
//	    Port:            config.Port,
//	    MetricsPort:     config.MetricsPort,
//	    MetricsEnabled:  config.MetricsEnabled,
//	    StartupDuration: time.Since(startTime),
//	})
//
//	// On shutdown...
//	startup.LogShutdownInitiated("SIGTERM")
//	// ... cleanup ...
//	startup.LogShutdownComplete()
package startup
