// Package metrics provides Prometheus instrumentation for the bids-indexer
// application.
//
// This package defines and exposes various metrics that can be scraped by
// Prometheus to monitor the health, performance, and behavior of the indexer.
// All metrics are prefixed with "bids_indexer_" to avoid naming collisions
// with other applications.
//
// # Metric Categories
//
// The metrics are organized into the following categories:
//
// ## HTTP Metrics
//
// Track HTTP request performance and error rates in serve mode:
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Storage Metrics
//
// Monitor storage backend operations (local filesystem and S3):
//   - StorageOperationDuration: Histogram of operation duration by backend and operation
//   - StorageOperationErrors: Counter of failed operations by backend and operation
//   - StorageRetryAttempts: Counter of retry attempts
//   - StorageRetrySuccess: Counter of operations that succeeded after retrying
//   - StorageRetryFailures: Counter of operations that exhausted their retries
//   - StorageStaleErrors: Counter of stale file handle errors (NFS)
//
// ## Indexer Metrics
//
// Track index run lifecycle and throughput:
//   - IndexerRunsTotal: Counter of index runs
//   - IndexerLastRunTimestamp: Gauge of last run time
//   - IndexerLastRunDuration: Gauge of last run duration
//   - IndexerIsRunning: Gauge indicating if a run is active
//   - IndexerRowsEmitted: Counter of index rows produced
//   - IndexerFilesSkipped: Counter of skipped files by reason
//   - IndexerParseFailures: Counter of filename parse failures by kind
//   - IndexerDatasetsIndexed: Counter of datasets indexed successfully
//   - IndexerDatasetsFailed: Counter of datasets that failed to index
//
// ## Sidecar Metrics
//
// Monitor JSON sidecar metadata resolution:
//   - SidecarReadsTotal: Counter of sidecar files read from storage
//   - SidecarCacheHits: Counter of sidecar cache hits
//   - SidecarCacheMisses: Counter of sidecar cache misses
//   - SidecarWarnings: Counter of sidecar warnings (malformed JSON, ties)
//
// ## Snapshot Metrics
//
// Track incremental indexing against the previous snapshot:
//   - SnapshotEntriesLoaded: Gauge of entries loaded from the previous snapshot
//   - SnapshotUnchangedSkips: Counter of files skipped as unchanged
//
// ## Sink Metrics
//
// Monitor index output writes:
//   - SinkRowsWritten: Counter of rows written by format (parquet/sqlite)
//   - SinkBatchesWritten: Counter of write batches by format
//   - SinkWriteDuration: Histogram of write duration by format
//
// ## Index Totals
//
// Gauges reflecting the current index contents, refreshed by the [Collector]:
//   - IndexRowsTotal: Gauge of rows in the current index
//   - IndexDatasetsTotal: Gauge of datasets in the current index
//   - IndexFailuresTotal: Gauge of failure log entries by category
//
// ## Memory Metrics
//
// Monitor Go runtime memory and pressure, updated by the memory monitor:
//   - MemoryUsageRatio: Gauge of memory usage as ratio of limit (0.0-1.0)
//   - MemoryPaused: Gauge indicating if indexing is paused due to memory pressure
//   - MemoryGCPauses: Counter of times indexing was paused for memory
//   - GoMemLimit: Gauge of configured GOMEMLIMIT
//   - GoMemAllocBytes: Gauge of current heap allocation
//   - GoMemSysBytes: Gauge of total memory from OS
//   - GoGCRuns: Counter of completed GC cycles
//
// ## Application Info
//
// Expose build information:
//   - AppInfo: Gauge with version, commit, and Go version labels
//
// # Usage
//
// Metrics are automatically registered with the default Prometheus registry
// using promauto. To expose them, mount the promhttp.Handler() on your
// metrics endpoint:
//
//	import "github.com/prometheus/client_golang/prometheus/promhttp"
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// # Recording Metrics
//
// To record metrics from other packages, import this package and use the
// exported metric variables:
//
//	import "bids-indexer/internal/metrics"
//
//	// Increment a counter
//	metrics.IndexerRowsEmitted.Inc()
//
//	// Observe a histogram value
//	metrics.SinkWriteDuration.WithLabelValues("parquet").Observe(0.123)
//
//	// Set a gauge value
//	metrics.IndexRowsTotal.Set(5000)
//
// # Collector
//
// The package provides a [Collector] type that periodically gathers
// statistics from a [StatsProvider] and updates the index total gauges:
//
//	collector := metrics.NewCollector(statsProvider, 1*time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Example PromQL queries for common use cases:
//
// Rows indexed per second:
//
//	rate(bids_indexer_indexer_rows_emitted_total[5m])
//
// Parse failure rate by kind:
//
//	sum(rate(bids_indexer_indexer_parse_failures_total[5m])) by (kind)
//
// P95 storage read latency on S3:
//
//	histogram_quantile(0.95, sum(rate(bids_indexer_storage_operation_duration_seconds_bucket{backend="s3"}[5m])) by (le, operation))
//
// Sidecar cache hit rate:
//
//	rate(bids_indexer_sidecar_cache_hits_total[5m]) /
//	(rate(bids_indexer_sidecar_cache_hits_total[5m]) + rate(bids_indexer_sidecar_cache_misses_total[5m]))
//
// Incremental skip efficiency (unchanged files per run):
//
//	rate(bids_indexer_snapshot_unchanged_skips_total[1h]) /
//	rate(bids_indexer_indexer_runs_total[1h])
package metrics
