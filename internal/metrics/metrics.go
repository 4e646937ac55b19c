package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bids_indexer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bids_indexer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bids_indexer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Storage metrics
var (
	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bids_indexer_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "operation"},
	)

	StorageOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bids_indexer_storage_operation_errors_total",
			Help: "Total number of failed storage operations",
		},
		[]string{"backend", "operation"},
	)

	StorageRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bids_indexer_storage_retry_attempts_total",
			Help: "Total number of storage operation retries",
		},
		[]string{"backend", "operation"},
	)

	StorageRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bids_indexer_storage_retry_success_total",
			Help: "Total number of storage operations that succeeded after retrying",
		},
		[]string{"backend", "operation"},
	)

	StorageRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bids_indexer_storage_retry_failures_total",
			Help: "Total number of storage operations that exhausted their retries",
		},
		[]string{"backend", "operation"},
	)

	StorageStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bids_indexer_storage_stale_errors_total",
			Help: "Total number of stale file handle errors",
		},
		[]string{"backend", "operation"},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bids_indexer_runs_total",
			Help: "Total number of indexing runs",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bids_indexer_last_run_timestamp",
			Help: "Timestamp of the last indexing run",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bids_indexer_last_run_duration_seconds",
			Help: "Duration of the last indexing run in seconds",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bids_indexer_running",
			Help: "Whether an indexing run is in progress (1 = running, 0 = idle)",
		},
	)

	IndexerRowsEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bids_indexer_rows_emitted_total",
			Help: "Total number of index rows emitted",
		},
	)

	IndexerFilesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bids_indexer_files_skipped_total",
			Help: "Total number of files skipped, by reason",
		},
		[]string{"reason"},
	)

	IndexerParseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bids_indexer_parse_failures_total",
			Help: "Total number of filename parse failures, by kind",
		},
		[]string{"kind"},
	)

	IndexerDatasetsIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bids_indexer_datasets_indexed_total",
			Help: "Total number of datasets indexed",
		},
	)

	IndexerDatasetsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bids_indexer_datasets_failed_total",
			Help: "Total number of datasets that failed to index",
		},
	)

	IndexerPollChecksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bids_indexer_poll_checks_total",
			Help: "Total number of change detection polls",
		},
	)

	IndexerPollChangesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bids_indexer_poll_changes_detected_total",
			Help: "Total number of polls that detected changes",
		},
	)

	IndexerPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bids_indexer_poll_duration_seconds",
			Help:    "Change detection poll duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
)

// Sidecar resolution metrics
var (
	SidecarReadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bids_indexer_sidecar_reads_total",
			Help: "Total number of sidecar files read from storage",
		},
	)

	SidecarCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bids_indexer_sidecar_cache_hits_total",
			Help: "Total number of sidecar cache hits",
		},
	)

	SidecarCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bids_indexer_sidecar_cache_misses_total",
			Help: "Total number of sidecar cache misses",
		},
	)

	SidecarWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bids_indexer_sidecar_warnings_total",
			Help: "Total number of sidecar resolution warnings",
		},
	)
)

// Incremental mode metrics
var (
	SnapshotEntriesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bids_indexer_snapshot_entries",
			Help: "Number of entries loaded from the prior snapshot",
		},
	)

	SnapshotUnchangedSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bids_indexer_snapshot_unchanged_skips_total",
			Help: "Total number of files skipped because their fingerprint was unchanged",
		},
	)
)

// Table sink metrics
var (
	SinkRowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bids_indexer_sink_rows_written_total",
			Help: "Total number of rows written, by sink format",
		},
		[]string{"format"},
	)

	SinkBatchesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bids_indexer_sink_batches_written_total",
			Help: "Total number of batches written, by sink format",
		},
		[]string{"format"},
	)

	SinkWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bids_indexer_sink_write_duration_seconds",
			Help:    "Sink batch write duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"format"},
	)
)

// Index table gauges, refreshed by the Collector
var (
	IndexRowsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bids_indexer_index_rows",
			Help: "Number of rows in the current index",
		},
	)

	IndexDatasetsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bids_indexer_index_datasets",
			Help: "Number of datasets in the current index",
		},
	)

	IndexFailuresTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bids_indexer_index_failures",
			Help: "Number of failure log entries from the last run by category",
		},
		[]string{"category"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bids_indexer_memory_usage_ratio",
			Help: "Memory usage as a ratio of the configured limit (0.0-1.0)",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bids_indexer_memory_paused",
			Help: "Whether indexing is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bids_indexer_memory_gc_pauses_total",
			Help: "Number of times indexing was paused for memory pressure",
		},
	)

	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bids_indexer_go_mem_limit_bytes",
			Help: "Configured GOMEMLIMIT in bytes",
		},
	)

	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bids_indexer_go_mem_alloc_bytes",
			Help: "Current Go heap allocation in bytes",
		},
	)

	GoMemSysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bids_indexer_go_mem_sys_bytes",
			Help: "Total memory obtained from the OS in bytes",
		},
	)

	GoGCRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bids_indexer_go_gc_runs_total",
			Help: "Completed garbage collection cycles",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bids_indexer_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
