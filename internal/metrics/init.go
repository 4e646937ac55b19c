package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	backends := []string{"local", "s3"}
	storageOps := []string{"list", "read", "stat", "exists"}

	for _, backend := range backends {
		for _, op := range storageOps {
			StorageOperationDuration.WithLabelValues(backend, op)
			StorageOperationErrors.WithLabelValues(backend, op)
			StorageRetryAttempts.WithLabelValues(backend, op)
			StorageRetrySuccess.WithLabelValues(backend, op)
			StorageRetryFailures.WithLabelValues(backend, op)
			StorageStaleErrors.WithLabelValues(backend, op)
		}
	}

	for _, kind := range []string{"unrecognized_entity", "invalid_entity_value", "invalid_suffix_extension"} {
		IndexerParseFailures.WithLabelValues(kind)
	}

	for _, reason := range []string{"parse_failure", "excluded", "unchanged", "hidden", "sidecar"} {
		IndexerFilesSkipped.WithLabelValues(reason)
	}

	for _, format := range []string{"parquet", "sqlite"} {
		SinkRowsWritten.WithLabelValues(format)
		SinkBatchesWritten.WithLabelValues(format)
		SinkWriteDuration.WithLabelValues(format)
	}

	for _, category := range []string{"parse", "metadata", "io", "structural"} {
		IndexFailuresTotal.WithLabelValues(category)
	}
}
