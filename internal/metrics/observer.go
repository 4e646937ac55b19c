package metrics

import "bids-indexer/internal/storage"

// storageObserver implements storage.Observer using the Prometheus
// metrics declared in this package.
type storageObserver struct{}

// NewStorageObserver creates an observer that records storage metrics
// into the Prometheus counters and histograms declared in metrics.go.
func NewStorageObserver() storage.Observer {
	return &storageObserver{}
}

func (o *storageObserver) ObserveOperation(backend, operation string, durationSeconds float64, err error) {
	StorageOperationDuration.WithLabelValues(backend, operation).Observe(durationSeconds)
	if err != nil {
		StorageOperationErrors.WithLabelValues(backend, operation).Inc()
	}
}

func (o *storageObserver) ObserveRetryAttempt(backend, operation string) {
	StorageRetryAttempts.WithLabelValues(backend, operation).Inc()
}

func (o *storageObserver) ObserveRetrySuccess(backend, operation string) {
	StorageRetrySuccess.WithLabelValues(backend, operation).Inc()
}

func (o *storageObserver) ObserveRetryFailure(backend, operation string) {
	StorageRetryFailures.WithLabelValues(backend, operation).Inc()
}

func (o *storageObserver) ObserveStaleError(backend, operation string) {
	StorageStaleErrors.WithLabelValues(backend, operation).Inc()
}
