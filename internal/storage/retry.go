package storage

import (
	"context"
	"errors"
	"syscall"
	"time"

	"bids-indexer/internal/logging"
)

// isStaleError checks if an error is an NFS stale file handle error
func isStaleError(err error) bool {
	if err == nil {
		return false
	}

	// ESTALE (stale file handle) - errno 116 on Linux
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}

	return false
}

// withRetry runs a storage operation with bounded exponential backoff.
// Only errors the retryable predicate accepts are retried; everything
// else returns immediately as an IOError.
func withRetry(ctx context.Context, backend, op, path string, cfg RetryConfig, retryable func(error) bool, fn func() error) error {
	start := time.Now()
	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return &IOError{Backend: backend, Op: op, Path: path, Err: err}
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("Storage %s succeeded on retry %d for %s", op, attempt, path)
				observer.ObserveRetrySuccess(backend, op)
			}
			observer.ObserveOperation(backend, op, time.Since(start).Seconds(), nil)
			return nil
		}

		lastErr = err

		if !retryable(err) {
			observer.ObserveOperation(backend, op, time.Since(start).Seconds(), err)
			return &IOError{Backend: backend, Op: op, Path: path, Err: err}
		}

		if isStaleError(err) {
			observer.ObserveStaleError(backend, op)
		}

		// Don't sleep after the last attempt
		if attempt < cfg.MaxRetries {
			observer.ObserveRetryAttempt(backend, op)
			logging.Debug("Storage %s transient error for %s, retrying in %v (attempt %d/%d): %v",
				op, path, backoff, attempt+1, cfg.MaxRetries, err)
			time.Sleep(backoff)

			// Exponential backoff with cap
			backoff *= 2
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}
	}

	logging.Warn("Storage %s failed after %d retries for %s: %v", op, cfg.MaxRetries, path, lastErr)
	observer.ObserveRetryFailure(backend, op)
	observer.ObserveOperation(backend, op, time.Since(start).Seconds(), lastErr)
	return &IOError{Backend: backend, Op: op, Path: path, Err: lastErr}
}
