package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Entry is one directory entry as reported by a backend. Size and
// ModTime are populated for files so that callers can fingerprint
// without an extra stat round-trip.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Backend abstracts the tree a dataset lives on. Paths are relative to
// the backend root and slash-separated on every platform; the empty
// string names the root itself.
//
// All failures are reported as *IOError so callers can treat local and
// remote problems uniformly.
type Backend interface {
	// List returns the entries of a directory. Order is not guaranteed.
	List(ctx context.Context, dir string) ([]Entry, error)
	// Read returns the full contents of a file.
	Read(ctx context.Context, path string) ([]byte, error)
	// Stat returns the entry for a single file path.
	Stat(ctx context.Context, path string) (Entry, error)
	// Exists reports whether a file path exists. A missing path is not
	// an error.
	Exists(ctx context.Context, path string) (bool, error)
	// Root describes the backend root, for logging.
	Root() string
}

// IOError wraps any storage failure, local or remote. Retries happen
// below this boundary; an IOError means they were exhausted or the
// failure was not retryable.
type IOError struct {
	Backend string
	Op      string
	Path    string
	Err     error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("storage %s: %s %s: %v", e.Backend, e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Observer receives storage operation events for metric recording. The
// metrics package provides the Prometheus-backed implementation; the
// default observer discards everything.
type Observer interface {
	ObserveOperation(backend, operation string, durationSeconds float64, err error)
	ObserveRetryAttempt(backend, operation string)
	ObserveRetrySuccess(backend, operation string)
	ObserveRetryFailure(backend, operation string)
	ObserveStaleError(backend, operation string)
}

type noopObserver struct{}

func (noopObserver) ObserveOperation(string, string, float64, error) {}
func (noopObserver) ObserveRetryAttempt(string, string)              {}
func (noopObserver) ObserveRetrySuccess(string, string)              {}
func (noopObserver) ObserveRetryFailure(string, string)              {}
func (noopObserver) ObserveStaleError(string, string)                {}

var observer Observer = noopObserver{}

// SetObserver installs the process-wide storage observer. Call once at
// startup, before any backend is used.
func SetObserver(o Observer) {
	if o != nil {
		observer = o
	}
}

// RetryConfig configures retry behavior for storage operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for transient storage
// errors (NFS stale handles, object store 5xx responses).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// IsNotExist reports whether a backend error means the path does not
// exist, on either backend. Vanished paths are a normal race during a
// scan and are usually handled by skipping, not failing.
func IsNotExist(err error) bool {
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		return false
	}
	return os.IsNotExist(ioErr.Err) || isNoSuchKey(ioErr.Err)
}

// Open builds a backend for a root string. Roots of the form
// s3://bucket/prefix select the object store backend configured from
// the environment; everything else is a local directory.
func Open(root string) (Backend, error) {
	if IsS3Root(root) {
		return NewS3(root, S3ConfigFromEnv(), DefaultRetryConfig())
	}
	return NewLocal(root, DefaultRetryConfig()), nil
}

// IsS3Root reports whether a root string names an object store location.
func IsS3Root(root string) bool {
	return strings.HasPrefix(root, "s3://")
}
