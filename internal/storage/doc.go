// Package storage abstracts the tree a dataset lives on behind a small
// list/read/stat interface, so the walker and resolver work identically
// against a local directory or an S3 bucket prefix.
//
// Backends retry transient failures (NFS stale handles, object store
// 5xx responses) with bounded exponential backoff and surface exhausted
// or permanent failures as *IOError. Retry outcomes are reported to a
// pluggable Observer so the metrics package can record them without a
// dependency in this direction.
package storage
