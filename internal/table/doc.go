// Package table defines the output row model and the sinks that
// persist it.
//
// A Row describes one data file: dataset identity, canonical entity
// columns, merged sidecar metadata as JSON, and file info. Tables are
// unique by (dataset_id, relative path) and both sinks key on that
// pair.
//
// The parquet sink accumulates rows in an arrow RecordBuilder and cuts
// immutable part files named <unixnano>-<uuid>.parquet, each written to
// a temp file and renamed so readers never observe a partial part. The
// sqlite sink upserts batches inside transactions and can delete rows
// by key for prune runs; entity columns introduced by a newer naming
// schema are added in place with ALTER TABLE, never a table rewrite.
//
// The snapshot manifest maps every indexed file to a fingerprint of
// path, size and modification time. Incremental runs load it to skip
// unchanged files before any parse or sidecar work happens, then save
// the updated state beside the output.
package table
