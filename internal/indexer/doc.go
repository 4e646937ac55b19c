// Package indexer builds the file index: it discovers datasets under
// the configured roots, walks them across a bounded worker pool, parses
// every filename against the schema, resolves sidecar metadata and
// writes the resulting rows to the output table.
//
// A run produces one row per indexable file, keyed by (dataset ID,
// relative path), with:
//   - Parsed entities, datatype, suffix and extension
//   - Merged sidecar metadata as a JSON document
//   - File size and modification time
//
// Output order is deterministic: rows are sorted by key before they are
// written, so the same tree produces the same table at any worker
// count.
//
// The indexer operates in multiple modes:
//   - One-shot: a single run driven by the CLI
//   - Incremental: unchanged files are skipped via the prior snapshot,
//     optionally pruning rows whose files are gone
//   - Serve: initial run on startup, polling-based change detection and
//     an optional periodic re-index, with manual triggering via the API
//
// Broken filenames, unreadable sidecars and malformed datasets never
// abort a run; they are recorded in the run report's failure log and
// the rest of the batch continues.
package indexer
