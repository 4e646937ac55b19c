// Package dataset discovers BIDS datasets on a storage backend and
// enumerates their data files.
//
// A directory is a dataset root when it holds a dataset_description.json.
// Discovery starts at the backend root and searches every non-hidden
// directory; once inside a dataset only derivatives/ is searched further,
// so nested derivative pipelines are found without scanning data
// directories. Nested datasets are named by chaining from the enclosing
// dataset, e.g. "ds000001/derivatives/fmriprep", which keeps dataset IDs
// unique across one index.
//
// Within a dataset, data files live under subject directories named with
// the schema's partition entity. The walker skips hidden entries,
// exclude-glob matches and sidecar JSON, and surfaces directory-valued
// files such as .ome.zarr stores as single entries without descending
// into them. Listings are sorted before traversal, so walk order is
// deterministic for a given tree on any backend.
package dataset
