package indexer

import (
	"fmt"
	"sort"
)

// FailureKind categorizes the non-fatal problems of an indexing run.
type FailureKind string

const (
	// FailureParse means a filename did not parse under the schema. The
	// file is skipped; the rest of its dataset continues.
	FailureParse FailureKind = "parse"
	// FailureMetadata means a sidecar was malformed, vanished mid-scan,
	// or tied with an equally specific one. The affected rows still
	// carry whatever metadata did resolve.
	FailureMetadata FailureKind = "metadata"
	// FailureIO means storage reads kept failing past the retry policy.
	// The owning dataset is dropped from the run's output.
	FailureIO FailureKind = "io"
	// FailureStructural means a root or directory is not an indexable
	// dataset: no descriptor, no datasets beneath it, or a dataset ID
	// already claimed by an earlier root.
	FailureStructural FailureKind = "structural"
)

// Failure is one entry of the failure log returned with every run, so
// callers can see exactly what was skipped and why.
type Failure struct {
	Kind      FailureKind `json:"kind"`
	DatasetID string      `json:"dataset,omitempty"`
	Path      string      `json:"path,omitempty"`
	Detail    string      `json:"detail"`
}

func (f Failure) String() string {
	switch {
	case f.DatasetID != "" && f.Path != "":
		return fmt.Sprintf("[%s] %s: %s: %s", f.Kind, f.DatasetID, f.Path, f.Detail)
	case f.DatasetID != "":
		return fmt.Sprintf("[%s] %s: %s", f.Kind, f.DatasetID, f.Detail)
	default:
		return fmt.Sprintf("[%s] %s", f.Kind, f.Detail)
	}
}

// sortFailures orders the log by dataset, path and kind so aggregated
// reports do not depend on worker scheduling.
func sortFailures(failures []Failure) {
	sort.Slice(failures, func(i, j int) bool {
		a, b := failures[i], failures[j]
		if a.DatasetID != b.DatasetID {
			return a.DatasetID < b.DatasetID
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Detail < b.Detail
	})
}
