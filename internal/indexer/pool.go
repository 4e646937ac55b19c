package indexer

import (
	"context"
	"errors"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"bids-indexer/internal/dataset"
	"bids-indexer/internal/logging"
	"bids-indexer/internal/memory"
	"bids-indexer/internal/metrics"
	"bids-indexer/internal/table"
)

// errMonitorStopped aborts a run when the memory monitor shuts down
// while workers are waiting out a pressure pause.
var errMonitorStopped = errors.New("memory monitor stopped during run")

// Unit is one unit of pool work: a whole dataset, or one subject
// partition of a single large dataset. Partitions of the same dataset
// share the dataset ID; a failure in any of them drops the whole
// dataset.
type Unit struct {
	Walker  *dataset.Walker
	Dataset dataset.Dataset
	// Subjects restricts the unit to these subject directories; nil
	// means every subject.
	Subjects []string
}

// PoolResult is the merged output of all units, independent of worker
// scheduling.
type PoolResult struct {
	// Rows are sorted by (dataset ID, relative path).
	Rows      []table.Row
	Failures  []Failure
	Unchanged int
	// Next is the merged snapshot of every visited file.
	Next *table.Manifest
	// Indexed lists the dataset IDs whose units all completed, sorted.
	Indexed []string
	// Failed counts datasets dropped by storage failures.
	Failed int
}

// Pool fans work units across a bounded set of workers. The only
// shared state is read-only: the schema index inside the parser and
// the prior snapshot inside the merger. Each unit accumulates into its
// own Result; merging and re-sorting happen after every worker is
// done.
type Pool struct {
	builder *Builder
	workers int
	// monitor, when set, holds workers back while memory is critical.
	monitor *memory.Monitor
}

// NewPool sizes the worker pool. workers <= 0 means one per CPU.
func NewPool(builder *Builder, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{builder: builder, workers: workers}
}

type outcome struct {
	res *Result
	err error
}

// Run executes every unit and merges the results. A unit that fails on
// storage drops its dataset's contribution and is recorded in the
// failure log; the remaining units continue. Only cancellation aborts
// the whole run, and no partially built unit ever reaches the merged
// result.
func (p *Pool) Run(ctx context.Context, units []Unit) (*PoolResult, error) {
	outcomes := make([]outcome, len(units))

	sem := semaphore.NewWeighted(int64(p.workers))
	wg, gctx := errgroup.WithContext(ctx)
	for i, u := range units {
		i, u := i, u
		wg.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			if p.monitor != nil && !p.monitor.WaitIfPaused() {
				return errMonitorStopped
			}

			res, err := p.builder.Build(gctx, u.Walker, u.Dataset, u.Subjects)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				outcomes[i] = outcome{err: err}
				return nil
			}
			outcomes[i] = outcome{res: res}
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err
	}

	return p.merge(units, outcomes), nil
}

// merge combines per-unit results. Datasets with any failed unit are
// dropped whole, so the output never holds a partial dataset.
func (p *Pool) merge(units []Unit, outcomes []outcome) *PoolResult {
	failed := make(map[string]error)
	for i, o := range outcomes {
		if o.err != nil {
			id := units[i].Dataset.ID
			if _, ok := failed[id]; !ok {
				failed[id] = o.err
			}
		}
	}

	merged := &PoolResult{Next: table.NewManifest()}
	indexed := make(map[string]bool)
	for i, o := range outcomes {
		ds := units[i].Dataset
		if _, bad := failed[ds.ID]; bad || o.res == nil {
			continue
		}
		indexed[ds.ID] = true
		merged.Rows = append(merged.Rows, o.res.Rows...)
		merged.Failures = append(merged.Failures, o.res.Failures...)
		merged.Unchanged += o.res.Unchanged
		for k, fp := range o.res.Seen {
			merged.Next.Set(k, fp)
		}
	}

	for id, err := range failed {
		merged.Failures = append(merged.Failures, Failure{
			Kind:      FailureIO,
			DatasetID: id,
			Detail:    err.Error(),
		})
		metrics.IndexerDatasetsFailed.Inc()
		logging.Error("Dataset %s failed: %v", id, err)
	}
	merged.Failed = len(failed)

	for id := range indexed {
		merged.Indexed = append(merged.Indexed, id)
	}
	sort.Strings(merged.Indexed)
	metrics.IndexerDatasetsIndexed.Add(float64(len(indexed)))

	sort.Slice(merged.Rows, func(i, j int) bool {
		a, b := merged.Rows[i], merged.Rows[j]
		if a.DatasetID != b.DatasetID {
			return a.DatasetID < b.DatasetID
		}
		return a.RelativePath < b.RelativePath
	})
	sortFailures(merged.Failures)
	return merged
}
