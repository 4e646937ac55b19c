package indexer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"bids-indexer/internal/dataset"
	"bids-indexer/internal/entities"
	"bids-indexer/internal/logging"
	"bids-indexer/internal/memory"
	"bids-indexer/internal/metrics"
	"bids-indexer/internal/storage"
	"bids-indexer/internal/table"
)

// Number of rows per sink write.
const defaultBatchSize = 500

// ErrRunInProgress is returned when a run is requested while another
// one is still active.
var ErrRunInProgress = errors.New("an indexing run is already in progress")

// Options configure an Indexer. The zero value of every optional field
// picks a sensible default.
type Options struct {
	// Roots are the search roots: local paths or s3:// locations.
	Roots []string
	// Manifest is the snapshot file kept beside the output. Empty
	// disables snapshots and with them incremental runs.
	Manifest string
	// Workers caps concurrent dataset builds. Zero or negative means
	// one per CPU.
	Workers int
	// Subjects keeps only subject directories matching these globs.
	Subjects []string
	// Exclude drops files and directories matching these globs during
	// the walk.
	Exclude []string
	// ExcludeDirs keeps dataset discovery out of matching directories.
	ExcludeDirs []string
	// Incremental consults the prior snapshot and skips files whose
	// fingerprint is unchanged.
	Incremental bool
	// Prune deletes rows whose files are gone from a fully indexed
	// dataset. Needs Incremental and a sink that can delete.
	Prune bool
	// BatchSize is rows per sink write.
	BatchSize int
	// Interval between periodic serve-mode re-index runs. Zero
	// disables the periodic ticker.
	Interval time.Duration
	// PollInterval between lightweight change-detection probes in
	// serve mode.
	PollInterval time.Duration
	// Monitor, when set, pauses dataset builds while heap usage is
	// critical and resumes them once it recovers.
	Monitor *memory.Monitor
}

// SinkFactory opens the output sink for one run. The Indexer closes
// the sink when the run's writes are done.
type SinkFactory func(ctx context.Context) (table.Sink, error)

// progress holds the live counters of the current run.
type progress struct {
	files     atomic.Int64
	rows      atomic.Int64
	unchanged atomic.Int64
	failures  atomic.Int64
}

func (p *progress) reset() {
	p.files.Store(0)
	p.rows.Store(0)
	p.unchanged.Store(0)
	p.failures.Store(0)
}

// Progress is a snapshot of the current or last run's counters.
type Progress struct {
	Files     int64 `json:"files"`
	Rows      int64 `json:"rows"`
	Unchanged int64 `json:"unchanged"`
	Failures  int64 `json:"failures"`
	Running   bool  `json:"running"`
}

// Report summarizes one completed run.
type Report struct {
	// Rows is the number of rows written this run, added plus updated.
	Rows      int `json:"rows"`
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
	// Datasets and Failed count datasets indexed and dropped this run.
	Datasets int `json:"datasets"`
	Failed   int `json:"failedDatasets"`
	// IndexRows and IndexDatasets describe the whole table after the
	// run, carried datasets included.
	IndexRows     int           `json:"indexRows"`
	IndexDatasets int           `json:"indexDatasets"`
	Failures      []Failure     `json:"failures,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// Indexer owns the full indexing run: dataset discovery, bounded
// fan-out, deterministic merge, sink writes and the snapshot. One
// Indexer serves both the one-shot CLI path and the long-running serve
// mode; only one run is active at a time.
type Indexer struct {
	parser  *entities.Parser
	newSink SinkFactory
	opts    Options

	startTime time.Time

	mu            sync.Mutex
	isRunning     bool
	lastRunTime   time.Time
	lastReport    *Report
	firstRunDone  bool
	initialRunErr error

	prog progress

	stateMu   sync.RWMutex
	lastState map[string]rootState
}

// New creates an Indexer. The parser carries the schema; the factory
// opens the output sink once per run.
func New(parser *entities.Parser, newSink SinkFactory, opts Options) *Indexer {
	return &Indexer{
		parser:    parser,
		newSink:   newSink,
		opts:      opts,
		startTime: time.Now(),
		lastState: make(map[string]rootState),
	}
}

// Run executes one full indexing pass: discover datasets under every
// root, fan them out across workers, merge, write, snapshot. Per-file
// and per-dataset problems land in the report's failure log; the
// returned error means the run as a whole did not complete.
func (ix *Indexer) Run(ctx context.Context) (*Report, error) {
	if !ix.tryStart() {
		logging.Info("Index already in progress, skipping...")
		return nil, ErrRunInProgress
	}
	defer ix.finish()

	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	start := time.Now()
	ix.prog.reset()
	logging.Info("Starting indexing run: %d roots, %d workers", len(ix.opts.Roots), ix.workers())

	for _, globs := range [][]string{ix.opts.Subjects, ix.opts.Exclude, ix.opts.ExcludeDirs} {
		if err := validateGlobs(globs); err != nil {
			return nil, err
		}
	}

	var prior *table.Manifest
	if ix.opts.Incremental && ix.opts.Manifest != "" {
		m, err := table.LoadManifest(ix.opts.Manifest)
		if err != nil {
			logging.Warn("Prior snapshot unusable, running a full index: %v", err)
			m = nil
		}
		prior = m
	}
	merger := NewMerger(prior, ix.opts.Prune)

	units, planFailures, err := ix.plan(ctx)
	if err != nil {
		return nil, err
	}

	builder := NewBuilder(ix.parser, merger, ix.opts.Subjects, ix.opts.Exclude)
	builder.prog = &ix.prog
	pool := NewPool(builder, ix.workers())
	pool.monitor = ix.opts.Monitor
	result, err := pool.Run(ctx, units)
	if err != nil {
		return nil, err
	}
	result.Failures = append(planFailures, result.Failures...)
	sortFailures(result.Failures)
	ix.prog.failures.Store(int64(len(result.Failures)))

	changes := merger.Changes(result.Rows, result.Next, result.Indexed)

	if err := ix.write(ctx, result.Rows, changes.Removed); err != nil {
		return nil, err
	}

	if ix.opts.Manifest != "" {
		if err := result.Next.Save(ix.opts.Manifest); err != nil {
			return nil, fmt.Errorf("save snapshot: %w", err)
		}
	}

	duration := time.Since(start)
	report := &Report{
		Rows:          len(result.Rows),
		Added:         len(changes.Added),
		Updated:       len(changes.Updated),
		Removed:       len(changes.Removed),
		Unchanged:     result.Unchanged,
		Datasets:      len(result.Indexed),
		Failed:        result.Failed,
		IndexRows:     result.Next.Len(),
		IndexDatasets: len(result.Next.DatasetIDs()),
		Failures:      result.Failures,
		Duration:      duration,
	}

	ix.mu.Lock()
	ix.lastRunTime = time.Now()
	ix.lastReport = report
	ix.initialRunErr = nil
	ix.mu.Unlock()

	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerLastRunDuration.Set(duration.Seconds())

	ix.updateLastKnownState(ctx)

	logging.Info("Index complete: %d rows (%d added, %d updated, %d removed), %d unchanged, %d datasets, %d failures in %v",
		report.Rows, report.Added, report.Updated, report.Removed,
		report.Unchanged, report.Datasets, len(report.Failures),
		duration.Round(time.Millisecond))
	return report, nil
}

// plan discovers datasets under every root and lays out the work
// units. Roots that fail or hold no datasets are recorded as failures,
// never fatal to the batch. Duplicate dataset IDs keep their first
// occurrence in (ID, root) order so reruns are stable.
func (ix *Indexer) plan(ctx context.Context) ([]Unit, []Failure, error) {
	var found []Unit
	var failures []Failure

	seenRoots := make(map[string]bool, len(ix.opts.Roots))
	for _, root := range ix.opts.Roots {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if seenRoots[root] {
			continue
		}
		seenRoots[root] = true

		backend, err := storage.Open(root)
		if err != nil {
			logging.Warn("Skipping root %s: %v", root, err)
			failures = append(failures, Failure{
				Kind:   FailureStructural,
				Detail: fmt.Sprintf("%s: %v", root, err),
			})
			continue
		}
		w := dataset.NewWalker(backend, ix.parser)

		datasets, err := w.Find(ctx, ix.opts.ExcludeDirs)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, nil, err
			}
			logging.Warn("Skipping root %s: %v", root, err)
			failures = append(failures, Failure{
				Kind:   FailureIO,
				Detail: fmt.Sprintf("%s: %v", root, err),
			})
			continue
		}
		if len(datasets) == 0 {
			logging.Warn("No datasets under %s", root)
			failures = append(failures, Failure{
				Kind:   FailureStructural,
				Detail: root + ": no datasets found",
			})
			continue
		}
		for _, ds := range datasets {
			found = append(found, Unit{Walker: w, Dataset: ds})
		}
	}

	sort.Slice(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if a.Dataset.ID != b.Dataset.ID {
			return a.Dataset.ID < b.Dataset.ID
		}
		return a.Walker.Display(a.Dataset.Root) < b.Walker.Display(b.Dataset.Root)
	})

	var units []Unit
	for _, u := range found {
		if n := len(units); n > 0 && units[n-1].Dataset.ID == u.Dataset.ID {
			kept := units[n-1]
			logging.Warn("Duplicate dataset ID %s at %s, keeping %s",
				u.Dataset.ID, u.Walker.Display(u.Dataset.Root), kept.Walker.Display(kept.Dataset.Root))
			failures = append(failures, Failure{
				Kind:      FailureStructural,
				DatasetID: u.Dataset.ID,
				Detail: fmt.Sprintf("duplicate dataset ID at %s, keeping %s",
					u.Walker.Display(u.Dataset.Root), kept.Walker.Display(kept.Dataset.Root)),
			})
			continue
		}
		units = append(units, u)
	}

	if len(units) == 1 && ix.workers() > 1 {
		parts, err := ix.partition(ctx, units[0])
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, nil, err
			}
			failures = append(failures, Failure{
				Kind:      FailureIO,
				DatasetID: units[0].Dataset.ID,
				Detail:    err.Error(),
			})
			metrics.IndexerDatasetsFailed.Inc()
			units = nil
		} else {
			units = parts
		}
	}

	return units, failures, nil
}

// partition splits a lone dataset into per-worker subject groups so a
// single large dataset still spreads across the pool. Sidecar levels
// above the subjects are re-read by each worker; redundant reads are
// cheaper than a shared resolver cache.
func (ix *Indexer) partition(ctx context.Context, u Unit) ([]Unit, error) {
	subjects, err := u.Walker.SubjectDirs(ctx, u.Dataset, ix.opts.Subjects)
	if err != nil {
		return nil, err
	}
	workers := ix.workers()
	if len(subjects) < 2 || workers < 2 {
		return []Unit{u}, nil
	}
	if workers > len(subjects) {
		workers = len(subjects)
	}

	parts := make([]Unit, workers)
	for i := range parts {
		parts[i] = Unit{Walker: u.Walker, Dataset: u.Dataset}
	}
	for i, subject := range subjects {
		w := i % workers
		parts[w].Subjects = append(parts[w].Subjects, subject)
	}
	return parts, nil
}

// write streams rows to the sink in batches and prunes removed keys
// when the sink supports deletion.
func (ix *Indexer) write(ctx context.Context, rows []table.Row, removed []table.Key) (err error) {
	sink, err := ix.newSink(ctx)
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close sink: %w", cerr)
		}
	}()

	batch := ix.opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	for start := 0; start < len(rows); start += batch {
		end := start + batch
		if end > len(rows) {
			end = len(rows)
		}
		if err := sink.WriteRows(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
	}

	if len(removed) == 0 {
		return nil
	}
	deleter, ok := sink.(table.Deleter)
	if !ok {
		logging.Warn("Sink cannot delete rows, %d removed files stay in the output", len(removed))
		return nil
	}
	if err := deleter.DeleteRows(ctx, removed); err != nil {
		return fmt.Errorf("prune rows: %w", err)
	}
	return nil
}

func (ix *Indexer) workers() int {
	if ix.opts.Workers > 0 {
		return ix.opts.Workers
	}
	return runtime.NumCPU()
}

// validateGlobs rejects malformed patterns up front, before any
// storage work. A bad pattern is a configuration error and fatal.
func validateGlobs(patterns []string) error {
	for _, p := range patterns {
		if _, err := path.Match(p, "probe"); err != nil {
			return fmt.Errorf("bad glob pattern %q: %w", p, err)
		}
	}
	return nil
}

// tryStart attempts to claim the run slot.
func (ix *Indexer) tryStart() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.isRunning {
		return false
	}
	ix.isRunning = true
	return true
}

// finish releases the run slot. The first completed attempt, successful
// or not, flips readiness; a failed initial run is still surfaced
// through the health endpoint.
func (ix *Indexer) finish() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.isRunning = false
	ix.firstRunDone = true
}

// IsRunning reports whether a run is in progress.
func (ix *Indexer) IsRunning() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.isRunning
}

// LastRunTime returns when the last successful run finished.
func (ix *Indexer) LastRunTime() time.Time {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.lastRunTime
}

// LastReport returns the last successful run's report, nil before the
// first one.
func (ix *Indexer) LastReport() *Report {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.lastReport
}

// Progress returns a live snapshot of the current run's counters, or
// the final counters of the last run when idle.
func (ix *Indexer) Progress() Progress {
	return Progress{
		Files:     ix.prog.files.Load(),
		Rows:      ix.prog.rows.Load(),
		Unchanged: ix.prog.unchanged.Load(),
		Failures:  ix.prog.failures.Load(),
		Running:   ix.IsRunning(),
	}
}

// GetStats feeds the metrics collector from the last report.
func (ix *Indexer) GetStats() metrics.Stats {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.lastReport == nil {
		return metrics.Stats{}
	}

	s := metrics.Stats{
		TotalRows:     ix.lastReport.IndexRows,
		TotalDatasets: ix.lastReport.IndexDatasets,
		TotalFailures: len(ix.lastReport.Failures),
	}
	for _, f := range ix.lastReport.Failures {
		switch f.Kind {
		case FailureParse:
			s.ParseFailures++
		case FailureMetadata:
			s.MetaFailures++
		case FailureIO:
			s.IOFailures++
		case FailureStructural:
			s.StructFailures++
		}
	}
	return s
}
