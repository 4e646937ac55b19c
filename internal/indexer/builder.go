package indexer

import (
	"context"
	"errors"
	"sort"

	"bids-indexer/internal/dataset"
	"bids-indexer/internal/entities"
	"bids-indexer/internal/metrics"
	"bids-indexer/internal/sidecar"
	"bids-indexer/internal/table"
)

// Result is the output of one work unit, merged later by the pool.
type Result struct {
	// Rows are the freshly built rows, sorted by relative path.
	Rows []table.Row
	// Failures holds the unit's parse and metadata failures.
	Failures []Failure
	// Seen maps every visited key to its current fingerprint, changed
	// or not. It becomes the next snapshot and drives removal
	// detection.
	Seen map[table.Key]uint64
	// Unchanged counts files skipped by the fingerprint check.
	Unchanged int
}

// Builder runs the single-dataset pipeline: enumerate data files,
// fingerprint-check against the prior snapshot, parse entities,
// resolve sidecar metadata, assemble rows. A Builder is immutable and
// shared by all workers; per-unit state lives in the Result and in a
// resolver created per call.
type Builder struct {
	parser   *entities.Parser
	merger   *Merger
	subjects []string
	exclude  []string
	prog     *progress
}

// NewBuilder wires the pipeline. subjects globs restrict which subject
// directories are indexed; exclude globs drop files and directories
// during the walk.
func NewBuilder(parser *entities.Parser, merger *Merger, subjects, exclude []string) *Builder {
	return &Builder{
		parser:   parser,
		merger:   merger,
		subjects: subjects,
		exclude:  exclude,
		prog:     &progress{},
	}
}

// Build indexes one dataset, or one subject partition of it when
// subjects is non-nil. The returned error is a storage or cancellation
// failure that invalidates the whole unit; per-file problems land in
// the Result's failure log instead.
func (b *Builder) Build(ctx context.Context, w *dataset.Walker, ds dataset.Dataset, subjects []string) (*Result, error) {
	if subjects == nil {
		var err error
		subjects, err = w.SubjectDirs(ctx, ds, b.subjects)
		if err != nil {
			return nil, err
		}
	}

	res := &Result{Seen: make(map[table.Key]uint64)}
	resolver := sidecar.NewResolver(w.Store(), b.parser, ds.Root)
	root := w.Display(ds.Root)

	for _, subject := range subjects {
		err := w.WalkSubject(ctx, ds, subject, b.exclude, func(f dataset.File) error {
			return b.visit(ctx, resolver, ds, root, f, res)
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(res.Rows, func(i, j int) bool {
		return res.Rows[i].RelativePath < res.Rows[j].RelativePath
	})
	return res, nil
}

// visit handles one enumerated file. The fingerprint check runs first
// so unchanged files cost neither a parse nor a metadata resolution.
func (b *Builder) visit(ctx context.Context, resolver *sidecar.Resolver, ds dataset.Dataset, root string, f dataset.File, res *Result) error {
	b.prog.files.Add(1)
	key := table.Key{DatasetID: ds.ID, RelativePath: f.Path}
	fp := table.Fingerprint(f.Path, f.Size, f.ModTime)

	if b.merger.Unchanged(key, fp) {
		res.Seen[key] = fp
		res.Unchanged++
		b.prog.unchanged.Add(1)
		metrics.SnapshotUnchangedSkips.Inc()
		metrics.IndexerFilesSkipped.WithLabelValues("unchanged").Inc()
		return nil
	}

	rec, err := b.parser.Parse(f.Path)
	if err != nil {
		res.Failures = append(res.Failures, parseFailure(ds.ID, f.Path, err))
		b.prog.failures.Add(1)
		metrics.IndexerFilesSkipped.WithLabelValues("parse_failure").Inc()
		return nil
	}

	meta, warnings, err := resolver.Resolve(ctx, f.Path, rec)
	if err != nil {
		return err
	}
	for _, warning := range warnings {
		res.Failures = append(res.Failures, Failure{
			Kind:      FailureMetadata,
			DatasetID: ds.ID,
			Path:      warning.Path,
			Detail:    warning.Reason,
		})
	}
	b.prog.failures.Add(int64(len(warnings)))

	res.Rows = append(res.Rows, table.Row{
		DatasetID:    ds.ID,
		DatasetName:  ds.Description.Name,
		DatasetType:  ds.Description.DatasetType,
		DatasetRoot:  root,
		RelativePath: f.Path,
		Entities:     rec.Entities,
		Datatype:     rec.Datatype,
		Suffix:       rec.Suffix,
		Extension:    rec.Extension,
		Metadata:     meta,
		Size:         f.Size,
		ModTime:      f.ModTime,
	})
	res.Seen[key] = fp
	b.prog.rows.Add(1)
	metrics.IndexerRowsEmitted.Inc()
	return nil
}

// parseFailure converts a parser error into a failure log entry and
// counts it by kind.
func parseFailure(datasetID, path string, err error) Failure {
	var perr *entities.ParseError
	if errors.As(err, &perr) {
		metrics.IndexerParseFailures.WithLabelValues(string(perr.Kind)).Inc()
		return Failure{
			Kind:      FailureParse,
			DatasetID: datasetID,
			Path:      path,
			Detail:    string(perr.Kind) + ": " + perr.Reason,
		}
	}
	return Failure{Kind: FailureParse, DatasetID: datasetID, Path: path, Detail: err.Error()}
}
