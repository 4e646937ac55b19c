package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bids-indexer/internal/entities"
	"bids-indexer/internal/indexer"
	"bids-indexer/internal/schema"
	"bids-indexer/internal/table"
	"bids-indexer/internal/workers"

	"golang.org/x/term"
)

// stringList collects a repeatable flag into a slice.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// runIndex is the one-shot `index` command: walk the given roots once,
// write the table and exit. Per-file and per-dataset problems are
// logged and reported, not fatal; only a run that cannot produce a
// table at all exits non-zero.
func runIndex(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	var (
		output      = fs.String("output", "", "output path: a database file for sqlite, a directory for parquet (required)")
		format      = fs.String("format", "", "output format, sqlite or parquet (default: inferred from -output)")
		workerCount = fs.Int("workers", -1, "concurrent dataset builds; -1 picks a per-core default")
		incremental = fs.Bool("incremental", false, "reuse the snapshot manifest to skip unchanged files")
		overwrite   = fs.Bool("overwrite", false, "delete the existing table and manifest before indexing")
		prune       = fs.Bool("prune", false, "delete rows whose source files are gone (requires -incremental)")
		schemaFile  = fs.String("schema", "", "entity rules YAML file (default: built-in rules)")
		batchSize   = fs.Int("batch-size", 0, "rows per sink write (default 500)")
		noProgress  = fs.Bool("no-progress", false, "suppress the progress line on stderr")
		verbose     = fs.Bool("v", false, "info-level logging")
		debug       = fs.Bool("vv", false, "debug-level logging")
	)
	var subjects, exclude, excludeDirs stringList
	fs.Var(&subjects, "subjects", "glob of subject directories to index; repeatable")
	fs.Var(&exclude, "exclude", "glob of file paths to skip; repeatable")
	fs.Var(&excludeDirs, "exclude-dirs", "glob of directories to skip during discovery; repeatable")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: bids-indexer index [flags] ROOT...")
		fmt.Fprintln(fs.Output(), "")
		fmt.Fprintln(fs.Output(), "Indexes every dataset found under the given roots into one table.")
		fmt.Fprintln(fs.Output(), "Roots may be local directories or s3://bucket/prefix URLs.")
		fmt.Fprintln(fs.Output(), "")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	setVerbosity(*verbose, *debug)

	roots := fs.Args()
	if len(roots) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one dataset ROOT is required")
		fs.Usage()
		return 2
	}
	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: -output is required")
		fs.Usage()
		return 2
	}

	outFormat := *format
	if outFormat == "" {
		outFormat = inferFormat(*output)
	}
	switch outFormat {
	case "sqlite", "parquet":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid format %q, expected sqlite or parquet\n", outFormat)
		return 2
	}
	if *prune && !*incremental {
		fmt.Fprintln(os.Stderr, "Error: -prune requires -incremental")
		return 2
	}
	if outFormat == "parquet" && (*incremental || *prune) {
		fmt.Fprintln(os.Stderr, "Error: parquet output rebuilds the whole table every run; -incremental and -prune are not supported")
		return 2
	}

	ix, err := schema.Load(*schemaFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	manifest := manifestPath(*output)
	if *overwrite {
		if err := removeExisting(outFormat, *output, manifest); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	newSink := func(ctx context.Context) (table.Sink, error) {
		if outFormat == "parquet" {
			return table.NewParquetSink(*output, ix, table.DefaultPartSize)
		}
		return table.NewSQLiteSink(ctx, *output, ix)
	}

	idx := indexer.New(entities.NewParser(ix), newSink, indexer.Options{
		Roots:       roots,
		Manifest:    manifest,
		Workers:     workers.FromFlag(*workerCount),
		Subjects:    subjects,
		Exclude:     exclude,
		ExcludeDirs: excludeDirs,
		Incremental: *incremental,
		Prune:       *prune,
		BatchSize:   *batchSize,
	})

	var stopProgress func()
	if !*noProgress && term.IsTerminal(int(os.Stderr.Fd())) {
		stopProgress = startProgress(idx)
	}
	report, err := idx.Run(ctx)
	if stopProgress != nil {
		stopProgress()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	printReport(report)
	return 0
}

// inferFormat picks the output format from the output path. Paths
// ending in .parquet or carrying no extension at all are treated as
// parquet table directories, everything else as a sqlite database.
func inferFormat(output string) string {
	switch filepath.Ext(filepath.Clean(output)) {
	case ".parquet", "":
		return "parquet"
	default:
		return "sqlite"
	}
}

// manifestPath puts the snapshot manifest next to the output so the
// table and its manifest move together.
func manifestPath(output string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(output)), table.ManifestName)
}

// removeExisting clears a previous table and its manifest so the run
// starts from nothing. For sqlite the WAL and SHM siblings go too; a
// stale WAL replayed into a fresh database would resurrect old rows.
func removeExisting(format, output, manifest string) error {
	if format == "parquet" {
		if err := table.ClearParts(output); err != nil {
			return err
		}
	} else {
		for _, p := range []string{output, output + "-wal", output + "-shm"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove %s: %w", p, err)
			}
		}
	}
	if err := os.Remove(manifest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", manifest, err)
	}
	return nil
}

// startProgress redraws a counter line on stderr until the returned
// stop function is called. Only used when stderr is a terminal.
func startProgress(idx *indexer.Indexer) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				fmt.Fprint(os.Stderr, "\r\033[K")
				return
			case <-ticker.C:
				p := idx.Progress()
				fmt.Fprintf(os.Stderr, "\r\033[K  %d files scanned, %d rows, %d unchanged, %d failures",
					p.Files, p.Rows, p.Unchanged, p.Failures)
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// printReport writes the run summary to stdout and the failure log to
// stderr, so piping the summary does not swallow the problems.
func printReport(r *indexer.Report) {
	fmt.Printf("Indexed %d datasets in %v\n", r.Datasets, r.Duration.Round(time.Millisecond))
	fmt.Printf("  rows written: %d (%d added, %d updated, %d removed), %d unchanged\n",
		r.Rows, r.Added, r.Updated, r.Removed, r.Unchanged)
	fmt.Printf("  table now:    %d rows across %d datasets\n", r.IndexRows, r.IndexDatasets)
	if r.Failed > 0 {
		fmt.Printf("  failed:       %d datasets\n", r.Failed)
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(os.Stderr, "%d problems were skipped:\n", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Fprintf(os.Stderr, "  %s\n", f.String())
		}
	}
}
