package dataset

import (
	"context"
	"path"
	"sort"
	"strings"

	"bids-indexer/internal/metrics"
)

// SubjectDirs returns the subject directory names of a dataset, sorted.
// When include globs are given, only subjects matching at least one of
// them are returned; the globs match the full directory name, so
// "sub-0*" selects sub-01 through sub-09.
func (w *Walker) SubjectDirs(ctx context.Context, ds Dataset, include []string) ([]string, error) {
	entries, err := w.store.List(ctx, ds.Root)
	if err != nil {
		return nil, err
	}
	var subjects []string
	for _, e := range entries {
		if !e.IsDir || !w.subjectRe.MatchString(e.Name) {
			continue
		}
		if len(include) > 0 {
			ok, err := matchAny(include, e.Name, "")
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		subjects = append(subjects, e.Name)
	}
	sort.Strings(subjects)
	return subjects, nil
}

// WalkSubject streams the data file candidates under one subject
// directory of a dataset, in lexicographic order. Paths given to fn are
// relative to the dataset root.
//
// Hidden entries and exclude-glob matches are skipped and counted.
// Sidecar JSON never reaches fn; it is read on demand during metadata
// resolution instead. A directory whose own name parses as a data file,
// such as a .ome.zarr microscopy store, is handed to fn once with IsDir
// set and is not descended into. Files without the partition entity
// prefix are ignored. Any error from fn stops the walk.
func (w *Walker) WalkSubject(ctx context.Context, ds Dataset, subject string, exclude []string, fn func(File) error) error {
	return w.walkDir(ctx, ds, subject, exclude, fn)
}

func (w *Walker) walkDir(ctx context.Context, ds Dataset, dir string, exclude []string, fn func(File) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := w.store.List(ctx, path.Join(ds.Root, dir))
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	for _, e := range entries {
		rel := path.Join(dir, e.Name)
		if hidden(e.Name) {
			metrics.IndexerFilesSkipped.WithLabelValues("hidden").Inc()
			continue
		}
		skip, err := matchAny(exclude, e.Name, rel)
		if err != nil {
			return err
		}
		if skip {
			metrics.IndexerFilesSkipped.WithLabelValues("excluded").Inc()
			continue
		}

		if e.IsDir {
			if w.dirAsFile(rel, e.Name) {
				if err := fn(File{Path: rel, IsDir: true, Size: e.Size, ModTime: e.ModTime}); err != nil {
					return err
				}
				continue
			}
			if err := w.walkDir(ctx, ds, rel, exclude, fn); err != nil {
				return err
			}
			continue
		}

		if !strings.HasPrefix(e.Name, w.prefix) {
			continue
		}
		if w.parser.IsSidecar(rel) {
			metrics.IndexerFilesSkipped.WithLabelValues("sidecar").Inc()
			continue
		}
		if err := fn(File{Path: rel, Size: e.Size, ModTime: e.ModTime}); err != nil {
			return err
		}
	}
	return nil
}

// dirAsFile reports whether a directory should be indexed as a single
// data file instead of being descended into. The name must carry the
// partition prefix and an extension and parse cleanly; anything else is
// an ordinary directory.
func (w *Walker) dirAsFile(rel, name string) bool {
	if !strings.HasPrefix(name, w.prefix) || !strings.Contains(name, ".") {
		return false
	}
	_, err := w.parser.Parse(rel)
	return err == nil
}
