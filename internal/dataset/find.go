package dataset

import (
	"context"
	"path"
	"sort"
	"strings"

	"bids-indexer/internal/logging"
)

// DerivativesDir is the only subdirectory of a dataset searched for
// nested datasets.
const DerivativesDir = "derivatives"

// Find searches the backend from its root and returns every dataset in
// lexicographic depth-first order. Outside a dataset every non-hidden
// directory is searched; inside one, only derivatives/. Nested datasets
// get composite IDs chained from their nearest enclosing dataset, e.g.
// "ds000001/derivatives/fmriprep".
//
// Exclude globs match a directory's name or its backend-relative path
// and stop descent into it.
func (w *Walker) Find(ctx context.Context, exclude []string) ([]Dataset, error) {
	var (
		found   []Dataset
		visited int
	)

	var search func(dir, encID, encRoot string) error
	search = func(dir, encID, encRoot string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		visited++
		if visited%100 == 0 {
			logging.Debug("Discovery visited %d directories, found %d datasets so far", visited, len(found))
		}

		isRoot, err := w.IsRoot(ctx, dir)
		if err != nil {
			return err
		}
		if isRoot {
			id := w.baseID(dir)
			if encID != "" {
				id = encID + "/" + relTo(dir, encRoot)
			}
			found = append(found, w.open(ctx, dir, id))
			encID, encRoot = id, dir
		}

		entries, err := w.store.List(ctx, dir)
		if err != nil {
			return err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

		for _, e := range entries {
			if !e.IsDir || hidden(e.Name) {
				continue
			}
			if isRoot && e.Name != DerivativesDir {
				continue
			}
			rel := path.Join(dir, e.Name)
			skip, err := matchAny(exclude, e.Name, rel)
			if err != nil {
				return err
			}
			if skip {
				continue
			}
			if err := search(rel, encID, encRoot); err != nil {
				return err
			}
		}
		return nil
	}

	if err := search("", "", ""); err != nil {
		return nil, err
	}
	logging.Info("Discovery under %s: %d datasets in %d directories", w.store.Root(), len(found), visited)
	return found, nil
}

// relTo strips a root prefix from a backend-relative path. The root is
// always an ancestor of the path here.
func relTo(dir, root string) string {
	if root == "" {
		return dir
	}
	return strings.TrimPrefix(dir, root+"/")
}
