package dataset

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"bids-indexer/internal/entities"
	"bids-indexer/internal/logging"
	"bids-indexer/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DescriptionFile is the descriptor every dataset root must carry.
const DescriptionFile = "dataset_description.json"

// Description holds the dataset_description.json fields the index
// carries. Everything else in the descriptor is ignored.
type Description struct {
	Name        string `json:"Name"`
	BIDSVersion string `json:"BIDSVersion"`
	DatasetType string `json:"DatasetType"`
}

// Dataset is one indexable dataset found under a storage root.
type Dataset struct {
	// ID is the composite dataset name, e.g. "ds000001" or
	// "ds000001/derivatives/fmriprep" for a nested derivative dataset.
	ID string
	// Root is the dataset root relative to the storage backend root;
	// empty means the backend root itself.
	Root string
	// Description is the decoded descriptor; zero-valued when the
	// descriptor could not be decoded.
	Description Description
}

// File is one indexable data file. Directories whose names parse as
// data files, such as .ome.zarr microscopy directories, are surfaced
// as a File with IsDir set.
type File struct {
	// Path is relative to the dataset root.
	Path    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// StructuralError means a path the caller named is not a recognizable
// dataset. It fails only that root, never the whole run.
type StructuralError struct {
	Root   string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s", e.Root, e.Reason)
}

// Walker finds datasets on a storage backend and enumerates their data
// files. It is immutable and safe for concurrent use.
type Walker struct {
	store     storage.Backend
	parser    *entities.Parser
	prefix    string
	subjectRe *regexp.Regexp
}

// NewWalker creates a walker for one storage backend. The partition
// entity of the parser's schema decides what counts as a subject
// directory and which files are data file candidates.
func NewWalker(store storage.Backend, parser *entities.Parser) *Walker {
	key := parser.Schema().PartitionKey()
	return &Walker{
		store:     store,
		parser:    parser,
		prefix:    key + "-",
		subjectRe: regexp.MustCompile(`^` + regexp.QuoteMeta(key) + `-[a-zA-Z0-9]+$`),
	}
}

// Store returns the backend the walker operates on.
func (w *Walker) Store() storage.Backend {
	return w.store
}

// IsRoot reports whether a directory is a dataset root, meaning it
// holds a dataset_description.json.
func (w *Walker) IsRoot(ctx context.Context, dir string) (bool, error) {
	return w.store.Exists(ctx, path.Join(dir, DescriptionFile))
}

// Describe reads and decodes a dataset's descriptor. Storage errors
// pass through as *storage.IOError; decode errors are wrapped.
func (w *Walker) Describe(ctx context.Context, dir string) (Description, error) {
	p := path.Join(dir, DescriptionFile)
	raw, err := w.store.Read(ctx, p)
	if err != nil {
		return Description{}, err
	}
	var desc Description
	if err := json.Unmarshal(raw, &desc); err != nil {
		return Description{}, fmt.Errorf("decode %s: %w", p, err)
	}
	return desc, nil
}

// Open validates a directory as a dataset root and builds its Dataset.
// A missing descriptor is a *StructuralError; a malformed one is
// tolerated with a warning, existence is the validity criterion.
func (w *Walker) Open(ctx context.Context, dir string) (Dataset, error) {
	ok, err := w.IsRoot(ctx, dir)
	if err != nil {
		return Dataset{}, err
	}
	if !ok {
		return Dataset{}, &StructuralError{
			Root:   w.Display(dir),
			Reason: "missing " + DescriptionFile,
		}
	}
	return w.open(ctx, dir, w.baseID(dir)), nil
}

// open builds a Dataset for a directory already known to be a root.
func (w *Walker) open(ctx context.Context, dir, id string) Dataset {
	desc, err := w.Describe(ctx, dir)
	if err != nil {
		logging.Warn("Dataset %s: unreadable %s: %v", id, DescriptionFile, err)
	}
	return Dataset{ID: id, Root: dir, Description: desc}
}

// baseID names a dataset with no enclosing dataset: the base name of
// its directory, or of the backend root when the dataset sits at the
// backend root itself.
func (w *Walker) baseID(dir string) string {
	if dir != "" && dir != "." {
		return path.Base(dir)
	}
	root := w.store.Root()
	if storage.IsS3Root(root) {
		if bucket, prefix, err := storage.ParseS3Root(root); err == nil {
			if prefix != "" {
				return path.Base(prefix)
			}
			return bucket
		}
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return filepath.Base(root)
}

// Display renders a dataset-relative path with the backend root
// prepended, for logs, errors and the root output column.
func (w *Walker) Display(rel string) string {
	if rel == "" || rel == "." {
		return w.store.Root()
	}
	return w.store.Root() + "/" + rel
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// matchAny reports whether a name or its dataset-relative path matches
// any of the glob patterns.
func matchAny(patterns []string, name, rel string) (bool, error) {
	for _, pattern := range patterns {
		ok, err := path.Match(pattern, name)
		if err != nil {
			return false, fmt.Errorf("bad glob pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
		if rel != "" && rel != name {
			ok, err = path.Match(pattern, rel)
			if err != nil {
				return false, fmt.Errorf("bad glob pattern %q: %w", pattern, err)
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}
