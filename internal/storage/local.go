package storage

import (
	"context"
	"os"
	"path/filepath"

	"bids-indexer/internal/logging"
)

// Local serves a directory on the local filesystem, including network
// mounts. Transient NFS stale handle errors are retried with bounded
// exponential backoff.
type Local struct {
	root   string
	retry  RetryConfig
	follow bool
}

// NewLocal creates a backend rooted at a local directory.
func NewLocal(root string, retry RetryConfig) *Local {
	return &Local{root: root, retry: retry}
}

// FollowSymlinks makes List resolve symlinked directories instead of
// reporting them as plain files. Dangling links are skipped.
func (l *Local) FollowSymlinks(follow bool) {
	l.follow = follow
}

// Root returns the backend root directory.
func (l *Local) Root() string {
	return l.root
}

func (l *Local) abs(rel string) string {
	if rel == "" || rel == "." {
		return l.root
	}
	return filepath.Join(l.root, filepath.FromSlash(rel))
}

// List returns the entries of a directory. Entries that vanish between
// the listing and their stat are skipped.
func (l *Local) List(ctx context.Context, dir string) ([]Entry, error) {
	var dirEntries []os.DirEntry
	err := withRetry(ctx, "local", "list", dir, l.retry, isStaleError, func() error {
		var readErr error
		dirEntries, readErr = os.ReadDir(l.abs(dir))
		return readErr
	})
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			logging.Debug("Skipping vanished entry %s in %s: %v", de.Name(), dir, err)
			continue
		}
		if l.follow && de.Type()&os.ModeSymlink != 0 {
			target, err := os.Stat(filepath.Join(l.abs(dir), de.Name()))
			if err != nil {
				logging.Debug("Skipping dangling symlink %s in %s: %v", de.Name(), dir, err)
				continue
			}
			info = target
		}
		entries = append(entries, Entry{
			Name:    de.Name(),
			IsDir:   info.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

// Read returns the full contents of a file.
func (l *Local) Read(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := withRetry(ctx, "local", "read", path, l.retry, isStaleError, func() error {
		var readErr error
		data, readErr = os.ReadFile(l.abs(path))
		return readErr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Stat returns the entry for a single path.
func (l *Local) Stat(ctx context.Context, path string) (Entry, error) {
	var info os.FileInfo
	err := withRetry(ctx, "local", "stat", path, l.retry, isStaleError, func() error {
		var statErr error
		info, statErr = os.Stat(l.abs(path))
		return statErr
	})
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Name:    info.Name(),
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Exists reports whether a path exists.
func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	_, err := l.Stat(ctx, path)
	if err == nil {
		return true, nil
	}
	if IsNotExist(err) {
		return false, nil
	}
	return false, err
}
