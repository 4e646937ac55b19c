package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"bids-indexer/internal/dataset"
	"bids-indexer/internal/entities"
	"bids-indexer/internal/logging"
	"bids-indexer/internal/schema"
	"bids-indexer/internal/storage"
)

// runFind is the `find` command: dataset discovery without indexing.
// One line per dataset on stdout, the count on stderr, so the output
// pipes cleanly into xargs or a shell loop.
func runFind(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("find", flag.ContinueOnError)
	var excludeDirs stringList
	fs.Var(&excludeDirs, "exclude-dirs", "glob of directories to skip during discovery; repeatable")
	var (
		followSymlinks = fs.Bool("follow-symlinks", false, "descend into symlinked directories")
		verbose        = fs.Bool("v", false, "info-level logging")
		debug          = fs.Bool("vv", false, "debug-level logging")
	)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: bids-indexer find [flags] ROOT")
		fmt.Fprintln(fs.Output(), "")
		fmt.Fprintln(fs.Output(), "Prints every dataset under the root, one per line: its location,")
		fmt.Fprintln(fs.Output(), "its ID and, when the descriptor carries one, its name.")
		fmt.Fprintln(fs.Output(), "")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	setVerbosity(*verbose, *debug)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one ROOT is required")
		fs.Usage()
		return 2
	}
	root := fs.Arg(0)

	count, err := findDatasets(ctx, root, excludeDirs, *followSymlinks, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "Found %d datasets under %s\n", count, root)
	return 0
}

// findDatasets runs discovery against one root and writes the result
// lines to w. Finding nothing is not an error; the caller sees a zero
// count and an empty listing.
func findDatasets(ctx context.Context, root string, excludeDirs []string, followSymlinks bool, w io.Writer) (int, error) {
	store, err := storage.Open(root)
	if err != nil {
		return 0, err
	}
	if followSymlinks {
		if local, ok := store.(*storage.Local); ok {
			local.FollowSymlinks(true)
		} else {
			logging.Warn("-follow-symlinks has no effect on %s", root)
		}
	}

	walker := dataset.NewWalker(store, entities.NewParser(schema.Default()))
	found, err := walker.Find(ctx, excludeDirs)
	if err != nil {
		return 0, err
	}

	for _, ds := range found {
		location := root
		if ds.Root != "" {
			location = strings.TrimSuffix(root, "/") + "/" + ds.Root
		}
		if ds.Description.Name != "" {
			fmt.Fprintf(w, "%s\t%s\t%s\n", location, ds.ID, ds.Description.Name)
		} else {
			fmt.Fprintf(w, "%s\t%s\n", location, ds.ID)
		}
	}
	return len(found), nil
}
