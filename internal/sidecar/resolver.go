package sidecar

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"bids-indexer/internal/entities"
	"bids-indexer/internal/logging"
	"bids-indexer/internal/metrics"
	"bids-indexer/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Warning records a non-fatal problem found while resolving metadata:
// a malformed sidecar, a vanished sidecar, or an ambiguous tie between
// equally specific sidecars. Warnings never stop the merge.
type Warning struct {
	Path   string
	Reason string
}

func (w Warning) String() string {
	return w.Path + ": " + w.Reason
}

// candidate is one parsed sidecar filename within a directory level.
type candidate struct {
	name string
	rec  entities.Record
}

// Resolver merges JSON sidecar metadata for the data files of a single
// dataset, walking from the dataset root down to each file's own
// directory so that closer sidecars override more distant ones.
//
// Directory listings and decoded sidecar contents are cached for the
// lifetime of the Resolver. A Resolver is not safe for concurrent use;
// each worker builds its own and drops it when the dataset is done.
type Resolver struct {
	store  storage.Backend
	parser *entities.Parser
	root   string

	levels   map[string][]candidate
	contents map[string]map[string]any
	warned   map[string]bool
}

// NewResolver creates a resolver for one dataset. root is the dataset
// root relative to the backend root; empty means the backend root
// itself.
func NewResolver(store storage.Backend, parser *entities.Parser, root string) *Resolver {
	if root == "." {
		root = ""
	}
	return &Resolver{
		store:    store,
		parser:   parser,
		root:     root,
		levels:   make(map[string][]candidate),
		contents: make(map[string]map[string]any),
		warned:   make(map[string]bool),
	}
}

// Resolve returns the merged sidecar metadata for one data file. relPath
// is the file's path relative to the dataset root; rec is its parsed
// entity record.
//
// Sidecars apply when their entities are a subset of the file's with
// equal values (datatype excluded) and their suffix matches. Per
// directory level the most specific match wins; the merge runs from the
// dataset root down, so keys set closer to the file override keys set
// higher up. Malformed or vanished sidecars contribute nothing and are
// reported as warnings. The returned error is reserved for storage
// failures that survived the retry policy.
func (r *Resolver) Resolve(ctx context.Context, relPath string, rec entities.Record) (map[string]any, []Warning, error) {
	merged := make(map[string]any)
	var warnings []Warning

	for _, level := range ancestorLevels(path.Dir(relPath)) {
		cands, err := r.candidatesAt(ctx, level)
		if err != nil {
			return nil, warnings, err
		}

		matches := match(cands, rec)
		if len(matches) == 0 {
			continue
		}

		winner := r.pickWinner(level, matches, &warnings)
		data, err := r.load(ctx, r.join(level, winner.name), &warnings)
		if err != nil {
			return nil, warnings, err
		}
		for k, v := range data {
			merged[k] = v
		}
	}

	return merged, warnings, nil
}

// ancestorLevels lists the directory levels from the dataset root down
// to dir, both inclusive. Levels are dataset-relative; "" is the root.
func ancestorLevels(dir string) []string {
	levels := []string{""}
	if dir == "." || dir == "" || dir == "/" {
		return levels
	}
	parts := strings.Split(dir, "/")
	for i := range parts {
		levels = append(levels, path.Join(parts[:i+1]...))
	}
	return levels
}

func (r *Resolver) join(level, name string) string {
	return path.Join(r.root, level, name)
}

// candidatesAt lists and parses the sidecar files of one directory
// level, cached per level. Filenames that do not parse under the schema
// are not candidates.
func (r *Resolver) candidatesAt(ctx context.Context, level string) ([]candidate, error) {
	if cands, ok := r.levels[level]; ok {
		return cands, nil
	}

	listing, err := r.store.List(ctx, path.Join(r.root, level))
	if err != nil {
		return nil, err
	}

	cands := make([]candidate, 0, 4)
	for _, entry := range listing {
		if entry.IsDir || !strings.HasSuffix(entry.Name, ".json") {
			continue
		}
		rec, err := r.parser.Parse(entry.Name)
		if err != nil {
			logging.Debug("Not a sidecar candidate: %s: %v", r.join(level, entry.Name), err)
			continue
		}
		cands = append(cands, candidate{name: entry.Name, rec: rec})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].name < cands[j].name })

	r.levels[level] = cands
	return cands, nil
}

// match filters the candidates that apply to a target record: equal
// suffix and entities a value-equal subset of the target's.
func match(cands []candidate, rec entities.Record) []candidate {
	var matches []candidate
	for _, c := range cands {
		if c.rec.Suffix != rec.Suffix {
			continue
		}
		if !c.rec.SubsetOf(rec) {
			continue
		}
		matches = append(matches, c)
	}
	return matches
}

// pickWinner selects the most specific match at one level. Specificity
// is the number of entities a candidate shares with the target; every
// candidate entity matches by construction. Equal specificity falls
// back to lexicographic filename order, later name winning, and emits
// a warning since the dataset is ambiguous.
func (r *Resolver) pickWinner(level string, matches []candidate, warnings *[]Warning) candidate {
	best := matches[0]
	ties := 1
	for _, c := range matches[1:] {
		switch {
		case len(c.rec.Entities) > len(best.rec.Entities):
			best = c
			ties = 1
		case len(c.rec.Entities) == len(best.rec.Entities):
			// Candidates are name-sorted, so the later name wins.
			best = c
			ties++
		}
	}
	if ties > 1 {
		names := make([]string, 0, ties)
		for _, c := range matches {
			if len(c.rec.Entities) == len(best.rec.Entities) {
				names = append(names, c.name)
			}
		}
		r.warn(warnings, r.join(level, best.name),
			fmt.Sprintf("equally specific sidecars %s, using %s", strings.Join(names, ", "), best.name))
	}
	return best
}

// load reads and decodes one sidecar file, cached per path. A nil cache
// entry marks a sidecar already known to be unusable.
func (r *Resolver) load(ctx context.Context, p string, warnings *[]Warning) (map[string]any, error) {
	if data, ok := r.contents[p]; ok {
		metrics.SidecarCacheHits.Inc()
		return data, nil
	}
	metrics.SidecarCacheMisses.Inc()
	metrics.SidecarReadsTotal.Inc()

	raw, err := r.store.Read(ctx, p)
	if err != nil {
		if storage.IsNotExist(err) {
			r.contents[p] = nil
			r.warn(warnings, p, "sidecar vanished during scan")
			return nil, nil
		}
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		r.contents[p] = nil
		r.warn(warnings, p, fmt.Sprintf("malformed JSON: %v", err))
		return nil, nil
	}
	if data == nil {
		data = map[string]any{}
	}

	r.contents[p] = data
	return data, nil
}

// warn logs, counts and records a warning once per resolver lifetime.
func (r *Resolver) warn(warnings *[]Warning, p, reason string) {
	key := p + ": " + reason
	if r.warned[key] {
		return
	}
	r.warned[key] = true

	logging.Warn("Sidecar %s: %s", p, reason)
	metrics.SidecarWarnings.Inc()
	*warnings = append(*warnings, Warning{Path: p, Reason: reason})
}
