package indexer

import (
	"bids-indexer/internal/table"
)

// ChangeSet is the delta one run produced against the prior snapshot.
// The three sets are disjoint by key. On a full run everything lands
// in Added.
type ChangeSet struct {
	Added   []table.Row
	Updated []table.Row
	Removed []table.Key
}

// Merger reconciles a fresh scan against the prior snapshot. Its prior
// manifest is read-only for the whole run and safe to consult from
// every worker; the next snapshot is assembled per work unit and
// merged afterwards, so the Merger itself carries no mutable state.
type Merger struct {
	prior *table.Manifest
	prune bool
}

// NewMerger wraps a prior snapshot. A nil prior puts the run in full
// mode: nothing is skipped and nothing is removed.
func NewMerger(prior *table.Manifest, prune bool) *Merger {
	return &Merger{prior: prior, prune: prune}
}

// Unchanged reports whether a file can be skipped outright because its
// fingerprint matches the prior snapshot. This is the incremental hot
// path and runs before any parse or metadata work.
func (m *Merger) Unchanged(k table.Key, fp uint64) bool {
	if m.prior == nil {
		return false
	}
	prev, ok := m.prior.Get(k)
	return ok && prev == fp
}

// known reports whether the prior snapshot already had a row for the
// key, fingerprint aside.
func (m *Merger) known(k table.Key) bool {
	if m.prior == nil {
		return false
	}
	_, ok := m.prior.Get(k)
	return ok
}

// Changes classifies fresh rows against the prior snapshot and settles
// the next one. Every fresh row is added or updated by key presence;
// unchanged files never reach this point. Prior entries the scan did
// not see become removals only when pruning is on AND their dataset
// was fully indexed this run; entries of failed or untouched datasets
// are carried into the next snapshot untouched, since their table rows
// were not revisited either.
func (m *Merger) Changes(rows []table.Row, next *table.Manifest, indexed []string) ChangeSet {
	var cs ChangeSet
	for _, r := range rows {
		if m.known(r.Key()) {
			cs.Updated = append(cs.Updated, r)
		} else {
			cs.Added = append(cs.Added, r)
		}
	}
	if m.prior == nil {
		return cs
	}

	visited := make(map[string]bool, len(indexed))
	for _, id := range indexed {
		visited[id] = true
	}

	for _, datasetID := range m.prior.DatasetIDs() {
		carry := !visited[datasetID]
		for _, relPath := range m.prior.DatasetPaths(datasetID) {
			k := table.Key{DatasetID: datasetID, RelativePath: relPath}
			fp, _ := m.prior.Get(k)
			if carry {
				next.Set(k, fp)
				continue
			}
			if _, ok := next.Get(k); ok {
				continue
			}
			if m.prune {
				cs.Removed = append(cs.Removed, k)
			} else {
				// Without pruning the stale row stays in the table, so
				// the snapshot keeps claiming it.
				next.Set(k, fp)
			}
		}
	}
	return cs
}
