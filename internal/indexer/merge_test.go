package indexer

import (
	"testing"

	"bids-indexer/internal/table"
)

func testRow(datasetID, relPath string) table.Row {
	return table.Row{DatasetID: datasetID, RelativePath: relPath}
}

func TestMergerFullMode(t *testing.T) {
	m := NewMerger(nil, false)

	k := table.Key{DatasetID: "ds1", RelativePath: "a.nii.gz"}
	if m.Unchanged(k, 42) {
		t.Error("A full run should never report a file as unchanged")
	}

	next := table.NewManifest()
	next.Set(k, 42)
	cs := m.Changes([]table.Row{testRow("ds1", "a.nii.gz")}, next, []string{"ds1"})
	if len(cs.Added) != 1 || len(cs.Updated) != 0 || len(cs.Removed) != 0 {
		t.Errorf("Full mode change set = %d added, %d updated, %d removed, want 1/0/0",
			len(cs.Added), len(cs.Updated), len(cs.Removed))
	}
}

func TestMergerUnchanged(t *testing.T) {
	k := table.Key{DatasetID: "ds1", RelativePath: "a.nii.gz"}
	prior := table.NewManifest()
	prior.Set(k, 42)
	m := NewMerger(prior, false)

	if !m.Unchanged(k, 42) {
		t.Error("Expected an equal fingerprint to be unchanged")
	}
	if m.Unchanged(k, 43) {
		t.Error("Expected a different fingerprint to be changed")
	}
	if m.Unchanged(table.Key{DatasetID: "ds1", RelativePath: "b.nii.gz"}, 42) {
		t.Error("Expected an unknown key to be changed")
	}
}

func TestMergerClassifiesChanges(t *testing.T) {
	prior := table.NewManifest()
	prior.Set(table.Key{DatasetID: "ds1", RelativePath: "a.nii.gz"}, 1)
	prior.Set(table.Key{DatasetID: "ds1", RelativePath: "gone.nii.gz"}, 2)
	m := NewMerger(prior, false)

	// a.nii.gz changed, c.nii.gz is new, gone.nii.gz vanished.
	rows := []table.Row{testRow("ds1", "a.nii.gz"), testRow("ds1", "c.nii.gz")}
	next := table.NewManifest()
	next.Set(table.Key{DatasetID: "ds1", RelativePath: "a.nii.gz"}, 10)
	next.Set(table.Key{DatasetID: "ds1", RelativePath: "c.nii.gz"}, 11)

	cs := m.Changes(rows, next, []string{"ds1"})
	if len(cs.Added) != 1 || cs.Added[0].RelativePath != "c.nii.gz" {
		t.Errorf("Added = %v, want just c.nii.gz", cs.Added)
	}
	if len(cs.Updated) != 1 || cs.Updated[0].RelativePath != "a.nii.gz" {
		t.Errorf("Updated = %v, want just a.nii.gz", cs.Updated)
	}
	if len(cs.Removed) != 0 {
		t.Errorf("Removed = %v, want none without pruning", cs.Removed)
	}

	// Without pruning the vanished file's entry is carried forward,
	// mirroring the stale row that stays in the table.
	gone := table.Key{DatasetID: "ds1", RelativePath: "gone.nii.gz"}
	if _, ok := next.Get(gone); !ok {
		t.Error("Expected the vanished file to stay in the snapshot without pruning")
	}
}

func TestMergerPruneRemovesVanished(t *testing.T) {
	prior := table.NewManifest()
	prior.Set(table.Key{DatasetID: "ds1", RelativePath: "a.nii.gz"}, 1)
	prior.Set(table.Key{DatasetID: "ds1", RelativePath: "gone.nii.gz"}, 2)
	m := NewMerger(prior, true)

	next := table.NewManifest()
	next.Set(table.Key{DatasetID: "ds1", RelativePath: "a.nii.gz"}, 1)

	cs := m.Changes(nil, next, []string{"ds1"})
	if len(cs.Removed) != 1 {
		t.Fatalf("Removed = %v, want just gone.nii.gz", cs.Removed)
	}
	if cs.Removed[0].RelativePath != "gone.nii.gz" {
		t.Errorf("Removed key = %v, want gone.nii.gz", cs.Removed[0])
	}
	if _, ok := next.Get(table.Key{DatasetID: "ds1", RelativePath: "gone.nii.gz"}); ok {
		t.Error("Expected the pruned file to leave the snapshot")
	}
	if _, ok := next.Get(table.Key{DatasetID: "ds1", RelativePath: "a.nii.gz"}); !ok {
		t.Error("Expected the surviving file to stay in the snapshot")
	}
}

func TestMergerCarriesUnindexedDatasets(t *testing.T) {
	prior := table.NewManifest()
	prior.Set(table.Key{DatasetID: "ds1", RelativePath: "a.nii.gz"}, 1)
	prior.Set(table.Key{DatasetID: "ds2", RelativePath: "b.nii.gz"}, 2)
	prior.Set(table.Key{DatasetID: "ds2", RelativePath: "c.nii.gz"}, 3)
	m := NewMerger(prior, true)

	// Only ds1 was indexed this run; ds2 was skipped or failed, so its
	// entries must survive untouched even with pruning on.
	next := table.NewManifest()
	next.Set(table.Key{DatasetID: "ds1", RelativePath: "a.nii.gz"}, 1)

	cs := m.Changes(nil, next, []string{"ds1"})
	if len(cs.Removed) != 0 {
		t.Errorf("Removed = %v, pruning must not touch unindexed datasets", cs.Removed)
	}
	for _, rel := range []string{"b.nii.gz", "c.nii.gz"} {
		if _, ok := next.Get(table.Key{DatasetID: "ds2", RelativePath: rel}); !ok {
			t.Errorf("Expected ds2 entry %s to be carried into the next snapshot", rel)
		}
	}
	if next.Len() != 3 {
		t.Errorf("Snapshot size = %d, want 3", next.Len())
	}
}
