package table

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/zeebo/xxh3"

	"bids-indexer/internal/logging"
	"bids-indexer/internal/metrics"
)

// ManifestName is the file name of the incremental snapshot manifest,
// written beside the index output.
const ManifestName = "index-manifest.json"

const manifestVersion = 1

// Fingerprint hashes the identity of one file version. Any change to
// the relative path, size or modification time changes the value;
// file contents are never read.
func Fingerprint(relPath string, size int64, modTime time.Time) uint64 {
	buf := make([]byte, 0, len(relPath)+16)
	buf = append(buf, relPath...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(size))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(modTime.UnixNano()))
	return xxh3.Hash(buf)
}

// Manifest records the fingerprint of every indexed file, keyed by
// dataset ID then dataset-relative path. It is the prior-run state
// that incremental runs compare against, read-only during a run.
type Manifest struct {
	Version   int                          `json:"version"`
	CreatedAt time.Time                    `json:"created_at"`
	Datasets  map[string]map[string]uint64 `json:"datasets"`
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		Version:  manifestVersion,
		Datasets: make(map[string]map[string]uint64),
	}
}

// Get returns the recorded fingerprint for a key.
func (m *Manifest) Get(k Key) (uint64, bool) {
	fp, ok := m.Datasets[k.DatasetID][k.RelativePath]
	return fp, ok
}

// Set records a fingerprint.
func (m *Manifest) Set(k Key, fp uint64) {
	ds, ok := m.Datasets[k.DatasetID]
	if !ok {
		ds = make(map[string]uint64)
		m.Datasets[k.DatasetID] = ds
	}
	ds[k.RelativePath] = fp
}

// Remove drops a key, if present.
func (m *Manifest) Remove(k Key) {
	ds, ok := m.Datasets[k.DatasetID]
	if !ok {
		return
	}
	delete(ds, k.RelativePath)
	if len(ds) == 0 {
		delete(m.Datasets, k.DatasetID)
	}
}

// Len returns the number of recorded files.
func (m *Manifest) Len() int {
	n := 0
	for _, ds := range m.Datasets {
		n += len(ds)
	}
	return n
}

// DatasetIDs returns the recorded dataset IDs, sorted.
func (m *Manifest) DatasetIDs() []string {
	ids := make([]string, 0, len(m.Datasets))
	for id := range m.Datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DatasetPaths returns the recorded relative paths of one dataset,
// sorted. Removal detection iterates these for each scanned dataset.
func (m *Manifest) DatasetPaths(datasetID string) []string {
	ds := m.Datasets[datasetID]
	out := make([]string, 0, len(ds))
	for p := range ds {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// LoadManifest reads a manifest file. A missing file yields an empty
// manifest, which turns the first incremental run into a full run.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Info("No prior manifest at %s, running a full index", path)
			return NewManifest(), nil
		}
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	m := NewManifest()
	if err := json.NewDecoder(f).Decode(m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("manifest %s has unsupported version %d", path, m.Version)
	}
	if m.Datasets == nil {
		m.Datasets = make(map[string]map[string]uint64)
	}

	metrics.SnapshotEntriesLoaded.Set(float64(m.Len()))
	logging.Info("Loaded manifest %s: %d files across %d datasets", path, m.Len(), len(m.Datasets))
	return m, nil
}

// Save writes the manifest atomically: encode to a temp file, move any
// prior manifest to .bak, rename the temp file into place.
func (m *Manifest) Save(path string) error {
	m.Version = manifestVersion
	m.CreatedAt = time.Now().UTC()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create manifest temp file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close manifest temp file: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".bak"); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("back up prior manifest: %w", err)
		}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace manifest: %w", err)
	}

	logging.Debug("Saved manifest %s: %d files", path, m.Len())
	return nil
}
