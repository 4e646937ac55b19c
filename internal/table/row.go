package table

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Key identifies one row of an index. No two rows of a table may share
// a Key; sinks enforce this with upserts keyed on it.
type Key struct {
	DatasetID    string
	RelativePath string
}

func (k Key) String() string {
	return k.DatasetID + ":" + k.RelativePath
}

// Row is one record of the output table, describing one data file of
// one dataset. Rows are immutable once emitted by a builder.
type Row struct {
	DatasetID    string
	DatasetName  string
	DatasetType  string
	DatasetRoot  string
	RelativePath string
	// Entities holds only schema-recognized keys; output column order
	// always follows the schema's canonical order, not insertion order.
	Entities  map[string]string
	Datatype  string
	Suffix    string
	Extension string
	Metadata  map[string]any
	Size      int64
	ModTime   time.Time
}

// Key returns the row's table key.
func (r Row) Key() Key {
	return Key{DatasetID: r.DatasetID, RelativePath: r.RelativePath}
}

// EncodeMetadata renders merged metadata as compact JSON. Empty
// metadata encodes to "" so sinks can store NULL instead of "{}".
func EncodeMetadata(meta map[string]any) (string, error) {
	if len(meta) == 0 {
		return "", nil
	}
	out, err := json.MarshalToString(meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return out, nil
}

// Sink persists rows in batches. Implementations are not safe for
// concurrent use; the indexer serializes writes after the merge step.
type Sink interface {
	WriteRows(ctx context.Context, rows []Row) error
	Close() error
}

// Deleter is the optional sink capability of removing rows by key,
// used by prune runs. The parquet sink is append-only and does not
// implement it.
type Deleter interface {
	DeleteRows(ctx context.Context, keys []Key) error
}

// reservedColumns are the fixed output column names shared by all
// sinks. Entity keys may not collide with them.
var reservedColumns = map[string]bool{
	"dataset_id":   true,
	"dataset_name": true,
	"dataset_type": true,
	"datatype":     true,
	"suffix":       true,
	"ext":          true,
	"meta":         true,
	"root":         true,
	"path":         true,
	"size":         true,
	"mtime":        true,
}

func checkEntityColumns(keys []string) error {
	for _, k := range keys {
		if reservedColumns[k] {
			return fmt.Errorf("entity key %q collides with a fixed output column", k)
		}
	}
	return nil
}
