package table

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bids-indexer/internal/schema"
)

func TestParquetSinkWritesParts(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewParquetSink(dir, schema.Default(), 2)
	if err != nil {
		t.Fatalf("NewParquetSink failed: %v", err)
	}

	var rows []Row
	for i := 0; i < 5; i++ {
		rows = append(rows, testRow("ds1", fmt.Sprintf("sub-%02d/func/sub-%02d_task-rest_bold.nii.gz", i, i)))
	}
	if err := sink.WriteRows(context.Background(), rows); err != nil {
		t.Fatalf("WriteRows failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	parts, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(parts) != 3 {
		t.Errorf("Part count = %d, want 3 for 5 rows with part size 2", len(parts))
	}
	for _, p := range parts {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("Failed to read part %s: %v", p, err)
		}
		if !bytes.HasPrefix(data, []byte("PAR1")) {
			t.Errorf("Part %s does not start with the parquet magic", filepath.Base(p))
		}
	}

	tmps, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(tmps) != 0 {
		t.Errorf("Expected no leftover temp files, found %v", tmps)
	}
}

func TestParquetSinkEmptyCloseWritesNothing(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewParquetSink(dir, schema.Default(), 0)
	if err != nil {
		t.Fatalf("NewParquetSink failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected an empty output directory, found %d entries", len(entries))
	}
}

func TestParquetSinkClosedErrors(t *testing.T) {
	sink, err := NewParquetSink(t.TempDir(), schema.Default(), 0)
	if err != nil {
		t.Fatalf("NewParquetSink failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
	err = sink.WriteRows(context.Background(), []Row{testRow("ds1", "sub-01/anat/sub-01_T1w.nii.gz")})
	if err == nil {
		t.Fatal("Expected an error writing to a closed sink")
	}
	if !strings.Contains(err.Error(), "closed") {
		t.Errorf("Error = %v, expected it to mention the closed sink", err)
	}
}

func TestParquetSinkReservedEntityCollision(t *testing.T) {
	bad := testSchemaFile(t, "entities:\n  - key: sub\n    required: true\n  - key: meta\n")
	_, err := NewParquetSink(t.TempDir(), bad, 0)
	if err == nil {
		t.Fatal("Expected an error for an entity key colliding with a fixed column")
	}
	if !strings.Contains(err.Error(), "collides") {
		t.Errorf("Error = %v, expected a collision message", err)
	}
}

func TestParquetSinkContextCanceled(t *testing.T) {
	sink, err := NewParquetSink(t.TempDir(), schema.Default(), 0)
	if err != nil {
		t.Fatalf("NewParquetSink failed: %v", err)
	}
	defer sink.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = sink.WriteRows(ctx, []Row{testRow("ds1", "sub-01/anat/sub-01_T1w.nii.gz")})
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestClearParts(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewParquetSink(dir, schema.Default(), 0)
	if err != nil {
		t.Fatalf("NewParquetSink failed: %v", err)
	}
	if err := sink.WriteRows(context.Background(), []Row{
		testRow("ds1", "sub-01/anat/sub-01_T1w.nii.gz"),
		testRow("ds1", "sub-02/anat/sub-02_T1w.nii.gz"),
	}); err != nil {
		t.Fatalf("WriteRows failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The manifest beside the parts must survive the clear
	manifest := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(manifest, []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := ClearParts(dir); err != nil {
		t.Fatalf("ClearParts failed: %v", err)
	}

	parts, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(parts) != 0 {
		t.Errorf("Part count after ClearParts = %d, want 0", len(parts))
	}
	if _, err := os.Stat(manifest); err != nil {
		t.Errorf("Expected manifest to survive ClearParts: %v", err)
	}
}

func TestClearPartsMissingDirectory(t *testing.T) {
	if err := ClearParts(filepath.Join(t.TempDir(), "nonexistent")); err != nil {
		t.Errorf("Expected nil for a missing directory, got %v", err)
	}
}
