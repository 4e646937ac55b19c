package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bids-indexer/internal/table"
)

// ============================================================================
// Flag Validation Tests
// ============================================================================

func TestRunIndexValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"No arguments", []string{}},
		{"Output without roots", []string{"-output", "index.db"}},
		{"Roots without output", []string{"/data"}},
		{"Invalid format", []string{"-output", "index.db", "-format", "csv", "/data"}},
		{"Prune without incremental", []string{"-output", "index.db", "-prune", "/data"}},
		{"Parquet with incremental", []string{"-output", "tables", "-format", "parquet", "-incremental", "/data"}},
		{"Parquet with prune", []string{"-output", "tables", "-format", "parquet", "-incremental", "-prune", "/data"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runIndex(context.Background(), tt.args); got != 2 {
				t.Errorf("Expected exit code 2, got %d", got)
			}
		})
	}
}

// ============================================================================
// End-to-End Run Tests
// ============================================================================

// seedDataset lays down a minimal indexable dataset and returns its
// enclosing root directory.
func seedDataset(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "data")
	writeTestFile(t, filepath.Join(root, "ds000001", "dataset_description.json"),
		`{"Name":"Smoke Test","BIDSVersion":"1.8.0"}`)
	writeTestFile(t, filepath.Join(root, "ds000001", "sub-01", "anat", "sub-01_T1w.nii.gz"),
		"imaging bytes")
	writeTestFile(t, filepath.Join(root, "ds000001", "sub-01", "anat", "sub-01_T1w.json"),
		`{"EchoTime":0.03}`)
	return root
}

func TestRunIndexEndToEnd(t *testing.T) {
	dataRoot := seedDataset(t)
	out := t.TempDir()
	output := filepath.Join(out, "index.db")

	if got := runIndex(context.Background(), []string{"-output", output, "-no-progress", dataRoot}); got != 0 {
		t.Fatalf("Expected exit code 0, got %d", got)
	}

	info, err := os.Stat(output)
	if err != nil {
		t.Fatalf("Expected database at %s: %v", output, err)
	}
	if info.Size() == 0 {
		t.Error("Expected database to contain data")
	}
	if _, err := os.Stat(filepath.Join(out, table.ManifestName)); err != nil {
		t.Errorf("Expected manifest beside the output: %v", err)
	}
}

func TestRunIndexIncrementalSecondRun(t *testing.T) {
	dataRoot := seedDataset(t)
	output := filepath.Join(t.TempDir(), "index.db")
	args := []string{"-output", output, "-no-progress", dataRoot}

	if got := runIndex(context.Background(), args); got != 0 {
		t.Fatalf("First run failed with exit code %d", got)
	}
	if got := runIndex(context.Background(), append([]string{"-incremental"}, args...)); got != 0 {
		t.Fatalf("Incremental run failed with exit code %d", got)
	}
}

func TestRunIndexOverwrite(t *testing.T) {
	dataRoot := seedDataset(t)
	output := filepath.Join(t.TempDir(), "index.db")
	args := []string{"-output", output, "-no-progress", dataRoot}

	if got := runIndex(context.Background(), args); got != 0 {
		t.Fatalf("First run failed with exit code %d", got)
	}
	if got := runIndex(context.Background(), append([]string{"-overwrite"}, args...)); got != 0 {
		t.Fatalf("Overwrite run failed with exit code %d", got)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("Expected database after overwrite run: %v", err)
	}
}

func TestRunIndexParquet(t *testing.T) {
	dataRoot := seedDataset(t)
	output := filepath.Join(t.TempDir(), "tables")

	if got := runIndex(context.Background(), []string{"-output", output, "-no-progress", dataRoot}); got != 0 {
		t.Fatalf("Expected exit code 0, got %d", got)
	}

	parts, err := filepath.Glob(filepath.Join(output, "*.parquet"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(parts) == 0 {
		t.Error("Expected at least one parquet part file")
	}
}

// A root that cannot be indexed is logged and skipped; producing an
// empty table is still a successful run.
func TestRunIndexMissingRootStillExitsZero(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	output := filepath.Join(t.TempDir(), "index.db")

	if got := runIndex(context.Background(), []string{"-output", output, "-no-progress", missing}); got != 0 {
		t.Errorf("Expected exit code 0, got %d", got)
	}
}

func TestRunIndexSubjectFilter(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	writeTestFile(t, filepath.Join(root, "ds000001", "dataset_description.json"),
		`{"BIDSVersion":"1.8.0"}`)
	writeTestFile(t, filepath.Join(root, "ds000001", "sub-01", "anat", "sub-01_T1w.nii.gz"), "a")
	writeTestFile(t, filepath.Join(root, "ds000001", "sub-02", "anat", "sub-02_T1w.nii.gz"), "b")

	output := filepath.Join(t.TempDir(), "index.db")
	got := runIndex(context.Background(), []string{
		"-output", output, "-no-progress", "-subjects", "sub-01", root,
	})
	if got != 0 {
		t.Fatalf("Expected exit code 0, got %d", got)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("Expected database at %s: %v", output, err)
	}
}
