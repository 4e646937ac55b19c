package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bids-indexer/internal/startup"
)

// =============================================================================
// GetVersion Tests
// =============================================================================

func TestGetVersion(t *testing.T) {
	t.Parallel()

	h := &Handlers{}

	req := httptest.NewRequest(http.MethodGet, "/version", http.NoBody)
	w := httptest.NewRecorder()

	h.GetVersion(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %q", contentType)
	}
}

func TestGetVersionCacheControl(t *testing.T) {
	t.Parallel()

	h := &Handlers{}

	req := httptest.NewRequest(http.MethodGet, "/version", http.NoBody)
	w := httptest.NewRecorder()

	h.GetVersion(w, req)

	cacheControl := w.Header().Get("Cache-Control")
	if cacheControl != "no-cache" {
		t.Errorf("Expected Cache-Control: no-cache, got %q", cacheControl)
	}
}

func TestGetVersionJSONValidation(t *testing.T) {
	t.Parallel()

	h := &Handlers{}

	req := httptest.NewRequest(http.MethodGet, "/version", http.NoBody)
	w := httptest.NewRecorder()

	h.GetVersion(w, req)

	// Verify it's valid JSON
	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Response is not valid JSON: %v", err)
	}

	// Check for expected fields (values may be empty but keys should exist)
	expectedFields := []string{"version", "commit", "buildTime", "goVersion"}
	for _, field := range expectedFields {
		if _, exists := result[field]; !exists {
			t.Errorf("Expected field %q in response", field)
		}
	}
}

func TestGetVersionConsistency(t *testing.T) {
	t.Parallel()

	h := &Handlers{}

	var firstResponse startup.BuildInfo

	req1 := httptest.NewRequest(http.MethodGet, "/version", http.NoBody)
	w1 := httptest.NewRecorder()
	h.GetVersion(w1, req1)

	if err := json.NewDecoder(w1.Body).Decode(&firstResponse); err != nil {
		t.Fatalf("Failed to decode first response: %v", err)
	}

	var secondResponse startup.BuildInfo

	req2 := httptest.NewRequest(http.MethodGet, "/version", http.NoBody)
	w2 := httptest.NewRecorder()
	h.GetVersion(w2, req2)

	if err := json.NewDecoder(w2.Body).Decode(&secondResponse); err != nil {
		t.Fatalf("Failed to decode second response: %v", err)
	}

	// Version info should be consistent
	if firstResponse.Version != secondResponse.Version {
		t.Errorf("Version changed between calls: %q != %q", firstResponse.Version, secondResponse.Version)
	}

	if firstResponse.GoVersion != secondResponse.GoVersion {
		t.Errorf("GoVersion changed between calls: %q != %q", firstResponse.GoVersion, secondResponse.GoVersion)
	}
}
