package handlers

import (
	"net/http"

	"bids-indexer/internal/indexer"
	"bids-indexer/internal/logging"
)

// OutputInfo describes where the index is written.
type OutputInfo struct {
	Format string   `json:"format"`
	Path   string   `json:"path"`
	Roots  []string `json:"roots"`
}

// StatsResponse contains the run statistics response
type StatsResponse struct {
	LastRun  *indexer.Report  `json:"lastRun,omitempty"`
	Progress indexer.Progress `json:"progress"`
	Output   OutputInfo       `json:"output"`
}

// TriggerIndex starts an indexing run in the background. It returns 202
// immediately; the run outlives the request. If a run is already in
// progress it returns 409 without starting another.
func (h *Handlers) TriggerIndex(w http.ResponseWriter, _ *http.Request) {
	if !h.indexer.TriggerRun(h.runCtx) {
		writeJSONError(w, "an indexing run is already in progress", http.StatusConflict)
		return
	}

	logging.Info("Indexing run triggered via API")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{
		"status": "started",
	})
}

// GetStats returns the report from the last completed run along with
// live progress counters and the output configuration.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	response := StatsResponse{
		LastRun:  h.indexer.LastReport(),
		Progress: h.indexer.Progress(),
		Output: OutputInfo{
			Format: h.config.OutputFormat,
			Path:   h.config.OutputPath,
			Roots:  h.config.Roots,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeJSON(w, response)
}
