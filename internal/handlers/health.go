package handlers

import (
	"net/http"
	"runtime"

	"bids-indexer/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status          string `json:"status"`
	Ready           bool   `json:"ready"`
	Version         string `json:"version"`
	Uptime          string `json:"uptime"`
	Indexing        bool   `json:"indexing"`
	LastIndexed     string `json:"lastIndexed,omitempty"`
	InitialRunError string `json:"initialRunError,omitempty"`

	// Progress info
	FilesScanned int64 `json:"filesScanned"`
	RowsEmitted  int64 `json:"rowsEmitted"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalRows     int `json:"totalRows,omitempty"`
	TotalDatasets int `json:"totalDatasets,omitempty"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	health := h.indexer.GetHealth()
	progress := h.indexer.Progress()
	stats := h.indexer.GetStats()

	response := HealthResponse{
		Ready:        health.Ready,
		Version:      startup.Version,
		Uptime:       health.Uptime,
		Indexing:     health.Indexing,
		FilesScanned: progress.Files,
		RowsEmitted:  progress.Rows,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if health.Ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	if !health.LastIndexed.IsZero() {
		response.LastIndexed = health.LastIndexed.Format("2006-01-02T15:04:05Z07:00")
	}

	if health.InitialRunError != "" {
		response.InitialRunError = health.InitialRunError
		response.Status = statusDegraded
	}

	// Include stats if available
	if stats.TotalRows > 0 || stats.TotalDatasets > 0 {
		response.TotalRows = stats.TotalRows
		response.TotalDatasets = stats.TotalDatasets
	}

	w.Header().Set("Content-Type", "application/json")

	// Return 503 only if not ready at all
	if !health.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	// For HEAD requests, only send headers (no body)
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSONStatus(w, "alive")
}

// ReadinessCheck returns 200 only when the first indexing run has completed
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.indexer.IsReady() {
		w.WriteHeader(http.StatusOK)
		writeJSON(w, map[string]string{
			"status": "ready",
		})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
	}
}
