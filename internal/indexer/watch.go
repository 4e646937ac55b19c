package indexer

import (
	"context"
	"errors"
	"strings"
	"time"

	"bids-indexer/internal/logging"
	"bids-indexer/internal/metrics"
	"bids-indexer/internal/storage"
)

// defaultPollInterval between change-detection probes when the options
// leave it unset.
const defaultPollInterval = 30 * time.Second

// rootState is the lightweight signature of a search root used for
// change detection between runs: root mtime, non-hidden entry count and
// the mtimes of the immediate subdirectories.
type rootState struct {
	modTime time.Time
	entries int
	subdirs map[string]time.Time
}

// Start launches serve mode: the initial run in the background, the
// change-detection poller and, when an interval is configured, the
// periodic re-index ticker. It returns immediately; the goroutines stop
// when the context is canceled.
func (ix *Indexer) Start(ctx context.Context) {
	go func() {
		logging.Info("Starting initial index in background...")
		if _, err := ix.Run(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
			logging.Error("Initial index error: %v", err)
			ix.mu.Lock()
			ix.initialRunErr = err
			ix.mu.Unlock()
		}
	}()

	go ix.pollForChanges(ctx)

	if ix.opts.Interval > 0 {
		go ix.periodicRun(ctx)
	}
}

// TriggerRun starts a run in the background unless one is already
// active. It reports whether a new run was started.
func (ix *Indexer) TriggerRun(ctx context.Context) bool {
	if ix.IsRunning() {
		return false
	}
	go func() {
		if _, err := ix.Run(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
			logging.Error("Triggered index error: %v", err)
		}
	}()
	return true
}

// IsReady reports whether the first run has completed. Serve mode keeps
// readiness false until then so load balancers hold traffic back while
// the index is still empty.
func (ix *Indexer) IsReady() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.firstRunDone
}

// Health contains health check information.
type Health struct {
	Ready           bool      `json:"ready"`
	Indexing        bool      `json:"indexing"`
	StartTime       time.Time `json:"startTime"`
	Uptime          string    `json:"uptime"`
	LastIndexed     time.Time `json:"lastIndexed,omitempty"`
	InitialRunError string    `json:"initialRunError,omitempty"`
	Progress        *Progress `json:"progress,omitempty"`
}

// GetHealth returns detailed health information.
func (ix *Indexer) GetHealth() Health {
	ix.mu.Lock()
	h := Health{
		Ready:       ix.firstRunDone,
		Indexing:    ix.isRunning,
		StartTime:   ix.startTime,
		Uptime:      time.Since(ix.startTime).String(),
		LastIndexed: ix.lastRunTime,
	}
	if ix.initialRunErr != nil {
		h.InitialRunError = ix.initialRunErr.Error()
	}
	ix.mu.Unlock()

	if h.Indexing {
		p := ix.Progress()
		h.Progress = &p
	}
	return h
}

// pollForChanges waits for the first run, then probes the roots on a
// fixed interval and re-indexes when something moved.
func (ix *Indexer) pollForChanges(ctx context.Context) {
	for !ix.IsReady() {
		select {
		case <-time.After(1 * time.Second):
		case <-ctx.Done():
			return
		}
	}

	logging.Info("Starting change detection polling (interval: %v)", ix.pollInterval())
	ticker := time.NewTicker(ix.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := ix.detectChanges(ctx)
			if err != nil {
				logging.Error("Change detection error: %v", err)
				continue
			}
			if changed {
				logging.Info("Changes detected, triggering re-index")
				if _, err := ix.Run(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
					logging.Error("Re-index error: %v", err)
				}
			}
		}
	}
}

// periodicRun re-indexes on a fixed schedule regardless of detected
// changes, as a safety net for edits the shallow probes cannot see.
func (ix *Indexer) periodicRun(ctx context.Context) {
	ticker := time.NewTicker(ix.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logging.Debug("Starting periodic index run")
			if _, err := ix.Run(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
				logging.Error("Periodic index error: %v", err)
			}
		}
	}
}

// detectChanges probes every root and compares against the state
// captured after the last run. The probe is intentionally shallow: root
// mtime, entry count and immediate subdirectory mtimes. Changes deeper
// in the tree are caught by the periodic ticker instead.
func (ix *Indexer) detectChanges(ctx context.Context) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.IndexerPollDuration.Observe(time.Since(start).Seconds())
		metrics.IndexerPollChecksTotal.Inc()
	}()

	ix.stateMu.RLock()
	prev := make(map[string]rootState, len(ix.lastState))
	for root, st := range ix.lastState {
		prev[root] = st
	}
	ix.stateMu.RUnlock()
	if len(prev) == 0 {
		return false, nil
	}

	for root, old := range prev {
		cur, err := ix.probeRoot(ctx, root)
		if err != nil {
			return false, err
		}

		if !old.modTime.IsZero() && cur.modTime.After(old.modTime) {
			logging.Debug("Root %s modified", root)
			metrics.IndexerPollChangesDetected.Inc()
			return true, nil
		}
		if cur.entries != old.entries {
			logging.Debug("Entry count at %s changed: %d -> %d", root, old.entries, cur.entries)
			metrics.IndexerPollChangesDetected.Inc()
			return true, nil
		}
		for name, mod := range cur.subdirs {
			oldMod, ok := old.subdirs[name]
			if !ok {
				logging.Debug("New directory %s under %s", name, root)
				metrics.IndexerPollChangesDetected.Inc()
				return true, nil
			}
			if mod.After(oldMod) {
				logging.Debug("Directory %s under %s modified", name, root)
				metrics.IndexerPollChangesDetected.Inc()
				return true, nil
			}
		}
	}
	return false, nil
}

// probeRoot captures the change-detection signature of one root. A
// failed root stat is tolerated, object store prefixes have no mtime; a
// failed listing is not.
func (ix *Indexer) probeRoot(ctx context.Context, root string) (rootState, error) {
	backend, err := storage.Open(root)
	if err != nil {
		return rootState{}, err
	}

	st := rootState{subdirs: make(map[string]time.Time)}
	if info, err := backend.Stat(ctx, ""); err == nil {
		st.modTime = info.ModTime
	}

	entries, err := backend.List(ctx, "")
	if err != nil {
		return rootState{}, err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name, ".") {
			continue
		}
		st.entries++
		if e.IsDir {
			st.subdirs[e.Name] = e.ModTime
		}
	}
	return st, nil
}

// updateLastKnownState re-probes every root after a run so the next
// poll compares against the tree the index just saw.
func (ix *Indexer) updateLastKnownState(ctx context.Context) {
	next := make(map[string]rootState, len(ix.opts.Roots))
	for _, root := range ix.opts.Roots {
		st, err := ix.probeRoot(ctx, root)
		if err != nil {
			logging.Warn("Could not record state of %s: %v", root, err)
			continue
		}
		next[root] = st
	}

	ix.stateMu.Lock()
	ix.lastState = next
	ix.stateMu.Unlock()
}

func (ix *Indexer) pollInterval() time.Duration {
	if ix.opts.PollInterval > 0 {
		return ix.opts.PollInterval
	}
	return defaultPollInterval
}
