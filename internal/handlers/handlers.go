package handlers

import (
	"context"

	"bids-indexer/internal/indexer"
	"bids-indexer/internal/metrics"
	"bids-indexer/internal/startup"
)

// IndexerService is the slice of the indexer the API needs. The
// concrete *indexer.Indexer satisfies it; tests substitute mocks.
type IndexerService interface {
	GetHealth() indexer.Health
	IsReady() bool
	TriggerRun(ctx context.Context) bool
	LastReport() *indexer.Report
	Progress() indexer.Progress
	GetStats() metrics.Stats
}

type Handlers struct {
	indexer IndexerService
	config  *startup.Config

	// runCtx outlives any single request: runs triggered over the API
	// keep going after the response is written.
	runCtx context.Context
}

func New(ctx context.Context, idx IndexerService, config *startup.Config) *Handlers {
	return &Handlers{
		indexer: idx,
		config:  config,
		runCtx:  ctx,
	}
}
