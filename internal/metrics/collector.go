package metrics

import (
	"time"

	"bids-indexer/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current index statistics
type Stats struct {
	TotalRows      int
	TotalDatasets  int
	TotalFailures  int
	ParseFailures  int
	MetaFailures   int
	IOFailures     int
	StructFailures int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	IndexRowsTotal.Set(float64(stats.TotalRows))
	IndexDatasetsTotal.Set(float64(stats.TotalDatasets))
	IndexFailuresTotal.WithLabelValues("parse").Set(float64(stats.ParseFailures))
	IndexFailuresTotal.WithLabelValues("metadata").Set(float64(stats.MetaFailures))
	IndexFailuresTotal.WithLabelValues("io").Set(float64(stats.IOFailures))
	IndexFailuresTotal.WithLabelValues("structural").Set(float64(stats.StructFailures))

	logging.Debug("Metrics collected: rows=%d, datasets=%d, failures=%d",
		stats.TotalRows, stats.TotalDatasets, stats.TotalFailures)
}
