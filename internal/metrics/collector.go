package metrics

import (
	"time"

	"medialib/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current catalog statistics
type Stats struct {
	FilesByKind    map[string]int
	JunkCandidates int
	RemoteRoots    int
}

// Collector periodically collects and updates catalog metrics
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

	total := 0
	for kind, n := range stats.FilesByKind {
		CatalogFilesTotal.WithLabelValues(kind).Set(float64(n))
		total += n
	}
	CatalogJunkCandidates.Set(float64(stats.JunkCandidates))
	CatalogRemoteRoots.Set(float64(stats.RemoteRoots))

	logging.Debug("Metrics collected: files=%d, junk=%d, roots=%d",
		total, stats.JunkCandidates, stats.RemoteRoots)
}
