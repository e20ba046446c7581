package raftlog

import (
	"context"
	"time"

	"github.com/cuemby/raftstore/pkg/metrics"
)

// Collector periodically polls a Facade and its embedded search engine,
// publishing what it finds as Prometheus gauges and counters. It lives in
// this package, rather than pkg/metrics, because it needs Facade's
// concrete type and pkg/metrics must stay free of a dependency back on
// pkg/raftlog so raftlog's own .Observe()/.Inc() call sites can import
// pkg/metrics without an import cycle.
type Collector struct {
	facade *Facade
	stopCh chan struct{}
}

// NewCollector creates a metrics collector for facade.
func NewCollector(facade *Facade) *Collector {
	return &Collector{
		facade: facade,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds, collecting once
// immediately.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectLogMetrics()
	c.collectStateMachineMetrics()
}

func (c *Collector) collectLogMetrics() {
	stats, err := c.facade.Stats(context.Background())
	if err != nil {
		return
	}
	metrics.LogLength.Set(float64(stats.LogLength))
	metrics.LastLogIndex.Set(float64(stats.LastLogIndex))
	metrics.LastAppliedIndex.Set(float64(stats.LastApplied))
}

func (c *Collector) collectStateMachineMetrics() {
	engine := c.facade.Engine()

	indexes, err := engine.ListIndexes()
	if err == nil {
		metrics.IndexesTotal.Set(float64(len(indexes)))
	}

	counts, err := engine.TaskCounts()
	if err == nil {
		for status, count := range counts {
			metrics.TasksTotal.WithLabelValues(string(status)).Set(float64(count))
		}
	}

	metrics.SearchEngineReaders.Set(float64(engine.ReaderCount()))
}
