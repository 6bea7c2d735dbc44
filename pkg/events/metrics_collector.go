package events

import (
	"context"
	"time"

	"github.com/cuemby/bandstand/pkg/metrics"
	"github.com/cuemby/bandstand/pkg/types"
)

// MetricsCollector periodically samples the hub into gauges
type MetricsCollector struct {
	hub      *Hub
	interval time.Duration
	stopCh   chan struct{}
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(hub *Hub, interval time.Duration) *MetricsCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &MetricsCollector{
		hub:      hub,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *MetricsCollector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
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

// Stop stops the collector
func (c *MetricsCollector) Stop() {
	close(c.stopCh)
}

func (c *MetricsCollector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := c.hub.Stats(ctx)
	if err != nil {
		return
	}

	metrics.SubscribersConnected.Set(float64(stats.Subscribers))
	metrics.LogBufferEntries.Set(float64(stats.LogEntries))
	metrics.BotQueueLength.Set(float64(stats.QueueLength))
	metrics.BotVolume.Set(float64(stats.Volume))
	metrics.BotUp.Set(statusValue(stats.Status))

	if stats.ProducerConnected {
		metrics.ProducerConnected.Set(1)
	} else {
		metrics.ProducerConnected.Set(0)
	}
}

func statusValue(s types.BotStatus) float64 {
	switch s {
	case types.BotStatusOnline:
		return 1
	case types.BotStatusDegraded:
		return 0.5
	default:
		return 0
	}
}
