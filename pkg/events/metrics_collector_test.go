package events

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/bandstand/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollectorSamplesHub(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, Config{LogCapacity: 10})

	_, err := h.UpdateState(ctx, rawPatch(t, `{"status":"degraded","volume":40,"queue":[{"title":"a"},{"title":"b"}]}`))
	require.NoError(t, err)
	_, err = h.Subscribe(ctx)
	require.NoError(t, err)
	_, err = h.ConnectProducer(ctx)
	require.NoError(t, err)

	c := NewMetricsCollector(h, time.Hour)
	c.collect()

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SubscribersConnected))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProducerConnected))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.BotQueueLength))
	assert.Equal(t, 40.0, testutil.ToFloat64(metrics.BotVolume))
	assert.Equal(t, 0.5, testutil.ToFloat64(metrics.BotUp))
}

func TestMetricsCollectorStartStop(t *testing.T) {
	h := newTestHub(t, Config{LogCapacity: 10})

	c := NewMetricsCollector(h, 0)
	assert.Equal(t, 15*time.Second, c.interval)

	c.Start()
	c.Stop()
}
