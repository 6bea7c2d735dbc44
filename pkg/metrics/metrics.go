package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Channel metrics
	SubscribersConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandstand_subscribers_connected",
			Help: "Number of connected dashboard subscribers",
		},
	)

	ProducerConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandstand_producer_connected",
			Help: "Whether a producer channel is connected (1 = connected, 0 = not)",
		},
	)

	ChannelDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandstand_channel_drops_total",
			Help: "Total number of channels disconnected by the relay, by reason",
		},
		[]string{"reason"},
	)

	// Hub metrics
	StateUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bandstand_state_updates_total",
			Help: "Total number of producer state updates applied",
		},
	)

	LogEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandstand_log_entries_total",
			Help: "Total number of producer log entries received, by level",
		},
		[]string{"level"},
	)

	LogBufferEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandstand_log_buffer_entries",
			Help: "Number of entries held in the log ring buffer",
		},
	)

	BroadcastEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandstand_broadcast_events_total",
			Help: "Total number of events fanned out to subscribers, by event",
		},
		[]string{"event"},
	)

	HubOpDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bandstand_hub_op_duration_seconds",
			Help:    "Time spent inside the hub processing loop per operation",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		},
	)

	// Command metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandstand_commands_total",
			Help: "Total number of dashboard commands by command and result",
		},
		[]string{"command", "result"},
	)

	// Producer-reported state
	BotUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandstand_bot_up",
			Help: "Whether the producer reports the bot online (1 = online, 0.5 = degraded, 0 = offline)",
		},
	)

	BotQueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandstand_bot_queue_length",
			Help: "Number of tracks in the producer-reported queue",
		},
	)

	BotVolume = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandstand_bot_volume",
			Help: "Producer-reported playback volume (0-100)",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandstand_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bandstand_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(SubscribersConnected)
	prometheus.MustRegister(ProducerConnected)
	prometheus.MustRegister(ChannelDropsTotal)
	prometheus.MustRegister(StateUpdatesTotal)
	prometheus.MustRegister(LogEntriesTotal)
	prometheus.MustRegister(LogBufferEntries)
	prometheus.MustRegister(BroadcastEventsTotal)
	prometheus.MustRegister(HubOpDuration)
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(BotUp)
	prometheus.MustRegister(BotQueueLength)
	prometheus.MustRegister(BotVolume)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
