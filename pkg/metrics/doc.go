/*
Package metrics exposes Prometheus metrics and health endpoints for Bandstand.

All collectors are package-level variables registered in init() and served
by Handler() on /metrics. Components update them directly:

	metrics.SubscribersConnected.Set(float64(n))
	metrics.CommandsTotal.WithLabelValues("volume", "forwarded").Inc()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.HubOpDuration)

# Metric Families

Channels:
  - bandstand_subscribers_connected
  - bandstand_producer_connected
  - bandstand_channel_drops_total{reason}

Hub:
  - bandstand_state_updates_total
  - bandstand_log_entries_total{level}
  - bandstand_log_buffer_entries
  - bandstand_broadcast_events_total{event}
  - bandstand_hub_op_duration_seconds

Commands:
  - bandstand_commands_total{command,result}   result: forwarded, invalid, unavailable, rate_limited, error

Producer-reported state (sampled by the hub's metrics collector):
  - bandstand_bot_up
  - bandstand_bot_queue_length
  - bandstand_bot_volume

API:
  - bandstand_api_requests_total{method,status}
  - bandstand_api_request_duration_seconds{method}

# Health

The health registry tracks named components (hub, api, producer).
/health reports "unhealthy" (503) only when a critical component (hub, api)
is down; a missing producer reports "degraded" with 200 because the relay
keeps serving dashboards. /ready requires every critical component to be
registered and healthy. /live always answers 200 while the process runs.
*/
package metrics
