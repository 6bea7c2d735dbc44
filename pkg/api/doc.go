/*
Package api implements the Bandstand HTTP server: the dashboard REST API,
the WebSocket channels for subscribers and the producer, and the health and
metrics endpoints.

Everything is served from one listener (default :5000) and every request
goes through the broadcast hub; the server keeps no state of its own apart
from per-client command rate limiters.

# Architecture

	┌──────────────── DASHBOARDS ────────────────┐       ┌──── BOT ────┐
	│  REST (GET/POST /api/*)    WebSocket /ws    │       │ /ws/producer│
	└──────────┬───────────────────────┬─────────┘       └──────┬──────┘
	           │                       │                        │
	┌──────────▼───────────────────────▼────────────────────────▼──────┐
	│                        api.Server (ServeMux)                      │
	│  Instrument ─▶ RateLimiter ─▶ relay.Relay ─▶ events.Hub           │
	│                                                                   │
	│  per channel: reader goroutine + pump goroutine (writes, pings)   │
	└───────────────────────────────────────────────────────────────────┘

# REST Endpoints

Reads:

	GET  /api/status          full BotState snapshot
	GET  /api/queue           current queue
	GET  /api/logs[?limit=n]  newest log entries, oldest first (default 100)

Commands (all answer {"success":true,"status":"forwarded","command":...}):

	POST /api/play    {"query": "never gonna give you up"}
	POST /api/volume  {"volume": 50}
	POST /api/remove  {"index": 3}
	POST /api/seek    {"position": 90}
	POST /api/skip | pause | stop | shuffle | clear | repeat

"forwarded" means the producer channel accepted the command, not that the
bot executed it. The resulting state change arrives later as a bot-state
broadcast.

Errors use {"success":false,"error":"..."}:

	400  validation failure or malformed body
	429  command rate limit exceeded
	503  no producer connected, or the relay is shutting down
	500  anything else (generic message, details logged)

# WebSocket Channels

Every frame is {"event": name, "data": payload}.

Subscriber (/ws). On connect: hello, bot-state (snapshot), logs. Then
bot-state deltas, new-log, queue-update, song-update, producer-status. The
subscriber may send bot-command, request-update and request-logs;
bot-command is answered with command-result on the same channel only.

Producer (/ws/producer). Sends update-bot-state, new-log, queue-update and
song-update; receives bot-command exactly as the dashboard submitted it.
A second producer connection supersedes the first.

The server pings every websocket.ping_interval. A channel that misses the
pong timeout, fails a write, or falls behind its queue is closed; dashboards
reconnect into a fresh handshake.

# Health

	GET /health   healthy | degraded (no producer) | unhealthy
	GET /ready    200 once the hub answers and the API is serving
	GET /live     always 200 while the process runs
	GET /metrics  Prometheus exposition
*/
package api
