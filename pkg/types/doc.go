/*
Package types defines the data model shared by every Bandstand component.

The relay sits between one producer (the music bot) and any number of
dashboard subscribers. Everything that crosses that boundary is described
here:

  - BotState: the singleton snapshot of producer-reported state
  - Track: a queued or currently playing song
  - Patch: a partial BotState keyed by JSON field name
  - LogEntry / LogLevel: relayed producer log lines
  - Command / CommandName: dashboard commands forwarded to the producer

# Wire Names

JSON field names match what the producer emits, not the Go field names:

	BotState.GuildCount       -> "guilds"
	BotState.UserCount        -> "users"
	BotState.UptimeSeconds    -> "uptime"
	BotState.MemoryMB         -> "memory"
	BotState.CPUPercent       -> "cpu"
	BotState.VoiceConnections -> "voiceConnections"
	Track.PositionSeconds     -> "currentTime"
	Track.ThumbnailURL        -> "thumbnail"

# Ownership

BotState is owned by pkg/state and LogEntry values by pkg/logbuf. Values
handed out by those packages are copies; use BotState.Clone when a copy
must outlive further mutation.

Patch values and Command args are kept as json.RawMessage so they can be
re-broadcast or forwarded byte-for-byte.

# Log Timestamps

LogEntry.Timestamp is Unix milliseconds. Zero means the producer did not
supply one; the log buffer stamps the entry on receipt.
*/
package types
