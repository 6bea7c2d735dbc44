/*
Package log provides structured logging for Bandstand using zerolog.

The package wraps a single global zerolog.Logger with a configurable level
and output format, plus helpers that attach the context fields the relay
uses everywhere: component, subscriber_id and producer_id.

This is the relay's own operational log. It is unrelated to the producer's
log entries carried over the wire, which live in pkg/logbuf.

# Usage

Initializing the Logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Levels from flags or config files go through ParseLevel, which accepts
debug, info, warn (or warning) and error:

	level, err := log.ParseLevel(cfg.Logging.Level)

Component Loggers:

	hubLog := log.WithComponent("hub")
	hubLog.Info().Int("subscribers", 3).Msg("Subscriber connected")

	subLog := log.WithSubscriberID(sub.ID)
	subLog.Debug().Str("event", "request-update").Msg("Snapshot requested")

Simple Logging:

	log.Info("Relay starting")
	log.Errorf("Failed to start API server", err)

# Output

JSON (default, production):

	{"level":"info","component":"hub","subscriber_id":"3f0c...","time":"2026-10-19T10:30:00Z","message":"Subscriber connected"}

Console (--log-json=false):

	2026-10-19T10:30:00Z INF Subscriber connected component=hub subscriber_id=3f0c...

Never log producer log messages at Info or above from the relay itself;
they are already stored and broadcast, and can be high volume.
*/
package log
