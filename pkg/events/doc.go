/*
Package events implements Bandstand's broadcast hub.

The hub sits between exactly one producer (the music bot) and any number of
dashboard subscribers. It owns the State Store and the Log Ring Buffer,
fans producer updates out to every subscriber, and relays subscriber
commands back to the producer.

# Architecture

Every operation is a closure executed on the hub's single processing
goroutine. Callers block until their operation has run:

	┌──────────────────────── BROADCAST HUB ─────────────────────────┐
	│                                                                 │
	│   producer ──update-bot-state/new-log──┐                        │
	│                                         ▼                        │
	│   API / transport ──── exec(op) ───▶ opCh (buffer: 128)          │
	│                                         │                        │
	│                                         ▼                        │
	│                               ┌──────────────────┐               │
	│                               │   run() loop     │               │
	│                               │  - state.Store   │               │
	│                               │  - logbuf.Buffer │               │
	│                               │  - subscriber set│               │
	│                               │  - producer      │               │
	│                               └────────┬─────────┘               │
	│                     ┌──────────────────┼────────────────┐        │
	│                     ▼                  ▼                ▼        │
	│              sub.send (256)     sub.send (256)   producer.commands│
	│                     │                  │           (buffer: 64)  │
	│                 ws writer          ws writer        ws writer    │
	└─────────────────────────────────────────────────────────────────┘

Because only run() touches the store, the log buffer and the subscriber
set, "merge then broadcast" and "register then handshake" are each atomic
with respect to every other operation. No locks guard the shared state.

# Connect Handshake

Subscribe performs, as one operation:

 1. add the channel to the subscriber set
 2. queue hello {id, producerConnected}
 3. queue bot-state with the full snapshot
 4. queue logs with the most recent HandshakeLogs entries (default 50)

An update processed before the operation is folded into the snapshot; an
update processed after it is queued behind the handshake. Nothing is lost
and nothing is delivered twice. A reconnecting dashboard is simply a new
subscriber.

# Delivery

Broadcasts never block. Each subscriber has a bounded queue; when it is
full the subscriber is dropped (its queue closed, counted under
bandstand_channel_drops_total{reason="slow_consumer"}) rather than skipping
events, because a skipped delta would leave that dashboard permanently out
of sync. The transport sees the closed queue, closes the socket, and the
browser reconnects into a fresh handshake.

# Producer

At most one producer is connected. A new producer supersedes the old one.
RelayCommand returns ErrProducerUnavailable when no producer is connected;
the command is dropped, never queued for a later producer. A producer
whose command queue is full is treated as disconnected.

Producer connects and disconnects are announced to subscribers as
producer-status events. BotState itself is only ever changed by producer
updates.

# Usage

	hub := events.NewHub(events.DefaultConfig())
	hub.Start()
	defer hub.Stop()

	sub, err := hub.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer hub.Unsubscribe(sub)

	for ev := range sub.Events() {
		// write ev to the socket
	}

Producer side:

	p, _ := hub.ConnectProducer(ctx)
	defer hub.DisconnectProducer(p)

	hub.UpdateState(ctx, types.Patch{"volume": json.RawMessage("50")})
	hub.AppendLog(ctx, types.LogEntry{Level: types.LogLevelInfo, Message: "ready"})

	for cmd := range p.Commands() {
		// write cmd to the socket
	}

# Metrics

MetricsCollector samples Stats() into the bandstand_bot_* gauges and the
log buffer gauge. Connection gauges and counters are updated inline.
*/
package events
