package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/cuemby/bandstand/pkg/log"
	"github.com/cuemby/bandstand/pkg/logbuf"
	"github.com/cuemby/bandstand/pkg/metrics"
	"github.com/cuemby/bandstand/pkg/state"
	"github.com/cuemby/bandstand/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrProducerUnavailable is returned when a command is relayed with no producer connected
	ErrProducerUnavailable = errors.New("producer unavailable")

	// ErrHubStopped is returned by every operation once the hub has stopped
	ErrHubStopped = errors.New("hub stopped")

	// ErrUnknownSubscriber is returned when addressing a subscriber the hub already dropped
	ErrUnknownSubscriber = errors.New("subscriber not registered")
)

// Config holds hub sizing
type Config struct {
	// LogCapacity bounds the log ring buffer
	LogCapacity int
	// HandshakeLogs is how many recent log entries a new subscriber receives
	HandshakeLogs int
	// SubscriberBuffer is the outbound queue length per subscriber
	SubscriberBuffer int
	// ProducerBuffer is the pending command queue length for the producer
	ProducerBuffer int
}

// DefaultConfig returns the default hub sizing
func DefaultConfig() Config {
	return Config{
		LogCapacity:      logbuf.DefaultCapacity,
		HandshakeLogs:    50,
		SubscriberBuffer: 256,
		ProducerBuffer:   64,
	}
}

// minSubscriberBuffer leaves room for the three handshake events
const minSubscriberBuffer = 8

// Stats is a point-in-time view of the hub used for metrics and health
type Stats struct {
	Subscribers       int
	ProducerConnected bool
	LogEntries        int
	LogCapacity       int
	LastLogSeq        uint64
	Status            types.BotStatus
	QueueLength       int
	Volume            int
}

// Hub is the single owner of the relay's shared state. Every operation
// (state merge, log append, (un)registration, broadcast, command relay) runs
// as a closure on one goroutine, so each is atomic with respect to the
// others without further locking.
type Hub struct {
	cfg   Config
	store *state.Store
	logs  *logbuf.Buffer

	subscribers map[*Subscriber]struct{}
	producer    *Producer

	opCh     chan func()
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	logger zerolog.Logger
}

// NewHub creates a hub around its own State Store and Log Ring Buffer.
// Call Start before using it.
func NewHub(cfg Config) *Hub {
	def := DefaultConfig()
	if cfg.LogCapacity <= 0 {
		cfg.LogCapacity = def.LogCapacity
	}
	if cfg.HandshakeLogs < 0 {
		cfg.HandshakeLogs = 0
	}
	if cfg.SubscriberBuffer < minSubscriberBuffer {
		cfg.SubscriberBuffer = def.SubscriberBuffer
	}
	if cfg.ProducerBuffer <= 0 {
		cfg.ProducerBuffer = def.ProducerBuffer
	}

	return &Hub{
		cfg:         cfg,
		store:       state.NewStore(),
		logs:        logbuf.New(cfg.LogCapacity),
		subscribers: make(map[*Subscriber]struct{}),
		opCh:        make(chan func(), 128),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		logger:      log.WithComponent("hub"),
	}
}

// Start begins the hub's processing loop
func (h *Hub) Start() {
	go h.run()
	metrics.RegisterComponent(metrics.ComponentHub, true, "")
	metrics.RegisterComponent(metrics.ComponentProducer, false, "not connected")
}

// Stop stops the hub and closes every subscriber and producer channel
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		<-h.doneCh
		metrics.UpdateComponent(metrics.ComponentHub, false, "stopped")
	})
}

func (h *Hub) run() {
	defer close(h.doneCh)

	for {
		select {
		case op := <-h.opCh:
			timer := metrics.NewTimer()
			op()
			timer.ObserveDuration(metrics.HubOpDuration)
		case <-h.stopCh:
			h.shutdown()
			return
		}
	}
}

func (h *Hub) shutdown() {
	for sub := range h.subscribers {
		h.dropSubscriber(sub, ReasonHubStopped)
	}
	if h.producer != nil {
		h.dropProducer(h.producer, ReasonHubStopped)
	}
}

// exec runs fn on the hub goroutine and waits for it to finish
func (h *Hub) exec(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	op := func() {
		defer close(done)
		fn()
	}

	select {
	case h.opCh <- op:
	case <-h.stopCh:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-h.doneCh:
		return ErrHubStopped
	}
}

// Subscribe registers a new subscriber channel. Registration and delivery
// of the handshake (hello, full bot-state snapshot, recent logs) happen in a
// single hub operation, so every later broadcast is queued behind the
// handshake and none issued earlier is repeated.
func (h *Hub) Subscribe(ctx context.Context) (*Subscriber, error) {
	sub := &Subscriber{
		ID:   uuid.New().String(),
		send: make(chan *Event, h.cfg.SubscriberBuffer),
	}

	err := h.exec(ctx, func() {
		h.subscribers[sub] = struct{}{}

		h.deliver(sub, h.event(EventHello, HelloData{
			ID:                sub.ID,
			ProducerConnected: h.producer != nil,
		}))
		h.deliver(sub, h.event(EventBotState, h.store.Snapshot()))
		h.deliver(sub, h.event(EventLogs, h.logs.Recent(h.cfg.HandshakeLogs)))

		metrics.SubscribersConnected.Set(float64(len(h.subscribers)))
		h.logger.Info().
			Str("subscriber_id", sub.ID).
			Int("subscribers", len(h.subscribers)).
			Msg("Subscriber connected")
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe removes a subscriber and closes its queue. Safe to call more
// than once and after the hub dropped the subscriber itself.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	_ = h.exec(context.Background(), func() {
		if _, ok := h.subscribers[sub]; ok {
			h.dropSubscriber(sub, ReasonUnsubscribed)
		}
	})
}

// ConnectProducer makes a new channel the producer. A producer that is
// still connected is superseded and its command queue closed.
func (h *Hub) ConnectProducer(ctx context.Context) (*Producer, error) {
	p := &Producer{
		ID:       uuid.New().String(),
		commands: make(chan types.Command, h.cfg.ProducerBuffer),
	}

	err := h.exec(ctx, func() {
		if h.producer != nil {
			h.dropProducer(h.producer, ReasonSuperseded)
		}
		h.producer = p

		metrics.ProducerConnected.Set(1)
		metrics.UpdateComponent(metrics.ComponentProducer, true, "")
		h.broadcast(h.event(EventProducerStatus, ProducerStatusData{Connected: true}))
		h.logger.Info().Str("producer_id", p.ID).Msg("Producer connected")
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DisconnectProducer drops p if it is still the current producer
func (h *Hub) DisconnectProducer(p *Producer) {
	_ = h.exec(context.Background(), func() {
		if h.producer == p {
			h.dropProducer(p, ReasonUnsubscribed)
		}
	})
}

// RelayCommand hands cmd to the producer. Without a producer the command is
// dropped and ErrProducerUnavailable returned; nothing is queued for a
// producer that connects later.
func (h *Hub) RelayCommand(ctx context.Context, cmd types.Command) error {
	var result error
	err := h.exec(ctx, func() {
		if h.producer == nil {
			result = ErrProducerUnavailable
			return
		}

		select {
		case h.producer.commands <- cmd:
			h.logger.Debug().
				Str("producer_id", h.producer.ID).
				Str("command", string(cmd.Name)).
				Msg("Command relayed")
		default:
			// A producer that stopped reading is treated as gone
			h.dropProducer(h.producer, ReasonSlowConsumer)
			result = ErrProducerUnavailable
		}
	})
	if err != nil {
		return err
	}
	return result
}

// UpdateState merges a producer patch and broadcasts the accepted fields as
// a bot-state delta. It returns the delta that was broadcast.
func (h *Hub) UpdateState(ctx context.Context, patch types.Patch) (types.Patch, error) {
	var delta types.Patch
	var result error
	err := h.exec(ctx, func() {
		delta, result = h.apply(patch, EventBotState)
	})
	if err != nil {
		return nil, err
	}
	return delta, result
}

// UpdateQueue replaces the queue and broadcasts a queue-update
func (h *Hub) UpdateQueue(ctx context.Context, queue json.RawMessage) error {
	var result error
	err := h.exec(ctx, func() {
		_, result = h.apply(types.Patch{"queue": queue}, EventQueueUpdate)
	})
	if err != nil {
		return err
	}
	return result
}

// UpdateSong replaces the current song and broadcasts a song-update
func (h *Hub) UpdateSong(ctx context.Context, song json.RawMessage) error {
	var result error
	err := h.exec(ctx, func() {
		_, result = h.apply(types.Patch{"currentSong": song}, EventSongUpdate)
	})
	if err != nil {
		return err
	}
	return result
}

// apply merges a patch and fans out the result. bot-state carries the delta
// object; queue-update and song-update carry the single field's value.
func (h *Hub) apply(patch types.Patch, event EventType) (types.Patch, error) {
	delta, _, err := h.store.Apply(patch)
	if err != nil {
		h.logger.Warn().Err(err).Strs("fields", patch.Keys()).Msg("Rejected state update")
		return nil, err
	}
	if len(delta) == 0 {
		return delta, nil
	}

	metrics.StateUpdatesTotal.Inc()

	switch event {
	case EventQueueUpdate:
		h.broadcast(&Event{Type: event, Data: delta["queue"]})
	case EventSongUpdate:
		h.broadcast(&Event{Type: event, Data: delta["currentSong"]})
	default:
		h.broadcast(h.event(EventBotState, delta))
	}
	return delta, nil
}

// AppendLog stores a producer log entry and broadcasts it as new-log
func (h *Hub) AppendLog(ctx context.Context, entry types.LogEntry) (types.LogEntry, error) {
	var stored types.LogEntry
	err := h.exec(ctx, func() {
		stored = h.logs.Append(entry)

		metrics.LogEntriesTotal.WithLabelValues(string(stored.Level)).Inc()
		metrics.LogBufferEntries.Set(float64(h.logs.Len()))
		h.broadcast(h.event(EventNewLog, stored))
	})
	return stored, err
}

// Snapshot returns the full current BotState
func (h *Hub) Snapshot(ctx context.Context) (types.BotState, error) {
	var snap types.BotState
	err := h.exec(ctx, func() {
		snap = h.store.Snapshot()
	})
	return snap, err
}

// Queue returns the current queue
func (h *Hub) Queue(ctx context.Context) ([]types.Track, error) {
	var queue []types.Track
	err := h.exec(ctx, func() {
		queue = h.store.Queue()
	})
	return queue, err
}

// RecentLogs returns up to n of the newest log entries, oldest first
func (h *Hub) RecentLogs(ctx context.Context, n int) ([]types.LogEntry, error) {
	var entries []types.LogEntry
	err := h.exec(ctx, func() {
		entries = h.logs.Recent(n)
	})
	return entries, err
}

// SendSnapshot queues the full bot-state to one subscriber
func (h *Hub) SendSnapshot(ctx context.Context, sub *Subscriber) error {
	return h.sendTo(ctx, sub, func() *Event {
		return h.event(EventBotState, h.store.Snapshot())
	})
}

// SendLogs queues the handshake-sized log history to one subscriber
func (h *Hub) SendLogs(ctx context.Context, sub *Subscriber) error {
	return h.sendTo(ctx, sub, func() *Event {
		return h.event(EventLogs, h.logs.Recent(h.cfg.HandshakeLogs))
	})
}

// Reply queues an event to one subscriber, ordered with broadcasts
func (h *Hub) Reply(ctx context.Context, sub *Subscriber, ev *Event) error {
	return h.sendTo(ctx, sub, func() *Event { return ev })
}

func (h *Hub) sendTo(ctx context.Context, sub *Subscriber, build func() *Event) error {
	var result error
	err := h.exec(ctx, func() {
		if _, ok := h.subscribers[sub]; !ok {
			result = ErrUnknownSubscriber
			return
		}
		h.deliver(sub, build())
	})
	if err != nil {
		return err
	}
	return result
}

// Stats returns counters for metrics and health reporting
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := h.exec(ctx, func() {
		snap := h.store.Snapshot()
		st = Stats{
			Subscribers:       len(h.subscribers),
			ProducerConnected: h.producer != nil,
			LogEntries:        h.logs.Len(),
			LogCapacity:       h.logs.Cap(),
			LastLogSeq:        h.logs.LastSeq(),
			Status:            snap.Status,
			QueueLength:       len(snap.Queue),
			Volume:            snap.Volume,
		}
	})
	return st, err
}

// broadcast queues ev on every subscriber. A subscriber whose queue is full
// is dropped; the others are unaffected.
func (h *Hub) broadcast(ev *Event) {
	if ev == nil {
		return
	}
	metrics.BroadcastEventsTotal.WithLabelValues(string(ev.Type)).Inc()

	for sub := range h.subscribers {
		h.deliver(sub, ev)
	}
}

func (h *Hub) deliver(sub *Subscriber, ev *Event) {
	if ev == nil || sub.closed {
		return
	}

	select {
	case sub.send <- ev:
	default:
		h.dropSubscriber(sub, ReasonSlowConsumer)
	}
}

func (h *Hub) dropSubscriber(sub *Subscriber, reason string) {
	if sub.closed {
		return
	}
	sub.closed = true
	delete(h.subscribers, sub)
	close(sub.send)

	metrics.SubscribersConnected.Set(float64(len(h.subscribers)))
	if reason != ReasonUnsubscribed {
		metrics.ChannelDropsTotal.WithLabelValues(reason).Inc()
	}

	evt := h.logger.Info()
	if reason == ReasonSlowConsumer {
		evt = h.logger.Warn()
	}
	evt.Str("subscriber_id", sub.ID).
		Str("reason", reason).
		Int("subscribers", len(h.subscribers)).
		Msg("Subscriber disconnected")
}

func (h *Hub) dropProducer(p *Producer, reason string) {
	if p.closed {
		return
	}
	p.closed = true
	close(p.commands)
	if h.producer == p {
		h.producer = nil
	}

	if reason != ReasonUnsubscribed {
		metrics.ChannelDropsTotal.WithLabelValues(reason).Inc()
	}

	// A superseded producer is immediately replaced, so there is no gap to announce
	if reason != ReasonSuperseded {
		metrics.ProducerConnected.Set(0)
		metrics.UpdateComponent(metrics.ComponentProducer, false, "not connected")
		h.broadcast(h.event(EventProducerStatus, ProducerStatusData{Connected: false}))
	}

	h.logger.Info().Str("producer_id", p.ID).Str("reason", reason).Msg("Producer disconnected")
}

func (h *Hub) event(t EventType, data interface{}) *Event {
	ev, err := NewEvent(t, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", string(t)).Msg("Failed to encode event")
		return nil
	}
	return ev
}
