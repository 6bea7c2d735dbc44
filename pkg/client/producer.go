package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/bandstand/pkg/events"
	"github.com/cuemby/bandstand/pkg/log"
	"github.com/cuemby/bandstand/pkg/types"
	"github.com/rs/zerolog"
)

var (
	// ErrNotConnected is returned for log entries sent while the relay is unreachable
	ErrNotConnected = errors.New("not connected to relay")

	// ErrQueueFull is returned when events are produced faster than they can be written
	ErrQueueFull = errors.New("outbound queue full")
)

// ProducerConfig configures a producer client
type ProducerConfig struct {
	// URL is the relay's producer endpoint, see EndpointURL
	URL string
	// ReconnectInterval is the wait between connection attempts
	ReconnectInterval time.Duration
	// ResendInterval re-sends the full cached state periodically; 0 disables
	ResendInterval time.Duration
	// QueueSize bounds events waiting to be written
	QueueSize int
	// OnCommand is called for every relayed dashboard command, on the
	// reader goroutine. It should not block.
	OnCommand func(types.Command)
	// OnConnect is called after each (re)connect, once the cached state is sent
	OnConnect func()
}

// DefaultProducerConfig returns reconnect and re-send intervals matching
// what the relay expects from a long-running bot
func DefaultProducerConfig(url string) ProducerConfig {
	return ProducerConfig{
		URL:               url,
		ReconnectInterval: 5 * time.Second,
		ResendInterval:    30 * time.Second,
		QueueSize:         256,
	}
}

// Producer keeps a producer channel open to the relay. State sent through
// it is cached, so every reconnect starts with a full update-bot-state and
// the relay converges even if updates were lost while disconnected.
type Producer struct {
	cfg ProducerConfig

	mu        sync.Mutex
	state     types.Patch
	connected bool

	outbound chan *events.Event
	logger   zerolog.Logger
}

// NewProducer creates a producer client. Call Run to connect.
func NewProducer(cfg ProducerConfig) *Producer {
	def := DefaultProducerConfig(cfg.URL)
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = def.ReconnectInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}

	return &Producer{
		cfg:      cfg,
		state:    make(types.Patch),
		outbound: make(chan *events.Event, cfg.QueueSize),
		logger:   log.WithComponent("producer-client"),
	}
}

// Connected reports whether a relay connection is currently open
func (p *Producer) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// SendState merges patch into the cached state and sends it as
// update-bot-state. While disconnected the patch is only cached.
func (p *Producer) SendState(patch types.Patch) error {
	if len(patch) == 0 {
		return nil
	}

	p.mu.Lock()
	for k, v := range patch {
		p.state[k] = v
	}
	connected := p.connected
	p.mu.Unlock()

	if !connected {
		return nil
	}
	return p.enqueue(events.EventUpdateBotState, patch)
}

// SendQueue replaces the queue. It is cached like SendState.
func (p *Producer) SendQueue(queue []types.Track) error {
	if queue == nil {
		queue = []types.Track{}
	}
	raw, err := json.Marshal(queue)
	if err != nil {
		return err
	}
	return p.sendField("queue", raw, events.EventQueueUpdate)
}

// SendSong replaces the current song; nil clears it. It is cached like SendState.
func (p *Producer) SendSong(song *types.Track) error {
	raw, err := json.Marshal(song)
	if err != nil {
		return err
	}
	return p.sendField("currentSong", raw, events.EventSongUpdate)
}

func (p *Producer) sendField(key string, raw json.RawMessage, t events.EventType) error {
	p.mu.Lock()
	p.state[key] = raw
	connected := p.connected
	p.mu.Unlock()

	if !connected {
		return nil
	}
	return p.enqueueEvent(&events.Event{Type: t, Data: raw})
}

// SendLog sends a log entry. The relay stamps the receive time. Logs are
// not cached: while disconnected ErrNotConnected is returned.
func (p *Producer) SendLog(level types.LogLevel, message string) error {
	if !p.Connected() {
		return ErrNotConnected
	}
	return p.enqueue(events.EventNewLog, types.LogEntry{Level: level, Message: message})
}

func (p *Producer) enqueue(t events.EventType, data interface{}) error {
	ev, err := events.NewEvent(t, data)
	if err != nil {
		return err
	}
	return p.enqueueEvent(ev)
}

func (p *Producer) enqueueEvent(ev *events.Event) error {
	select {
	case p.outbound <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// snapshot returns a copy of the cached state
func (p *Producer) snapshot() types.Patch {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(types.Patch, len(p.state))
	for k, v := range p.state {
		out[k] = v
	}
	return out
}

func (p *Producer) setConnected(connected bool) {
	p.mu.Lock()
	p.connected = connected
	p.mu.Unlock()
}

// Run connects and reconnects until ctx is canceled. It returns ctx.Err().
func (p *Producer) Run(ctx context.Context) error {
	for {
		conn, err := Dial(ctx, p.cfg.URL)
		if err != nil {
			p.logger.Info().Err(err).Dur("retry_in", p.cfg.ReconnectInterval).Msg("Relay unreachable")
		} else {
			p.logger.Info().Str("url", p.cfg.URL).Msg("Connected to relay")
			if err := p.serve(ctx, conn); err != nil && ctx.Err() == nil {
				p.logger.Info().Err(err).Msg("Relay connection lost")
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.ReconnectInterval):
		}
	}
}

// serve runs one connection: it sends the cached state, then pumps the
// outbound queue while a reader goroutine dispatches commands
func (p *Producer) serve(ctx context.Context, conn *Conn) error {
	defer conn.Close()

	handleCtx, handleCancel := context.WithCancel(ctx)
	defer handleCancel()

	snap := p.begin()
	defer p.setConnected(false)

	if err := p.sendPatch(conn, snap); err != nil {
		return err
	}

	if p.cfg.OnConnect != nil {
		p.cfg.OnConnect()
	}

	readErr := make(chan error, 1)
	go func() {
		defer handleCancel()
		readErr <- p.read(conn)
	}()

	var resend <-chan time.Time
	if p.cfg.ResendInterval > 0 {
		ticker := time.NewTicker(p.cfg.ResendInterval)
		defer ticker.Stop()
		resend = ticker.C
	}

	for {
		select {
		case <-handleCtx.Done():
			_ = conn.Close()
			select {
			case err := <-readErr:
				return err
			default:
				return handleCtx.Err()
			}
		case ev := <-p.outbound:
			if err := conn.SendEvent(ev); err != nil {
				return err
			}
		case <-resend:
			if err := p.sendSnapshot(conn); err != nil {
				return err
			}
		}
	}
}

func (p *Producer) sendSnapshot(conn *Conn) error {
	return p.sendPatch(conn, p.snapshot())
}

func (p *Producer) sendPatch(conn *Conn, snap types.Patch) error {
	if len(snap) == 0 {
		return nil
	}
	return conn.Send(events.EventUpdateBotState, snap)
}

// begin starts a connection. Under one lock it discards queued events, which
// the returned snapshot supersedes, and marks the producer connected, so every
// later Send* either lands in the snapshot or in the outbound queue.
func (p *Producer) begin() types.Patch {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.drain()
	p.connected = true

	out := make(types.Patch, len(p.state))
	for k, v := range p.state {
		out[k] = v
	}
	return out
}

func (p *Producer) drain() {
	for {
		select {
		case <-p.outbound:
		default:
			return
		}
	}
}

// read dispatches bot-command events until the connection fails
func (p *Producer) read(conn *Conn) error {
	for {
		ev, err := conn.Receive()
		if err != nil {
			return err
		}
		if ev.Type != events.EventBotCommand {
			p.logger.Debug().Str("event", string(ev.Type)).Msg("Ignoring relay event")
			continue
		}

		var cmd types.Command
		if err := ev.Decode(&cmd); err != nil {
			p.logger.Warn().Err(err).Msg("Malformed command")
			continue
		}
		p.logger.Debug().Str("command", string(cmd.Name)).Msg("Command received")
		if p.cfg.OnCommand != nil {
			p.cfg.OnCommand(cmd)
		}
	}
}

// PushState connects as the producer, sends one state patch and
// disconnects. Connecting supersedes any running producer, so this is meant
// for tooling and tests.
func PushState(ctx context.Context, url string, patch types.Patch) error {
	return push(ctx, url, events.EventUpdateBotState, patch)
}

// PushLog connects as the producer, sends one log entry and disconnects
func PushLog(ctx context.Context, url string, entry types.LogEntry) error {
	return push(ctx, url, events.EventNewLog, entry)
}

func push(ctx context.Context, url string, t events.EventType, data interface{}) error {
	conn, err := Dial(ctx, url)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Send(t, data); err != nil {
		return fmt.Errorf("failed to push %s: %w", t, err)
	}
	return nil
}
