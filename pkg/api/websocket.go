package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/bandstand/pkg/config"
	"github.com/cuemby/bandstand/pkg/events"
	"github.com/cuemby/bandstand/pkg/log"
	"github.com/cuemby/bandstand/pkg/relay"
	"github.com/cuemby/bandstand/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// channel is one WebSocket connection with the deadlines and keepalive
// shared by the subscriber and producer endpoints. Only the pump goroutine
// writes data frames; control frames may be written from anywhere.
type channel struct {
	conn   *websocket.Conn
	cfg    config.WebSocketConfig
	logger zerolog.Logger
}

func newChannel(conn *websocket.Conn, cfg config.WebSocketConfig, logger zerolog.Logger) *channel {
	c := &channel{conn: conn, cfg: cfg, logger: logger}

	conn.SetReadLimit(cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	})
	return c
}

// read returns the next event envelope. Frames that are not an envelope are
// logged and skipped.
func (c *channel) read() (*events.Event, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))

		var ev events.Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
			c.logger.Debug().Err(err).Int("bytes", len(data)).Msg("Ignoring malformed frame")
			continue
		}
		return &ev, nil
	}
}

func (c *channel) write(ev *events.Event) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteJSON(ev)
}

func (c *channel) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
}

// close sends a close frame, best effort, and closes the connection
func (c *channel) close(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
	_ = c.conn.Close()
}

// pump writes every queued item to the connection and pings on the
// configured interval. It returns when the queue is closed by the hub, a
// write fails, or ctx ends; in the first two cases the connection is closed
// so the reader unblocks too.
func pump[T any](ctx context.Context, c *channel, queue <-chan T, encode func(T) *events.Event) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-queue:
			if !ok {
				c.close(websocket.CloseGoingAway, "disconnected by relay")
				return
			}
			ev := encode(item)
			if ev == nil {
				continue
			}
			if err := c.write(ev); err != nil {
				// A write deadline cannot be recovered on a websocket
				c.logger.Debug().Err(err).Str("event", string(ev.Type)).Msg("Write failed")
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.ping(); err != nil {
				c.logger.Debug().Err(err).Msg("Ping failed")
				_ = c.conn.Close()
				return
			}
		}
	}
}

func logReadError(logger zerolog.Logger, err error) {
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		logger.Debug().Err(err).Msg("Connection closed unexpectedly")
	}
}

// handleSubscriber serves a dashboard channel. The hub queues the
// handshake as part of registration; this goroutine reads subscriber
// events while the pump drains the subscriber's queue.
func (s *Server) handleSubscriber(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.logger.Debug().Err(err).Msg("Subscriber upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newChannel(conn, s.cfg.WebSocket, s.logger)
	sub, err := s.hub.Subscribe(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to register subscriber")
		c.close(websocket.CloseTryAgainLater, "relay unavailable")
		return
	}
	c.logger = log.WithSubscriberID(sub.ID)
	defer s.limiter.Forget(sub.ID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		pump(ctx, c, sub.Events(), func(ev *events.Event) *events.Event { return ev })
	}()

	s.readSubscriber(ctx, c, sub)

	s.hub.Unsubscribe(sub)
	cancel()
	<-done
	_ = conn.Close()
}

func (s *Server) readSubscriber(ctx context.Context, c *channel, sub *events.Subscriber) {
	for {
		ev, err := c.read()
		if err != nil {
			logReadError(c.logger, err)
			return
		}

		switch ev.Type {
		case events.EventBotCommand:
			err = s.hub.Reply(ctx, sub, s.subscriberCommand(ctx, sub, ev))
		case events.EventRequestUpdate:
			err = s.hub.SendSnapshot(ctx, sub)
		case events.EventRequestLogs:
			err = s.hub.SendLogs(ctx, sub)
		default:
			c.logger.Debug().Str("event", string(ev.Type)).Msg("Ignoring subscriber event")
		}

		if err != nil {
			// The hub dropped this subscriber or stopped
			c.logger.Debug().Err(err).Msg("Subscriber no longer registered")
			return
		}
	}
}

// subscriberCommand submits a bot-command and builds the command-result
// answered to the issuing subscriber only
func (s *Server) subscriberCommand(ctx context.Context, sub *events.Subscriber, ev *events.Event) *events.Event {
	var cmd types.Command
	var ack relay.Ack
	err := ev.Decode(&cmd)
	switch {
	case err != nil:
		err = fmt.Errorf("%w: %v", errBadRequest, err)
	case !s.limiter.Allow(sub.ID):
		err = ErrRateLimited
	default:
		submitCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		ack, err = s.relay.Submit(submitCtx, cmd)
		cancel()
	}

	result := events.CommandResult{Command: string(cmd.Name)}
	if err != nil {
		code, msg := statusFor(err)
		result.Error = msg
		result.Code = code
	} else {
		result.Success = ack.Success
		result.Status = ack.Status
	}

	reply, encErr := events.NewEvent(events.EventCommandResult, result)
	if encErr != nil {
		return nil
	}
	return reply
}

// handleProducer serves the producer channel. The newest producer wins;
// a superseded producer sees its connection closed by the pump.
func (s *Server) handleProducer(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Producer upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newChannel(conn, s.cfg.WebSocket, s.logger)
	p, err := s.hub.ConnectProducer(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to register producer")
		c.close(websocket.CloseTryAgainLater, "relay unavailable")
		return
	}
	c.logger = log.WithProducerID(p.ID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		pump(ctx, c, p.Commands(), func(cmd types.Command) *events.Event {
			ev, err := events.NewEvent(events.EventBotCommand, cmd)
			if err != nil {
				c.logger.Error().Err(err).Str("command", string(cmd.Name)).Msg("Failed to encode command")
				return nil
			}
			return ev
		})
	}()

	s.readProducer(ctx, c)

	s.hub.DisconnectProducer(p)
	cancel()
	<-done
	_ = conn.Close()
}

func (s *Server) readProducer(ctx context.Context, c *channel) {
	for {
		ev, err := c.read()
		if err != nil {
			logReadError(c.logger, err)
			return
		}

		if err := s.applyProducerEvent(ctx, ev); err != nil {
			if errors.Is(err, events.ErrHubStopped) {
				return
			}
			c.logger.Warn().Err(err).Str("event", string(ev.Type)).Msg("Rejected producer event")
		}
	}
}

// applyProducerEvent routes one producer event into the hub
func (s *Server) applyProducerEvent(ctx context.Context, ev *events.Event) error {
	switch ev.Type {
	case events.EventUpdateBotState, events.EventBotState:
		var patch types.Patch
		if err := ev.Decode(&patch); err != nil {
			return err
		}
		_, err := s.hub.UpdateState(ctx, patch)
		return err

	case events.EventNewLog:
		var entry types.LogEntry
		if err := ev.Decode(&entry); err != nil {
			return err
		}
		_, err := s.hub.AppendLog(ctx, entry)
		return err

	case events.EventLogs:
		var entries []types.LogEntry
		if err := ev.Decode(&entries); err != nil {
			return err
		}
		for _, entry := range entries {
			if _, err := s.hub.AppendLog(ctx, entry); err != nil {
				return err
			}
		}
		return nil

	case events.EventQueueUpdate:
		data := ev.Data
		if len(data) == 0 {
			data = json.RawMessage("[]")
		}
		return s.hub.UpdateQueue(ctx, data)

	case events.EventSongUpdate:
		data := ev.Data
		if len(data) == 0 {
			data = json.RawMessage("null")
		}
		return s.hub.UpdateSong(ctx, data)

	default:
		s.logger.Debug().Str("event", string(ev.Type)).Msg("Ignoring producer event")
		return nil
	}
}
