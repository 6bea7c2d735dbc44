package client

import (
	"context"
	"errors"

	"github.com/cuemby/bandstand/pkg/events"
	"github.com/cuemby/bandstand/pkg/types"
	"github.com/gorilla/websocket"
)

// ErrStopWatching may be returned by a Watch handler to end the watch cleanly
var ErrStopWatching = errors.New("stop watching")

// Subscriber is a dashboard-side connection to the relay
type Subscriber struct {
	conn *Conn
}

// Subscribe connects to the relay's subscriber endpoint. The relay starts
// with hello, bot-state and logs.
func Subscribe(ctx context.Context, url string) (*Subscriber, error) {
	conn, err := Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn}, nil
}

// Next blocks for the next event from the relay
func (s *Subscriber) Next() (*events.Event, error) {
	return s.conn.Receive()
}

// SendCommand submits a dashboard command; the answer arrives as a
// command-result event
func (s *Subscriber) SendCommand(cmd types.Command) error {
	return s.conn.Send(events.EventBotCommand, cmd)
}

// RequestUpdate asks the relay to re-send the full bot-state
func (s *Subscriber) RequestUpdate() error {
	return s.conn.Send(events.EventRequestUpdate, nil)
}

// RequestLogs asks the relay to re-send recent logs
func (s *Subscriber) RequestLogs() error {
	return s.conn.Send(events.EventRequestLogs, nil)
}

// Close disconnects from the relay
func (s *Subscriber) Close() error {
	return s.conn.Close()
}

// Watch subscribes and calls fn for every event until ctx is canceled, fn
// returns an error, or the relay closes the channel. A normal close and
// ErrStopWatching both end the watch without error.
func Watch(ctx context.Context, url string, fn func(*events.Event) error) error {
	sub, err := Subscribe(ctx, url)
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { _ = sub.Close() })
	defer stop()
	defer sub.Close()

	for {
		ev, err := sub.Next()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if err := fn(ev); err != nil {
			if errors.Is(err, ErrStopWatching) {
				return nil
			}
			return err
		}
	}
}
