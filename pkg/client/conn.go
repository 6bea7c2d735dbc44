package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/bandstand/pkg/events"
	"github.com/gorilla/websocket"
)

// Relay endpoint paths
const (
	SubscriberPath = "/ws"
	ProducerPath   = "/ws/producer"
)

// DefaultWriteTimeout bounds every frame write
const DefaultWriteTimeout = 10 * time.Second

// ErrClosed is returned when writing to a closed connection
var ErrClosed = errors.New("connection closed")

// EndpointURL turns a relay address ("localhost:5000", "http://host:5000",
// "wss://relay.example.com") into the WebSocket URL for path
func EndpointURL(addr, path string) (string, error) {
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}

	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid relay address %q: %w", addr, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported relay scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid relay address %q: missing host", addr)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}

// Conn is one WebSocket connection to the relay. Send may be called from
// several goroutines; Receive must only be called from one.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// Dial opens a connection to a relay WebSocket URL
func Dial(ctx context.Context, rawURL string) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rawURL, err)
	}
	return &Conn{ws: ws, writeTimeout: DefaultWriteTimeout}, nil
}

// Send encodes data into an event envelope and writes it
func (c *Conn) Send(t events.EventType, data interface{}) error {
	ev, err := events.NewEvent(t, data)
	if err != nil {
		return err
	}
	return c.SendEvent(ev)
}

// SendEvent writes a prepared envelope
func (c *Conn) SendEvent(ev *events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteJSON(ev); err != nil {
		return fmt.Errorf("failed to send %s: %w", ev.Type, err)
	}
	return nil
}

// Receive blocks for the next event. Pings from the relay are answered
// while Receive is blocked.
func (c *Conn) Receive() (*events.Event, error) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}

		var ev events.Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
			continue
		}
		return &ev, nil
	}
}

// Close sends a normal close frame and closes the connection
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}
