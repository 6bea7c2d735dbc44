package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/bandstand/pkg/config"
	"github.com/cuemby/bandstand/pkg/events"
	"github.com/cuemby/bandstand/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *events.Hub, *httptest.Server) {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	hub := events.NewHub(cfg.EventsConfig())
	hub.Start()
	s := NewServer(hub, cfg)
	ts := httptest.NewServer(s.Handler())

	t.Cleanup(func() {
		hub.Stop()
		ts.Close()
	})
	return s, hub, ts
}

func post(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// connectProducer attaches a producer directly to the hub
func connectProducer(t *testing.T, hub *events.Hub) *events.Producer {
	t.Helper()
	p, err := hub.ConnectProducer(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { hub.DisconnectProducer(p) })
	return p
}

func nextCommand(t *testing.T, p *events.Producer) types.Command {
	t.Helper()
	select {
	case cmd, ok := <-p.Commands():
		require.True(t, ok, "producer channel closed")
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for command")
		return types.Command{}
	}
}

func TestStatusDefaults(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	resp := get(t, ts, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	state := decode[types.BotState](t, resp)
	assert.Equal(t, types.BotStatusOffline, state.Status)
	assert.Equal(t, types.DefaultVolume, state.Volume)
	assert.Empty(t, state.Queue)
	assert.Nil(t, state.CurrentSong)
}

func TestReadEndpointsRejectPost(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	for _, path := range []string{"/api/status", "/api/queue", "/api/logs"} {
		resp := post(t, ts, path, "{}")
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, path)
	}
}

func TestQueueReflectsProducerUpdate(t *testing.T) {
	_, hub, ts := newTestServer(t, nil)

	err := hub.UpdateQueue(context.Background(), json.RawMessage(`[{"title":"a"},{"title":"b"}]`))
	require.NoError(t, err)

	queue := decode[[]types.Track](t, get(t, ts, "/api/queue"))
	require.Len(t, queue, 2)
	assert.Equal(t, "b", queue[1].Title)
}

func TestLogsPage(t *testing.T) {
	_, hub, ts := newTestServer(t, nil)

	ctx := context.Background()
	for i := 0; i < 120; i++ {
		_, err := hub.AppendLog(ctx, types.LogEntry{Level: types.LogLevelInfo, Message: fmt.Sprintf("entry %d", i)})
		require.NoError(t, err)
	}

	entries := decode[[]types.LogEntry](t, get(t, ts, "/api/logs"))
	require.Len(t, entries, 100)
	assert.Equal(t, "entry 20", entries[0].Message)
	assert.Equal(t, "entry 119", entries[99].Message)

	entries = decode[[]types.LogEntry](t, get(t, ts, "/api/logs?limit=5"))
	require.Len(t, entries, 5)
	assert.Equal(t, "entry 115", entries[0].Message)

	resp := get(t, ts, "/api/logs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogsEmptyIsArray(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	resp := get(t, ts, "/api/logs")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, "[]", string(raw))
}

func TestCommandWithoutProducer(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	resp := post(t, ts, "/api/skip", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	body := decode[ErrorResponse](t, resp)
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "producer unavailable")
}

func TestCommandNotBufferedForLaterProducer(t *testing.T) {
	_, hub, ts := newTestServer(t, nil)

	resp := post(t, ts, "/api/pause", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	p := connectProducer(t, hub)
	select {
	case cmd := <-p.Commands():
		t.Fatalf("unexpected buffered command %s", cmd.Name)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestVolumeOutOfRange(t *testing.T) {
	_, hub, ts := newTestServer(t, nil)
	p := connectProducer(t, hub)

	resp := post(t, ts, "/api/volume", `{"volume":150}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	state := decode[types.BotState](t, get(t, ts, "/api/status"))
	assert.Equal(t, types.DefaultVolume, state.Volume)
	assert.Empty(t, p.Commands())
}

func TestRemoveForwardedUnchanged(t *testing.T) {
	_, hub, ts := newTestServer(t, nil)
	p := connectProducer(t, hub)

	require.NoError(t, hub.UpdateQueue(context.Background(),
		json.RawMessage(`[{"title":"1"},{"title":"2"},{"title":"3"},{"title":"4"},{"title":"5"}]`)))

	resp := post(t, ts, "/api/remove", `{"index":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts, "/api/remove", `{"index":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]interface{}](t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "forwarded", body["status"])

	cmd := nextCommand(t, p)
	assert.Equal(t, types.CommandRemove, cmd.Name)
	require.Len(t, cmd.Args, 1)
	assert.Equal(t, "3", string(cmd.Args[0]))

	// Forwarding does not touch the queue; only the producer changes state
	queue := decode[[]types.Track](t, get(t, ts, "/api/queue"))
	assert.Len(t, queue, 5)
}

func TestCommandEndpoints(t *testing.T) {
	_, hub, ts := newTestServer(t, nil)
	p := connectProducer(t, hub)

	tests := []struct {
		path     string
		body     string
		wantCode int
		wantName types.CommandName
		wantArgs []string
	}{
		{path: "/api/play", body: `{"query":"lofi beats"}`, wantCode: 200, wantName: types.CommandPlay, wantArgs: []string{`"lofi beats"`}},
		{path: "/api/play", body: `{}`, wantCode: 400},
		{path: "/api/play", body: `{"query":"   "}`, wantCode: 400},
		{path: "/api/play", body: `{"query":`, wantCode: 400},
		{path: "/api/volume", body: `{"volume":0}`, wantCode: 200, wantName: types.CommandVolume, wantArgs: []string{"0"}},
		{path: "/api/volume", body: `{"volume":null}`, wantCode: 400},
		{path: "/api/seek", body: `{"position":42}`, wantCode: 200, wantName: types.CommandSeek, wantArgs: []string{"42"}},
		{path: "/api/seek", body: `{"position":-1}`, wantCode: 400},
		{path: "/api/skip", wantCode: 200, wantName: types.CommandSkip},
		{path: "/api/pause", wantCode: 200, wantName: types.CommandPause},
		{path: "/api/stop", wantCode: 200, wantName: types.CommandStop},
		{path: "/api/shuffle", wantCode: 200, wantName: types.CommandShuffle},
		{path: "/api/clear", wantCode: 200, wantName: types.CommandClear},
		{path: "/api/repeat", body: `{"ignored":true}`, wantCode: 200, wantName: types.CommandRepeat},
	}

	for _, tt := range tests {
		t.Run(tt.path+" "+tt.body, func(t *testing.T) {
			resp := post(t, ts, tt.path, tt.body)
			require.Equal(t, tt.wantCode, resp.StatusCode)
			if tt.wantCode != http.StatusOK {
				return
			}

			cmd := nextCommand(t, p)
			assert.Equal(t, tt.wantName, cmd.Name)
			args := make([]string, 0, len(cmd.Args))
			for _, a := range cmd.Args {
				args = append(args, string(a))
			}
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestCommandRequiresPost(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	resp := get(t, ts, "/api/skip")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
}

func TestCommandRateLimited(t *testing.T) {
	_, hub, ts := newTestServer(t, func(c *config.Config) {
		c.Commands.RatePerSecond = 0.01
		c.Commands.Burst = 1
	})
	connectProducer(t, hub)

	resp := post(t, ts, "/api/skip", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, ts, "/api/skip", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Reads are never limited
	resp = get(t, ts, "/api/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHubStoppedMapsTo503(t *testing.T) {
	_, hub, ts := newTestServer(t, nil)
	hub.Stop()

	resp := get(t, ts, "/api/status")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServeAndShutdown(t *testing.T) {
	cfg := config.Default()
	hub := events.NewHub(cfg.EventsConfig())
	hub.Start()
	defer hub.Stop()

	s := NewServer(hub, cfg)
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start("127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
