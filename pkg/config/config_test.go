package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/bandstand/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bandstand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, 1000, cfg.Hub.LogCapacity)
	assert.Equal(t, 50, cfg.Hub.HandshakeLogs)
	assert.Equal(t, 100, cfg.Hub.APILogs)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":8080"
logging:
  level: debug
  json: false
hub:
  log_capacity: 200
websocket:
  ping_interval: 5s
  pong_timeout: 12s
  allowed_origins:
    - https://dash.example.com
commands:
  rate_per_second: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Logging.JSON)
	assert.Equal(t, 200, cfg.Hub.LogCapacity)
	assert.Equal(t, 5*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 12*time.Second, cfg.WebSocket.PongTimeout)
	assert.Equal(t, []string{"https://dash.example.com"}, cfg.WebSocket.AllowedOrigins)
	assert.Zero(t, cfg.Commands.RatePerSecond)

	// Untouched keys keep their defaults
	assert.Equal(t, 50, cfg.Hub.HandshakeLogs)
	assert.Equal(t, 10*time.Second, cfg.WebSocket.WriteTimeout)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not, a, map"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "hub:\n  log_capacity: 10\n  handshake_logs: 50\n"))
	assert.ErrorContains(t, err, "handshake_logs")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "empty addr", mutate: func(c *Config) { c.Server.Addr = "" }, want: "server.addr"},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, want: "logging.level"},
		{name: "zero capacity", mutate: func(c *Config) { c.Hub.LogCapacity = 0 }, want: "log_capacity"},
		{name: "api logs over capacity", mutate: func(c *Config) { c.Hub.APILogs = 5000 }, want: "api_logs"},
		{name: "tiny subscriber buffer", mutate: func(c *Config) { c.Hub.SubscriberBuffer = 2 }, want: "subscriber_buffer"},
		{name: "no producer buffer", mutate: func(c *Config) { c.Hub.ProducerBuffer = 0 }, want: "producer_buffer"},
		{name: "pong before ping", mutate: func(c *Config) { c.WebSocket.PongTimeout = time.Second }, want: "pong_timeout"},
		{name: "no message size", mutate: func(c *Config) { c.WebSocket.MaxMessageBytes = 0 }, want: "max_message_bytes"},
		{name: "negative rate", mutate: func(c *Config) { c.Commands.RatePerSecond = -1 }, want: "rate_per_second"},
		{name: "no burst", mutate: func(c *Config) { c.Commands.Burst = 0 }, want: "burst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestConverters(t *testing.T) {
	cfg := Default()
	cfg.Hub.LogCapacity = 42
	cfg.Logging.Level = "warning"

	hub := cfg.EventsConfig()
	assert.Equal(t, 42, hub.LogCapacity)
	assert.Equal(t, 50, hub.HandshakeLogs)
	assert.Equal(t, 256, hub.SubscriberBuffer)
	assert.Equal(t, 64, hub.ProducerBuffer)

	lc := cfg.LogConfig()
	assert.Equal(t, log.WarnLevel, lc.Level)
	assert.True(t, lc.JSONOutput)
}
