package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/bandstand/pkg/events"
	"github.com/cuemby/bandstand/pkg/log"
	"gopkg.in/yaml.v3"
)

// Config is the relay configuration file
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Hub       HubConfig       `yaml:"hub"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Commands  CommandsConfig  `yaml:"commands"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig configures the process log
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// HubConfig sizes the broadcast hub and its buffers
type HubConfig struct {
	LogCapacity      int `yaml:"log_capacity"`
	HandshakeLogs    int `yaml:"handshake_logs"`
	APILogs          int `yaml:"api_logs"`
	SubscriberBuffer int `yaml:"subscriber_buffer"`
	ProducerBuffer   int `yaml:"producer_buffer"`
}

// WebSocketConfig configures the real-time channels
type WebSocketConfig struct {
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// CommandsConfig rate limits dashboard commands per client
type CommandsConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":5000",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  true,
		},
		Hub: HubConfig{
			LogCapacity:      1000,
			HandshakeLogs:    50,
			APILogs:          100,
			SubscriberBuffer: 256,
			ProducerBuffer:   64,
		},
		WebSocket: WebSocketConfig{
			WriteTimeout:    10 * time.Second,
			PingInterval:    30 * time.Second,
			PongTimeout:     60 * time.Second,
			MaxMessageBytes: 1 << 20,
		},
		Commands: CommandsConfig{
			RatePerSecond: 5,
			Burst:         10,
		},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field constraints
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	if c.Hub.LogCapacity <= 0 {
		errs = append(errs, errors.New("hub.log_capacity must be positive"))
	}
	if c.Hub.HandshakeLogs < 0 || c.Hub.HandshakeLogs > c.Hub.LogCapacity {
		errs = append(errs, fmt.Errorf("hub.handshake_logs must be between 0 and log_capacity (%d)", c.Hub.LogCapacity))
	}
	if c.Hub.APILogs < 0 || c.Hub.APILogs > c.Hub.LogCapacity {
		errs = append(errs, fmt.Errorf("hub.api_logs must be between 0 and log_capacity (%d)", c.Hub.LogCapacity))
	}
	if c.Hub.SubscriberBuffer < 8 {
		errs = append(errs, errors.New("hub.subscriber_buffer must be at least 8"))
	}
	if c.Hub.ProducerBuffer <= 0 {
		errs = append(errs, errors.New("hub.producer_buffer must be positive"))
	}

	if c.WebSocket.WriteTimeout <= 0 {
		errs = append(errs, errors.New("websocket.write_timeout must be positive"))
	}
	if c.WebSocket.PingInterval <= 0 {
		errs = append(errs, errors.New("websocket.ping_interval must be positive"))
	}
	if c.WebSocket.PongTimeout <= c.WebSocket.PingInterval {
		errs = append(errs, errors.New("websocket.pong_timeout must exceed ping_interval"))
	}
	if c.WebSocket.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("websocket.max_message_bytes must be positive"))
	}

	if c.Commands.RatePerSecond < 0 {
		errs = append(errs, errors.New("commands.rate_per_second must not be negative"))
	}
	if c.Commands.RatePerSecond > 0 && c.Commands.Burst <= 0 {
		errs = append(errs, errors.New("commands.burst must be positive when rate limiting is enabled"))
	}

	return errors.Join(errs...)
}

// EventsConfig converts the hub section for events.NewHub
func (c *Config) EventsConfig() events.Config {
	return events.Config{
		LogCapacity:      c.Hub.LogCapacity,
		HandshakeLogs:    c.Hub.HandshakeLogs,
		SubscriberBuffer: c.Hub.SubscriberBuffer,
		ProducerBuffer:   c.Hub.ProducerBuffer,
	}
}

// LogConfig converts the logging section for log.Init
func (c *Config) LogConfig() log.Config {
	level, err := log.ParseLevel(c.Logging.Level)
	if err != nil {
		level = log.InfoLevel
	}
	return log.Config{
		Level:      level,
		JSONOutput: c.Logging.JSON,
		Output:     os.Stdout,
	}
}
