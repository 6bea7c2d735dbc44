package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/bandstand/pkg/config"
	"github.com/cuemby/bandstand/pkg/events"
	"github.com/cuemby/bandstand/pkg/log"
	"github.com/cuemby/bandstand/pkg/metrics"
	"github.com/cuemby/bandstand/pkg/relay"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// limiterCleanupInterval is how often idle command limiters are released
const limiterCleanupInterval = 10 * time.Minute

// Server serves the dashboard API, the real-time channels and the health
// endpoints from one HTTP listener
type Server struct {
	hub     *events.Hub
	relay   *relay.Relay
	cfg     *config.Config
	limiter *RateLimiter

	mux      *http.ServeMux
	http     *http.Server
	upgrader websocket.Upgrader

	stopCh   chan struct{}
	stopOnce sync.Once
	logger   zerolog.Logger
}

// NewServer creates an API server in front of a started hub
func NewServer(hub *events.Hub, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Server{
		hub:     hub,
		relay:   relay.NewRelay(hub, events.ErrProducerUnavailable),
		cfg:     cfg,
		limiter: NewRateLimiter(cfg.Commands),
		mux:     http.NewServeMux(),
		stopCh:  make(chan struct{}),
		logger:  log.WithComponent("api"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.http = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	// Read-only dashboard API
	s.handle("/api/status", s.handleStatus)
	s.handle("/api/queue", s.handleQueue)
	s.handle("/api/logs", s.handleLogs)

	// Commands
	s.handle("/api/play", s.handlePlay)
	s.handle("/api/volume", s.handleVolume)
	s.handle("/api/remove", s.handleRemove)
	s.handle("/api/seek", s.handleSeek)
	for _, name := range noArgCommands {
		s.handle("/api/"+string(name), s.handleSimple(name))
	}

	// Real-time channels
	s.handle("/ws", s.handleSubscriber)
	s.handle("/ws/producer", s.handleProducer)

	// Health and metrics
	s.handle("/health", s.healthHandler)
	s.handle("/ready", s.readyHandler)
	s.handle("/live", metrics.LivenessHandler())
	s.mux.Handle("/metrics", metrics.Handler())
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, Instrument(pattern, h))
}

// Handler returns the root handler, for embedding or tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on addr and serves until Shutdown is called
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve accepts connections on lis until Shutdown is called
func (s *Server) Serve(lis net.Listener) error {
	s.limiter.StartCleanup(limiterCleanupInterval, s.stopCh)
	metrics.RegisterComponent(metrics.ComponentAPI, true, "")
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("API server listening")

	err := s.http.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight requests.
// Hijacked WebSocket connections are closed when the hub stops.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	metrics.UpdateComponent(metrics.ComponentAPI, false, "shutting down")
	return s.http.Shutdown(ctx)
}

// checkOrigin allows any origin when none are configured. Requests without
// an Origin header come from non-browser clients such as the producer.
func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.WebSocket.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == origin || o == "*" {
			return true
		}
	}

	s.logger.Warn().Str("origin", origin).Msg("Rejected WebSocket origin")
	return false
}
