package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/bandstand/pkg/config"
	"github.com/cuemby/bandstand/pkg/log"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// maxLimiters bounds the per-client limiter table between cleanups
const maxLimiters = 10000

// RateLimiter throttles dashboard commands per client key (the client IP for
// REST requests, the channel ID for WebSocket subscribers)
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	logger zerolog.Logger
}

// NewRateLimiter creates a limiter from the commands config. A zero rate
// disables limiting and every Allow call succeeds.
func NewRateLimiter(cfg config.CommandsConfig) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(cfg.RatePerSecond),
		burst:    cfg.Burst,
		limiters: make(map[string]*rate.Limiter),
		logger:   log.WithComponent("ratelimit"),
	}
}

// Enabled reports whether commands are limited at all
func (l *RateLimiter) Enabled() bool {
	return l.limit > 0
}

// Allow reports whether one more command from key may proceed now
func (l *RateLimiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}

	l.mu.Lock()
	limiter, exists := l.limiters[key]
	if !exists {
		if len(l.limiters) >= maxLimiters {
			l.logger.Info().Int("count", len(l.limiters)).Msg("Clearing rate limiters")
			l.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
		l.logger.Debug().
			Str("client", key).
			Float64("rate", float64(l.limit)).
			Int("burst", l.burst).
			Msg("Created rate limiter")
	}
	l.mu.Unlock()

	allowed := limiter.Allow()
	if !allowed {
		l.logger.Warn().Str("client", key).Msg("Command rate limit exceeded")
	}
	return allowed
}

// Forget drops the limiter for key, used when a channel disconnects
func (l *RateLimiter) Forget(key string) {
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
}

// Len returns the number of tracked clients
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// StartCleanup clears idle limiters every interval until stop is closed.
// A limiter whose bucket has refilled completely carries no state worth keeping.
func (l *RateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	if !l.Enabled() {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.cleanup()
			case <-stop:
				return
			}
		}
	}()
}

func (l *RateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, limiter := range l.limiters {
		if limiter.Tokens() >= float64(l.burst) {
			delete(l.limiters, key)
			removed++
		}
	}
	if removed > 0 {
		l.logger.Debug().Int("removed", removed).Int("remaining", len(l.limiters)).Msg("Cleaned up rate limiters")
	}
}

// clientIP extracts the client address, preferring proxy headers
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
