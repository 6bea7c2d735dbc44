package api

import (
	"net/http/httptest"
	"testing"

	"github.com/cuemby/bandstand/pkg/config"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestRateLimiterDisabled(t *testing.T) {
	l := NewRateLimiter(config.CommandsConfig{RatePerSecond: 0})
	assert.False(t, l.Enabled())

	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("10.0.0.1"))
	}
	assert.Zero(t, l.Len())
}

func TestRateLimiterBurstPerClient(t *testing.T) {
	l := NewRateLimiter(config.CommandsConfig{RatePerSecond: 0.01, Burst: 2})

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	// Other clients have their own bucket
	assert.True(t, l.Allow("b"))
	assert.Equal(t, 2, l.Len())

	l.Forget("a")
	assert.Equal(t, 1, l.Len())
	assert.True(t, l.Allow("a"))
}

func TestRateLimiterCleanupReleasesIdleClients(t *testing.T) {
	l := NewRateLimiter(config.CommandsConfig{RatePerSecond: 0.01, Burst: 2})

	l.Allow("busy")
	l.mu.Lock()
	l.limiters["idle"] = rate.NewLimiter(l.limit, l.burst)
	l.mu.Unlock()

	l.cleanup()

	assert.Equal(t, 1, l.Len())
	l.mu.Lock()
	_, ok := l.limiters["busy"]
	l.mu.Unlock()
	assert.True(t, ok)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "remote addr", remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "remote without port", remote: "192.0.2.1", want: "192.0.2.1"},
		{name: "forwarded for", header: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.1:80", want: "203.0.113.7"},
		{name: "real ip", header: map[string]string{"X-Real-IP": "198.51.100.2"}, remote: "10.0.0.1:80", want: "198.51.100.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/skip", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}
