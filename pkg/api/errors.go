package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cuemby/bandstand/pkg/events"
	"github.com/cuemby/bandstand/pkg/log"
	"github.com/cuemby/bandstand/pkg/relay"
)

// ErrRateLimited is returned when a client exceeds its command rate
var ErrRateLimited = errors.New("rate limit exceeded")

// errBadRequest marks request bodies that could not be decoded
var errBadRequest = errors.New("malformed request body")

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// statusFor maps relay errors onto HTTP status codes. Internal faults get a
// generic message so nothing about the relay's internals leaks to clients.
func statusFor(err error) (int, string) {
	var verr *relay.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, events.ErrProducerUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, events.ErrHubStopped):
		return http.StatusServiceUnavailable, "relay is shutting down"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Logger.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Logger.Error().Err(err).Msg("API request failed")
	}
	writeJSON(w, status, ErrorResponse{Success: false, Error: msg})
}
