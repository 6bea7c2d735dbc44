package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/bandstand/pkg/types"
)

// requestTimeout bounds how long a request waits on the hub
const requestTimeout = 5 * time.Second

// maxBodyBytes bounds command request bodies
const maxBodyBytes = 64 << 10

// noArgCommands are exposed as POST /api/<name> with no body
var noArgCommands = []types.CommandName{
	types.CommandSkip,
	types.CommandPause,
	types.CommandStop,
	types.CommandShuffle,
	types.CommandClear,
	types.CommandRepeat,
}

func (s *Server) hubContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

// handleStatus returns the full BotState snapshot
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	ctx, cancel := s.hubContext(r)
	defer cancel()

	snap, err := s.hub.Snapshot(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleQueue returns the current queue
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	ctx, cancel := s.hubContext(r)
	defer cancel()

	queue, err := s.hub.Queue(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

// handleLogs returns the newest log entries, oldest first. ?limit=n narrows
// the default page; it is capped at the buffer capacity.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	n := s.cfg.Hub.APILogs
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest))
			return
		}
		n = min(limit, s.cfg.Hub.LogCapacity)
	}

	ctx, cancel := s.hubContext(r)
	defer cancel()

	entries, err := s.hub.RecentLogs(ctx, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type playRequest struct {
	Query json.RawMessage `json:"query"`
}

type volumeRequest struct {
	Volume json.RawMessage `json:"volume"`
}

type removeRequest struct {
	Index json.RawMessage `json:"index"`
}

type seekRequest struct {
	Position json.RawMessage `json:"position"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	s.handleCommand(w, r, &req, func() types.Command {
		return commandWith(types.CommandPlay, req.Query)
	})
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	s.handleCommand(w, r, &req, func() types.Command {
		return commandWith(types.CommandVolume, req.Volume)
	})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	s.handleCommand(w, r, &req, func() types.Command {
		return commandWith(types.CommandRemove, req.Index)
	})
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	s.handleCommand(w, r, &req, func() types.Command {
		return commandWith(types.CommandSeek, req.Position)
	})
}

func (s *Server) handleSimple(name types.CommandName) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.handleCommand(w, r, nil, func() types.Command {
			return types.Command{Name: name, Args: []json.RawMessage{}}
		})
	}
}

// handleCommand decodes the body into req (when non-nil), builds the
// command and submits it through the relay. The response says the command
// was forwarded, never that it was applied.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request, req interface{}, build func() types.Command) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	if !s.limiter.Allow(clientIP(r)) {
		writeError(w, ErrRateLimited)
		return
	}

	if req != nil {
		if err := decodeBody(r, req); err != nil {
			writeError(w, err)
			return
		}
	}

	ctx, cancel := s.hubContext(r)
	defer cancel()

	ack, err := s.relay.Submit(ctx, build())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// decodeBody reads a JSON object body. An empty body decodes to the zero
// request, which then fails validation for commands that need arguments.
func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", errBadRequest)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// commandWith builds a single-argument command. A missing or null field
// yields no arguments so the relay reports the field as required.
func commandWith(name types.CommandName, arg json.RawMessage) types.Command {
	if len(arg) == 0 || string(arg) == "null" {
		return types.Command{Name: name, Args: []json.RawMessage{}}
	}
	return types.Command{Name: name, Args: []json.RawMessage{arg}}
}
