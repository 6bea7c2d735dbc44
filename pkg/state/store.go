package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cuemby/bandstand/pkg/types"
)

// ErrInvalidField is returned when a patch value cannot be coerced to the field type
var ErrInvalidField = errors.New("invalid field value")

// fieldSetter decodes a raw patch value into one BotState field
type fieldSetter func(s *types.BotState, raw json.RawMessage) error

var fields = map[string]fieldSetter{
	"status": func(s *types.BotState, raw json.RawMessage) error {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		s.Status = types.BotStatus(v)
		return nil
	},
	"guilds":           intField(func(s *types.BotState) *int { return &s.GuildCount }),
	"users":            intField(func(s *types.BotState) *int { return &s.UserCount }),
	"volume":           intField(func(s *types.BotState) *int { return &s.Volume }),
	"voiceConnections": intField(func(s *types.BotState) *int { return &s.VoiceConnections }),
	"uptime":           floatField(func(s *types.BotState) *float64 { return &s.UptimeSeconds }),
	"memory":           floatField(func(s *types.BotState) *float64 { return &s.MemoryMB }),
	"cpu":              floatField(func(s *types.BotState) *float64 { return &s.CPUPercent }),
	"isPlaying":        boolField(func(s *types.BotState) *bool { return &s.IsPlaying }),
	"isPaused":         boolField(func(s *types.BotState) *bool { return &s.IsPaused }),
	"repeatMode":       boolField(func(s *types.BotState) *bool { return &s.RepeatMode }),
	"shuffleMode":      boolField(func(s *types.BotState) *bool { return &s.ShuffleMode }),
	"currentSong": func(s *types.BotState, raw json.RawMessage) error {
		var song *types.Track
		if err := json.Unmarshal(raw, &song); err != nil {
			return err
		}
		s.CurrentSong = song
		return nil
	},
	"queue": func(s *types.BotState, raw json.RawMessage) error {
		var queue []types.Track
		if err := json.Unmarshal(raw, &queue); err != nil {
			return err
		}
		if queue == nil {
			queue = []types.Track{}
		}
		s.Queue = queue
		return nil
	},
}

func intField(ptr func(*types.BotState) *int) fieldSetter {
	return func(s *types.BotState, raw json.RawMessage) error {
		f, err := decodeNumber(raw)
		if err != nil {
			return err
		}
		r := math.Round(f)
		if math.IsNaN(r) || r < math.MinInt || r >= math.MaxInt {
			return fmt.Errorf("%v out of range", f)
		}
		*ptr(s) = int(r)
		return nil
	}
}

func floatField(ptr func(*types.BotState) *float64) fieldSetter {
	return func(s *types.BotState, raw json.RawMessage) error {
		f, err := decodeNumber(raw)
		if err != nil {
			return err
		}
		*ptr(s) = f
		return nil
	}
}

func boolField(ptr func(*types.BotState) *bool) fieldSetter {
	return func(s *types.BotState, raw json.RawMessage) error {
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		*ptr(s) = v
		return nil
	}
}

// decodeNumber accepts JSON numbers and numeric strings
func decodeNumber(raw json.RawMessage) (float64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}

	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case string:
		return json.Number(n).Float64()
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// IsKnownField reports whether name is a BotState field accepted in patches
func IsKnownField(name string) bool {
	_, ok := fields[name]
	return ok
}

// Store holds the authoritative BotState. It is not safe for concurrent use;
// the broadcast hub owns it and serializes every call.
type Store struct {
	state types.BotState
}

// NewStore creates a store initialized to the offline default
func NewStore() *Store {
	return &Store{state: types.OfflineState()}
}

// Apply merges a partial update into the state. Fields absent from the patch
// keep their value. The patch is applied all-or-nothing: if any known field
// fails to decode nothing changes. Unknown fields are ignored.
//
// It returns the merged delta (the accepted fields, re-encoded from their
// decoded values) and the new full snapshot.
func (s *Store) Apply(patch types.Patch) (types.Patch, types.BotState, error) {
	next := s.state.Clone()
	applied := make([]string, 0, len(patch))

	keys := patch.Keys()
	sort.Strings(keys)

	for _, key := range keys {
		set, ok := fields[key]
		if !ok {
			continue
		}
		if err := set(&next, patch[key]); err != nil {
			return nil, s.Snapshot(), fmt.Errorf("%w %q: %v", ErrInvalidField, key, err)
		}
		applied = append(applied, key)
	}

	s.state = next

	delta, err := encodeFields(next, applied)
	if err != nil {
		return nil, s.Snapshot(), err
	}
	return delta, s.Snapshot(), nil
}

// Snapshot returns a deep copy of the current state
func (s *Store) Snapshot() types.BotState {
	return s.state.Clone()
}

// Queue returns a copy of the current queue
func (s *Store) Queue() []types.Track {
	return s.state.Clone().Queue
}

// encodeFields extracts the named fields from a state as a Patch, so that
// broadcast deltas carry coerced values rather than whatever the producer sent
func encodeFields(st types.BotState, names []string) (types.Patch, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}

	var full map[string]json.RawMessage
	if err := json.Unmarshal(data, &full); err != nil {
		return nil, err
	}

	delta := make(types.Patch, len(names))
	for _, name := range names {
		delta[name] = full[name]
	}
	return delta, nil
}
