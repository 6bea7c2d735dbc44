package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// BotStatus is the producer-reported availability of the bot
type BotStatus string

const (
	BotStatusOffline  BotStatus = "offline"
	BotStatusOnline   BotStatus = "online"
	BotStatusDegraded BotStatus = "degraded"
)

// DefaultVolume is the volume reported before the producer sends its own
const DefaultVolume = 80

// BotState is the single authoritative snapshot of producer-reported state.
// JSON field names follow what the producer emits.
type BotState struct {
	Status           BotStatus `json:"status"`
	GuildCount       int       `json:"guilds"`
	UserCount        int       `json:"users"`
	UptimeSeconds    float64   `json:"uptime"`
	MemoryMB         float64   `json:"memory"`
	CPUPercent       float64   `json:"cpu"`
	CurrentSong      *Track    `json:"currentSong"`
	Queue            []Track   `json:"queue"`
	Volume           int       `json:"volume"`
	IsPlaying        bool      `json:"isPlaying"`
	IsPaused         bool      `json:"isPaused"`
	RepeatMode       bool      `json:"repeatMode"`
	ShuffleMode      bool      `json:"shuffleMode"`
	VoiceConnections int       `json:"voiceConnections"`
}

// OfflineState returns the state reported before any producer update arrives
func OfflineState() BotState {
	return BotState{
		Status: BotStatusOffline,
		Queue:  []Track{},
		Volume: DefaultVolume,
	}
}

// Clone returns a deep copy so callers never share the queue or current song
func (s BotState) Clone() BotState {
	out := s
	if s.CurrentSong != nil {
		song := *s.CurrentSong
		out.CurrentSong = &song
	}
	out.Queue = make([]Track, len(s.Queue))
	copy(out.Queue, s.Queue)
	return out
}

// Track is a song in the queue or the one currently playing.
// Optional fields are omitted from JSON when unset.
type Track struct {
	Title           string   `json:"title"`
	Artist          string   `json:"artist,omitempty"`
	DurationSeconds *float64 `json:"duration,omitempty"`
	ThumbnailURL    string   `json:"thumbnail,omitempty"`
	URL             string   `json:"url,omitempty"`
	Requester       string   `json:"requester,omitempty"`
	// PositionSeconds is only meaningful for the current song
	PositionSeconds *float64 `json:"currentTime,omitempty"`
}

// Patch is a partial BotState keyed by JSON field name. Values are kept
// encoded so a patch can be forwarded without re-serialization.
type Patch map[string]json.RawMessage

// Keys returns the patch field names
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	return keys
}

// LogLevel is the severity of a relayed log entry
type LogLevel string

const (
	LogLevelDebug    LogLevel = "DEBUG"
	LogLevelInfo     LogLevel = "INFO"
	LogLevelWarning  LogLevel = "WARNING"
	LogLevelError    LogLevel = "ERROR"
	LogLevelCritical LogLevel = "CRITICAL"
)

// ParseLogLevel normalizes a producer-supplied level. Unknown levels map to INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return LogLevelDebug
	case "WARNING", "WARN":
		return LogLevelWarning
	case "ERROR":
		return LogLevelError
	case "CRITICAL", "FATAL":
		return LogLevelCritical
	default:
		return LogLevelInfo
	}
}

// LogEntry is a relayed producer log line. Timestamp is Unix milliseconds;
// zero means "not set" and is filled in by the log buffer on receipt.
type LogEntry struct {
	Seq       uint64   `json:"seq,omitempty"`
	Level     LogLevel `json:"level"`
	Message   string   `json:"message"`
	Timestamp int64    `json:"timestamp"`
}

// UnmarshalJSON accepts fractional millisecond timestamps and loose level names
func (e *LogEntry) UnmarshalJSON(data []byte) error {
	var aux struct {
		Seq       uint64   `json:"seq"`
		Level     string   `json:"level"`
		Message   string   `json:"message"`
		Timestamp *float64 `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	e.Seq = aux.Seq
	e.Level = ParseLogLevel(aux.Level)
	e.Message = aux.Message
	e.Timestamp = 0
	if aux.Timestamp != nil {
		ts := *aux.Timestamp
		if ts < math.MinInt64 || ts >= math.MaxInt64 {
			return fmt.Errorf("timestamp %v out of range", ts)
		}
		e.Timestamp = int64(ts)
	}
	return nil
}

// CommandName identifies a dashboard command the producer understands
type CommandName string

const (
	CommandPlay    CommandName = "play"
	CommandSkip    CommandName = "skip"
	CommandPause   CommandName = "pause"
	CommandStop    CommandName = "stop"
	CommandVolume  CommandName = "volume"
	CommandShuffle CommandName = "shuffle"
	CommandClear   CommandName = "clear"
	CommandRemove  CommandName = "remove"
	CommandRepeat  CommandName = "repeat"
	CommandSeek    CommandName = "seek"
)

// Command is a subscriber request relayed to the producer. Args stay encoded
// so the producer receives exactly what the subscriber sent.
type Command struct {
	Name CommandName       `json:"command"`
	Args []json.RawMessage `json:"args"`
}

// NewCommand builds a command from Go values
func NewCommand(name CommandName, args ...interface{}) (Command, error) {
	cmd := Command{Name: name, Args: make([]json.RawMessage, 0, len(args))}
	for _, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return Command{}, err
		}
		cmd.Args = append(cmd.Args, raw)
	}
	return cmd, nil
}

// MarshalJSON always emits args as an array, never null
func (c Command) MarshalJSON() ([]byte, error) {
	args := c.Args
	if args == nil {
		args = []json.RawMessage{}
	}
	return json.Marshal(struct {
		Name CommandName       `json:"command"`
		Args []json.RawMessage `json:"args"`
	}{c.Name, args})
}
