package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cuemby/bandstand/pkg/types"
)

// ErrUnknownCommand is wrapped by ValidationError when the command name is not recognized
var ErrUnknownCommand = errors.New("unknown command")

// ValidationError describes a command rejected before reaching the producer
type ValidationError struct {
	Command types.CommandName
	Field   string
	Reason  string
	err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s command: %s %s", e.Command, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s command: %s", e.Command, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

// argRule checks the argument list of one command
type argRule func(args []json.RawMessage) (field, reason string)

var rules = map[types.CommandName]argRule{
	types.CommandPlay:    queryArgs,
	types.CommandVolume:  intArg(0, 100),
	types.CommandRemove:  intArg(1, math.MaxInt32),
	types.CommandSeek:    intArg(0, math.MaxInt32),
	types.CommandSkip:    noArgs,
	types.CommandPause:   noArgs,
	types.CommandStop:    noArgs,
	types.CommandShuffle: noArgs,
	types.CommandClear:   noArgs,
	types.CommandRepeat:  noArgs,
}

// Commands returns every recognized command name
func Commands() []types.CommandName {
	return []types.CommandName{
		types.CommandPlay, types.CommandSkip, types.CommandPause, types.CommandStop,
		types.CommandVolume, types.CommandShuffle, types.CommandClear,
		types.CommandRemove, types.CommandRepeat, types.CommandSeek,
	}
}

// Validate checks the command name and its argument contract
func Validate(cmd types.Command) error {
	rule, ok := rules[cmd.Name]
	if !ok {
		return &ValidationError{
			Command: cmd.Name,
			Field:   "command",
			Reason:  "is not a recognized command",
			err:     ErrUnknownCommand,
		}
	}

	if field, reason := rule(cmd.Args); reason != "" {
		return &ValidationError{Command: cmd.Name, Field: field, Reason: reason}
	}
	return nil
}

func noArgs(args []json.RawMessage) (string, string) {
	if len(args) != 0 {
		return "args", fmt.Sprintf("takes no arguments, got %d", len(args))
	}
	return "", ""
}

// queryArgs accepts one or more strings that are not blank when joined
func queryArgs(args []json.RawMessage) (string, string) {
	if len(args) == 0 {
		return "query", "is required"
	}

	parts := make([]string, 0, len(args))
	for i, raw := range args {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Sprintf("args[%d]", i), "must be a string"
		}
		parts = append(parts, s)
	}

	if strings.TrimSpace(strings.Join(parts, " ")) == "" {
		return "query", "must not be empty"
	}
	return "", ""
}

// intArg accepts exactly one integer in [min, max]. Numeric strings are
// accepted since the producer parses them the same way.
func intArg(min, max int64) argRule {
	return func(args []json.RawMessage) (string, string) {
		if len(args) != 1 {
			return "args", fmt.Sprintf("takes exactly one argument, got %d", len(args))
		}

		v, ok := parseInt(args[0])
		if !ok {
			return "args[0]", "must be an integer"
		}
		if v < min || v > max {
			if max == math.MaxInt32 {
				return "args[0]", fmt.Sprintf("must be at least %d", min)
			}
			return "args[0]", fmt.Sprintf("must be between %d and %d", min, max)
		}
		return "", ""
	}
}

func parseInt(raw json.RawMessage) (int64, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}

	var n json.Number
	switch t := v.(type) {
	case json.Number:
		n = t
	case string:
		n = json.Number(strings.TrimSpace(t))
	default:
		return 0, false
	}

	if i, err := n.Int64(); err == nil {
		return i, true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}
