package relay

import (
	"context"
	"errors"

	"github.com/cuemby/bandstand/pkg/log"
	"github.com/cuemby/bandstand/pkg/metrics"
	"github.com/cuemby/bandstand/pkg/types"
	"github.com/rs/zerolog"
)

// StatusForwarded is the only success status: the command was handed to the
// producer, not necessarily executed
const StatusForwarded = "forwarded"

// Command results recorded in bandstand_commands_total
const (
	resultForwarded   = "forwarded"
	resultInvalid     = "invalid"
	resultUnavailable = "unavailable"
	resultError       = "error"
)

// Forwarder delivers a validated command to the producer channel
type Forwarder interface {
	RelayCommand(ctx context.Context, cmd types.Command) error
}

// Ack acknowledges a command accepted for delivery
type Ack struct {
	Success bool              `json:"success"`
	Status  string            `json:"status"`
	Command types.CommandName `json:"command"`
}

// Relay validates dashboard commands and forwards them unchanged
type Relay struct {
	forwarder   Forwarder
	unavailable error
	logger      zerolog.Logger
}

// NewRelay creates a relay. unavailable is the forwarder's "no producer"
// sentinel, used only to label metrics; it may be nil.
func NewRelay(fwd Forwarder, unavailable error) *Relay {
	return &Relay{
		forwarder:   fwd,
		unavailable: unavailable,
		logger:      log.WithComponent("relay"),
	}
}

// Submit validates cmd and forwards it. Malformed commands return a
// *ValidationError and never reach the producer. Forwarding errors are
// returned as-is; nothing is retried or queued.
func (r *Relay) Submit(ctx context.Context, cmd types.Command) (Ack, error) {
	if err := Validate(cmd); err != nil {
		metrics.CommandsTotal.WithLabelValues(metricName(cmd.Name), resultInvalid).Inc()
		r.logger.Debug().Err(err).Str("command", string(cmd.Name)).Msg("Rejected command")
		return Ack{}, err
	}

	if err := r.forwarder.RelayCommand(ctx, cmd); err != nil {
		result := resultError
		if r.unavailable != nil && errors.Is(err, r.unavailable) {
			result = resultUnavailable
		}
		metrics.CommandsTotal.WithLabelValues(string(cmd.Name), result).Inc()
		r.logger.Debug().Err(err).Str("command", string(cmd.Name)).Msg("Command not forwarded")
		return Ack{}, err
	}

	metrics.CommandsTotal.WithLabelValues(string(cmd.Name), resultForwarded).Inc()
	return Ack{Success: true, Status: StatusForwarded, Command: cmd.Name}, nil
}

// metricName keeps arbitrary client input out of metric labels
func metricName(name types.CommandName) string {
	if _, ok := rules[name]; ok {
		return string(name)
	}
	return "unknown"
}
