package events

import (
	"encoding/json"
	"fmt"
)

// EventType is the name of a real-time channel event
type EventType string

const (
	// Relay -> subscriber
	EventHello          EventType = "hello"
	EventBotState       EventType = "bot-state"
	EventLogs           EventType = "logs"
	EventNewLog         EventType = "new-log"
	EventQueueUpdate    EventType = "queue-update"
	EventSongUpdate     EventType = "song-update"
	EventProducerStatus EventType = "producer-status"
	EventCommandResult  EventType = "command-result"

	// Subscriber -> relay
	EventBotCommand    EventType = "bot-command"
	EventRequestUpdate EventType = "request-update"
	EventRequestLogs   EventType = "request-logs"

	// Producer -> relay. The producer also sends new-log, queue-update and
	// song-update, and receives bot-command. On connect it may announce
	// itself with bot-state and a logs batch, which the relay accepts as
	// update-bot-state and a run of new-log.
	EventUpdateBotState EventType = "update-bot-state"
)

// Event is the envelope of every frame on a real-time channel
type Event struct {
	Type EventType       `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent encodes data into an event envelope
func NewEvent(t EventType, data interface{}) (*Event, error) {
	if data == nil {
		return &Event{Type: t}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", t, err)
	}
	return &Event{Type: t, Data: raw}, nil
}

// Decode unmarshals the event payload into v
func (e *Event) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s event has no data", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s event: %w", e.Type, err)
	}
	return nil
}

// HelloData is the first event a subscriber receives
type HelloData struct {
	ID                string `json:"id"`
	ProducerConnected bool   `json:"producerConnected"`
}

// ProducerStatusData announces producer connects and disconnects
type ProducerStatusData struct {
	Connected bool `json:"connected"`
}

// CommandResult answers a bot-command on the channel that sent it
type CommandResult struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    int    `json:"code,omitempty"`
}
