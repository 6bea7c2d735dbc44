package events

import (
	"github.com/cuemby/bandstand/pkg/types"
)

// Drop reasons reported in metrics and logs
const (
	ReasonUnsubscribed = "unsubscribed"
	ReasonSlowConsumer = "slow_consumer"
	ReasonSuperseded   = "superseded"
	ReasonHubStopped   = "hub_stopped"
)

// Subscriber is a dashboard channel registered with the hub. Events are
// queued in a bounded buffer; the transport drains Events() and the channel
// is closed when the hub drops the subscriber for any reason.
type Subscriber struct {
	ID     string
	send   chan *Event
	closed bool
}

// Events returns the subscriber's outbound queue
func (s *Subscriber) Events() <-chan *Event {
	return s.send
}

// Producer is the single connected bot channel. Commands() is closed when the
// hub drops the producer.
type Producer struct {
	ID       string
	commands chan types.Command
	closed   bool
}

// Commands returns the queue of commands relayed to the producer
func (p *Producer) Commands() <-chan types.Command {
	return p.commands
}
