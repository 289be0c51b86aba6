// Package orchestrator implements the bridge's message router: a bounded
// priority-admission queue drained by a worker pool, a component registry
// and technology selector, and a connection manager for the named core
// services.
package orchestrator

import (
	"fmt"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/pkg/timestamp"
	"github.com/c360/maxbridge/state"
)

// ChannelID identifies one of the four fixed routing channels.
type ChannelID int

const (
	ChannelIntelligence ChannelID = iota
	ChannelExecution
	ChannelInteraction
	ChannelSystem

	channelCount
)

// String returns the wire name of the channel.
func (c ChannelID) String() string {
	switch c {
	case ChannelIntelligence:
		return "intelligence"
	case ChannelExecution:
		return "execution"
	case ChannelInteraction:
		return "interaction"
	case ChannelSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Valid reports whether the value is within the closed channel set.
func (c ChannelID) Valid() bool {
	return c >= ChannelIntelligence && c < channelCount
}

// ParseChannel converts a wire name back to a ChannelID.
func ParseChannel(s string) (ChannelID, error) {
	switch s {
	case "intelligence":
		return ChannelIntelligence, nil
	case "execution":
		return ChannelExecution, nil
	case "interaction":
		return ChannelInteraction, nil
	case "system":
		return ChannelSystem, nil
	default:
		return 0, errors.WrapInvalid(errors.ErrUnknownChannel, "ChannelID", "ParseChannel",
			fmt.Sprintf("channel %q", s))
	}
}

// Message is one routing request. Created on route submission, consumed
// exactly once by a worker, never mutated after creation.
type Message struct {
	Source      ChannelID
	Destination ChannelID
	Command     string
	Args        []state.Value
	Priority    int
	Timestamp   int64

	// seq orders messages of equal priority for deterministic eviction.
	seq uint64
}

// NewMessage creates a message stamped with the current time.
func NewMessage(source, destination ChannelID, command string, args []state.Value, priority int) Message {
	return Message{
		Source:      source,
		Destination: destination,
		Command:     command,
		Args:        args,
		Priority:    priority,
		Timestamp:   timestamp.Now(),
	}
}

// Validate checks the invariants every message must satisfy before it is
// enqueued and again before it is processed.
func (m Message) Validate() error {
	if !m.Source.Valid() {
		return errors.WrapInvalid(errors.ErrUnknownChannel, "Message", "Validate",
			fmt.Sprintf("source channel %d", int(m.Source)))
	}
	if !m.Destination.Valid() {
		return errors.WrapInvalid(errors.ErrUnknownChannel, "Message", "Validate",
			fmt.Sprintf("destination channel %d", int(m.Destination)))
	}
	if m.Command == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Message", "Validate",
			"command empty")
	}
	return nil
}
