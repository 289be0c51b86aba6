// Package transport defines the message framing shared by the bridge's
// network adapters, plus the OSC-address pattern matcher and handler
// registry used to route inbound traffic. Byte-level OSC framing is out
// of scope; messages travel as JSON frames over WebSocket.
package transport

import (
	"context"
	"strings"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/state"
)

// Message is one addressed frame: an OSC-style address plus typed
// arguments. The JSON form is {"address": "...", "args": [...]}.
type Message struct {
	Address string        `json:"address"`
	Args    []state.Value `json:"args"`
}

// Validate checks the address is a well-formed OSC address: non-empty,
// starting with '/', with no empty segments.
func (m Message) Validate() error {
	if m.Address == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Message", "Validate",
			"empty address")
	}
	if !strings.HasPrefix(m.Address, "/") {
		return errors.WrapInvalid(errors.ErrInvalidData, "Message", "Validate",
			"address must start with /")
	}
	if strings.Contains(m.Address, "//") || strings.HasSuffix(m.Address, "/") {
		return errors.WrapInvalid(errors.ErrInvalidData, "Message", "Validate",
			"address has empty segment")
	}
	return nil
}

// Handler consumes a dispatched message.
type Handler func(address string, args []state.Value)

// Sender pushes messages toward a remote peer.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Conn is a sender with a lifecycle.
type Conn interface {
	Sender
	Close() error
}
