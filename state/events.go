package state

import (
	"encoding/json"
	"fmt"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/pkg/timestamp"
)

// Category identifies which entity kind a state event concerns.
type Category int

const (
	CategorySession Category = iota
	CategoryPatch
	CategoryObject
	CategoryParameter
	CategoryConnection
	CategoryGlobalSetting
)

// String returns the wire name of the category.
func (c Category) String() string {
	switch c {
	case CategorySession:
		return "session"
	case CategoryPatch:
		return "patch"
	case CategoryObject:
		return "object"
	case CategoryParameter:
		return "parameter"
	case CategoryConnection:
		return "connection"
	case CategoryGlobalSetting:
		return "globalSetting"
	default:
		return "unknown"
	}
}

// ParseCategory converts a wire name back to a Category.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "session":
		return CategorySession, nil
	case "patch":
		return CategoryPatch, nil
	case "object":
		return CategoryObject, nil
	case "parameter":
		return CategoryParameter, nil
	case "connection":
		return CategoryConnection, nil
	case "globalSetting":
		return CategoryGlobalSetting, nil
	default:
		return 0, errors.WrapInvalid(errors.ErrInvalidData, "Category", "ParseCategory",
			fmt.Sprintf("unknown category %q", s))
	}
}

// EventType identifies what happened to the entity.
type EventType int

const (
	EventCreated EventType = iota
	EventUpdated
	EventDeleted
	EventConnected
	EventDisconnected
	EventMoved
	EventResized
	EventParamChanged
	EventStateChanged
)

// String returns the wire name of the event type.
func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventMoved:
		return "moved"
	case EventResized:
		return "resized"
	case EventParamChanged:
		return "paramChanged"
	case EventStateChanged:
		return "stateChanged"
	default:
		return "unknown"
	}
}

// ParseEventType converts a wire name back to an EventType.
func ParseEventType(s string) (EventType, error) {
	switch s {
	case "created":
		return EventCreated, nil
	case "updated":
		return EventUpdated, nil
	case "deleted":
		return EventDeleted, nil
	case "connected":
		return EventConnected, nil
	case "disconnected":
		return EventDisconnected, nil
	case "moved":
		return EventMoved, nil
	case "resized":
		return EventResized, nil
	case "paramChanged":
		return EventParamChanged, nil
	case "stateChanged":
		return EventStateChanged, nil
	default:
		return 0, errors.WrapInvalid(errors.ErrInvalidData, "EventType", "ParseEventType",
			fmt.Sprintf("unknown event type %q", s))
	}
}

// StateEvent is one immutable change record: what happened, to which
// entity, with what payload, and when.
type StateEvent struct {
	Category  Category
	Type      EventType
	ObjectID  string
	Data      Value
	Timestamp int64
}

// NewStateEvent creates an event, stamping it with the current time when
// ts is zero.
func NewStateEvent(category Category, eventType EventType, objectID string, data Value, ts int64) StateEvent {
	if ts == 0 {
		ts = timestamp.Now()
	}
	return StateEvent{
		Category:  category,
		Type:      eventType,
		ObjectID:  objectID,
		Data:      data,
		Timestamp: ts,
	}
}

type stateEventJSON struct {
	Category  string `json:"category"`
	EventType string `json:"eventType"`
	ObjectID  string `json:"objectId"`
	Data      Value  `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// MarshalJSON serializes the event in its wire form.
func (e StateEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateEventJSON{
		Category:  e.Category.String(),
		EventType: e.Type.String(),
		ObjectID:  e.ObjectID,
		Data:      e.Data,
		Timestamp: e.Timestamp,
	})
}

// UnmarshalJSON restores an event from its wire form.
func (e *StateEvent) UnmarshalJSON(data []byte) error {
	var ej stateEventJSON
	if err := json.Unmarshal(data, &ej); err != nil {
		return errors.WrapInvalid(err, "StateEvent", "UnmarshalJSON", "decode event")
	}
	category, err := ParseCategory(ej.Category)
	if err != nil {
		return err
	}
	eventType, err := ParseEventType(ej.EventType)
	if err != nil {
		return err
	}
	*e = NewStateEvent(category, eventType, ej.ObjectID, ej.Data, ej.Timestamp)
	return nil
}

// StateChange is the outbound notification wrapper around an event.
type StateChange struct {
	Event StateEvent
}

// NewStateChange wraps an event for notification.
func NewStateChange(event StateEvent) StateChange {
	return StateChange{Event: event}
}

// NotificationJSON returns the notification payload.
func (c StateChange) NotificationJSON() ([]byte, error) {
	return json.Marshal(c.Event)
}

// OSCAddress returns the address the notification is published under,
// of the form /max/state/<category>/<eventType>.
func (c StateChange) OSCAddress() string {
	return fmt.Sprintf("/max/state/%s/%s", c.Event.Category, c.Event.Type)
}
