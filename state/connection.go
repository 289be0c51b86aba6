package state

import (
	"encoding/json"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/pkg/timestamp"
)

// Connection is a patch cord between two object endpoints. Endpoints are
// plain ids; no check is made that the referenced objects exist.
type Connection struct {
	id           string
	sourceID     string
	sourceOutlet int
	destID       string
	destInlet    int
	lastModified int64
}

// NewConnection creates a connection between the given endpoints.
func NewConnection(id, sourceID string, sourceOutlet int, destID string, destInlet int) *Connection {
	return &Connection{
		id:           id,
		sourceID:     sourceID,
		sourceOutlet: sourceOutlet,
		destID:       destID,
		destInlet:    destInlet,
		lastModified: timestamp.Now(),
	}
}

// ID returns the connection id.
func (c *Connection) ID() string { return c.id }

// SourceID returns the source object id.
func (c *Connection) SourceID() string { return c.sourceID }

// SourceOutlet returns the source outlet index.
func (c *Connection) SourceOutlet() int { return c.sourceOutlet }

// DestinationID returns the destination object id.
func (c *Connection) DestinationID() string { return c.destID }

// DestinationInlet returns the destination inlet index.
func (c *Connection) DestinationInlet() int { return c.destInlet }

// LastModified returns the creation time in Unix milliseconds.
func (c *Connection) LastModified() int64 { return c.lastModified }

type connectionJSON struct {
	ID               string `json:"id"`
	SourceID         string `json:"sourceId"`
	SourceOutlet     int    `json:"sourceOutlet"`
	DestinationID    string `json:"destinationId"`
	DestinationInlet int    `json:"destinationInlet"`
}

// MarshalJSON serializes the connection in its wire form.
func (c *Connection) MarshalJSON() ([]byte, error) {
	return json.Marshal(connectionJSON{
		ID:               c.id,
		SourceID:         c.sourceID,
		SourceOutlet:     c.sourceOutlet,
		DestinationID:    c.destID,
		DestinationInlet: c.destInlet,
	})
}

// UnmarshalJSON restores a connection from its wire form.
func (c *Connection) UnmarshalJSON(data []byte) error {
	var cj connectionJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return errors.WrapInvalid(err, "Connection", "UnmarshalJSON", "decode connection")
	}
	if cj.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Connection", "UnmarshalJSON",
			"connection id missing")
	}
	c.id = cj.ID
	c.sourceID = cj.SourceID
	c.sourceOutlet = cj.SourceOutlet
	c.destID = cj.DestinationID
	c.destInlet = cj.DestinationInlet
	if c.lastModified == 0 {
		c.lastModified = timestamp.Now()
	}
	return nil
}
