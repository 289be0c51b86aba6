package state

import (
	"encoding/json"
	"fmt"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/pkg/timestamp"
)

// Parameter is a named, typed value owned by exactly one MaxObject.
// Entities are not internally synchronized; the sync engine serializes all
// model access under its coarse lock.
type Parameter struct {
	name         string
	value        Value
	typ          string
	readOnly     bool
	lastModified int64
}

// NewParameter creates a parameter with the given identity and value.
func NewParameter(name string, value Value, typ string, readOnly bool) *Parameter {
	return &Parameter{
		name:         name,
		value:        value,
		typ:          typ,
		readOnly:     readOnly,
		lastModified: timestamp.Now(),
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string { return p.name }

// Value returns the current value.
func (p *Parameter) Value() Value { return p.value }

// Type returns the string type tag.
func (p *Parameter) Type() string { return p.typ }

// ReadOnly reports whether the parameter rejects mutation.
func (p *Parameter) ReadOnly() bool { return p.readOnly }

// LastModified returns the last mutation time in Unix milliseconds.
func (p *Parameter) LastModified() int64 { return p.lastModified }

// SetValue updates the value. Read-only parameters reject the change.
func (p *Parameter) SetValue(v Value) error {
	if p.readOnly {
		return errors.WrapPermission(errors.ErrReadOnlyParameter, "Parameter", "SetValue",
			fmt.Sprintf("parameter %q is read-only", p.name))
	}
	p.value = v
	p.touch()
	return nil
}

func (p *Parameter) touch() {
	p.lastModified = timestamp.Max(p.lastModified, timestamp.Now())
}

type parameterJSON struct {
	Name       string `json:"name"`
	Value      Value  `json:"value"`
	Type       string `json:"type"`
	IsReadOnly bool   `json:"isReadOnly"`
}

// MarshalJSON serializes the parameter in its wire form.
func (p *Parameter) MarshalJSON() ([]byte, error) {
	return json.Marshal(parameterJSON{
		Name:       p.name,
		Value:      p.value,
		Type:       p.typ,
		IsReadOnly: p.readOnly,
	})
}

// UnmarshalJSON restores a parameter from its wire form.
func (p *Parameter) UnmarshalJSON(data []byte) error {
	var pj parameterJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return errors.WrapInvalid(err, "Parameter", "UnmarshalJSON", "decode parameter")
	}
	if pj.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Parameter", "UnmarshalJSON",
			"parameter name missing")
	}
	p.name = pj.Name
	p.value = pj.Value
	p.typ = pj.Type
	p.readOnly = pj.IsReadOnly
	if p.lastModified == 0 {
		p.lastModified = timestamp.Now()
	}
	return nil
}
