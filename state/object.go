package state

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/pkg/timestamp"
)

// Position is an object's location on the patcher canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is an object's on-canvas dimensions.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MaxObject is one object box inside a patch: an id, a Max object type
// (e.g. "cycle~"), canvas geometry, inlet/outlet counts, and named
// parameters.
type MaxObject struct {
	id           string
	typ          string
	position     Position
	size         Size
	inlets       int
	outlets      int
	parameters   map[string]*Parameter
	lastModified int64
}

// NewMaxObject creates an object with the given identity and type.
func NewMaxObject(id, typ string) *MaxObject {
	return &MaxObject{
		id:           id,
		typ:          typ,
		parameters:   make(map[string]*Parameter),
		lastModified: timestamp.Now(),
	}
}

// ID returns the object id.
func (o *MaxObject) ID() string { return o.id }

// Type returns the Max object type.
func (o *MaxObject) Type() string { return o.typ }

// Position returns the canvas position.
func (o *MaxObject) Position() Position { return o.position }

// Size returns the canvas size.
func (o *MaxObject) Size() Size { return o.size }

// Inlets returns the inlet count.
func (o *MaxObject) Inlets() int { return o.inlets }

// Outlets returns the outlet count.
func (o *MaxObject) Outlets() int { return o.outlets }

// LastModified returns the last mutation time in Unix milliseconds.
func (o *MaxObject) LastModified() int64 { return o.lastModified }

// SetPosition moves the object.
func (o *MaxObject) SetPosition(p Position) {
	o.position = p
	o.touch()
}

// SetSize resizes the object.
func (o *MaxObject) SetSize(s Size) {
	o.size = s
	o.touch()
}

// SetPorts sets the inlet and outlet counts.
func (o *MaxObject) SetPorts(inlets, outlets int) {
	o.inlets = inlets
	o.outlets = outlets
	o.touch()
}

// AddParameter attaches a parameter, replacing any existing one of the
// same name.
func (o *MaxObject) AddParameter(p *Parameter) {
	o.parameters[p.Name()] = p
	o.touch()
}

// Parameter returns the named parameter.
func (o *MaxObject) Parameter(name string) (*Parameter, error) {
	p, ok := o.parameters[name]
	if !ok {
		return nil, errors.WrapNotFound(errors.ErrParameterNotFound, "MaxObject", "Parameter",
			fmt.Sprintf("parameter %q on object %q", name, o.id))
	}
	return p, nil
}

// HasParameter reports whether the named parameter exists.
func (o *MaxObject) HasParameter(name string) bool {
	_, ok := o.parameters[name]
	return ok
}

// UpdateParameter sets the value of an existing parameter. Fails with
// NotFound for absent names and Permission for read-only parameters.
func (o *MaxObject) UpdateParameter(name string, value Value) error {
	p, ok := o.parameters[name]
	if !ok {
		return errors.WrapNotFound(errors.ErrParameterNotFound, "MaxObject", "UpdateParameter",
			fmt.Sprintf("parameter %q on object %q", name, o.id))
	}
	if err := p.SetValue(value); err != nil {
		return err
	}
	o.touch()
	return nil
}

// ParameterNames returns the parameter names in sorted order.
func (o *MaxObject) ParameterNames() []string {
	names := make([]string, 0, len(o.parameters))
	for name := range o.parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o *MaxObject) touch() {
	o.lastModified = timestamp.Max(o.lastModified, timestamp.Now())
}

type maxObjectJSON struct {
	ID         string       `json:"id"`
	Type       string       `json:"type"`
	Position   Position     `json:"position"`
	Size       Size         `json:"size"`
	Parameters []*Parameter `json:"parameters"`
	Inlets     int          `json:"inlets"`
	Outlets    int          `json:"outlets"`
}

// MarshalJSON serializes the object with parameters ordered by name.
func (o *MaxObject) MarshalJSON() ([]byte, error) {
	params := make([]*Parameter, 0, len(o.parameters))
	for _, name := range o.ParameterNames() {
		params = append(params, o.parameters[name])
	}
	return json.Marshal(maxObjectJSON{
		ID:         o.id,
		Type:       o.typ,
		Position:   o.position,
		Size:       o.size,
		Parameters: params,
		Inlets:     o.inlets,
		Outlets:    o.outlets,
	})
}

// UnmarshalJSON restores an object from its wire form.
func (o *MaxObject) UnmarshalJSON(data []byte) error {
	var oj maxObjectJSON
	if err := json.Unmarshal(data, &oj); err != nil {
		return errors.WrapInvalid(err, "MaxObject", "UnmarshalJSON", "decode object")
	}
	if oj.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "MaxObject", "UnmarshalJSON",
			"object id missing")
	}
	o.id = oj.ID
	o.typ = oj.Type
	o.position = oj.Position
	o.size = oj.Size
	o.inlets = oj.Inlets
	o.outlets = oj.Outlets
	o.parameters = make(map[string]*Parameter, len(oj.Parameters))
	for _, p := range oj.Parameters {
		if p != nil {
			o.parameters[p.Name()] = p
		}
	}
	if o.lastModified == 0 {
		o.lastModified = timestamp.Now()
	}
	return nil
}
