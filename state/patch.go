package state

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/pkg/timestamp"
)

// Patch is one Max patcher: a collection of objects and the connections
// between them, owned by exactly one Session.
type Patch struct {
	id           string
	name         string
	path         string
	modified     bool
	objects      map[string]*MaxObject
	connections  map[string]*Connection
	lastModified int64
}

// NewPatch creates a patch with the given identity.
func NewPatch(id, name, path string) *Patch {
	return &Patch{
		id:           id,
		name:         name,
		path:         path,
		objects:      make(map[string]*MaxObject),
		connections:  make(map[string]*Connection),
		lastModified: timestamp.Now(),
	}
}

// ID returns the patch id.
func (p *Patch) ID() string { return p.id }

// Name returns the patch name.
func (p *Patch) Name() string { return p.name }

// Path returns the file path the patch was loaded from, if any.
func (p *Patch) Path() string { return p.path }

// Modified reports whether the patch has unsaved changes.
func (p *Patch) Modified() bool { return p.modified }

// LastModified returns the last mutation time in Unix milliseconds.
func (p *Patch) LastModified() int64 { return p.lastModified }

// SetName renames the patch.
func (p *Patch) SetName(name string) {
	p.name = name
	p.touch()
}

// SetPath updates the file path.
func (p *Patch) SetPath(path string) {
	p.path = path
	p.touch()
}

// SetModified sets the unsaved-changes flag without touching the
// modification time; saving a patch clears the flag but is not an edit.
func (p *Patch) SetModified(modified bool) {
	p.modified = modified
}

// MarkModified flags unsaved changes and advances the modification time.
// Mutations of owned objects and connections call this so patch-level
// modification scans see them.
func (p *Patch) MarkModified() {
	p.modified = true
	p.touch()
}

// AddObject inserts an object, replacing any existing object with the
// same id.
func (p *Patch) AddObject(o *MaxObject) {
	p.objects[o.ID()] = o
	p.modified = true
	p.touch()
}

// RemoveObject deletes an object by id.
func (p *Patch) RemoveObject(id string) error {
	if _, ok := p.objects[id]; !ok {
		return errors.WrapNotFound(errors.ErrObjectNotFound, "Patch", "RemoveObject",
			fmt.Sprintf("object %q in patch %q", id, p.id))
	}
	delete(p.objects, id)
	p.modified = true
	p.touch()
	return nil
}

// Object returns the object with the given id.
func (p *Patch) Object(id string) (*MaxObject, error) {
	o, ok := p.objects[id]
	if !ok {
		return nil, errors.WrapNotFound(errors.ErrObjectNotFound, "Patch", "Object",
			fmt.Sprintf("object %q in patch %q", id, p.id))
	}
	return o, nil
}

// HasObject reports whether the object exists.
func (p *Patch) HasObject(id string) bool {
	_, ok := p.objects[id]
	return ok
}

// ObjectIDs returns all object ids in sorted order.
func (p *Patch) ObjectIDs() []string {
	ids := make([]string, 0, len(p.objects))
	for id := range p.objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ObjectCount returns the number of objects.
func (p *Patch) ObjectCount() int { return len(p.objects) }

// AddConnection inserts a connection, replacing any existing connection
// with the same id.
func (p *Patch) AddConnection(c *Connection) {
	p.connections[c.ID()] = c
	p.modified = true
	p.touch()
}

// RemoveConnection deletes a connection by id.
func (p *Patch) RemoveConnection(id string) error {
	if _, ok := p.connections[id]; !ok {
		return errors.WrapNotFound(errors.ErrConnectionNotFound, "Patch", "RemoveConnection",
			fmt.Sprintf("connection %q in patch %q", id, p.id))
	}
	delete(p.connections, id)
	p.modified = true
	p.touch()
	return nil
}

// Connection returns the connection with the given id.
func (p *Patch) Connection(id string) (*Connection, error) {
	c, ok := p.connections[id]
	if !ok {
		return nil, errors.WrapNotFound(errors.ErrConnectionNotFound, "Patch", "Connection",
			fmt.Sprintf("connection %q in patch %q", id, p.id))
	}
	return c, nil
}

// HasConnection reports whether the connection exists.
func (p *Patch) HasConnection(id string) bool {
	_, ok := p.connections[id]
	return ok
}

// ConnectionIDs returns all connection ids in sorted order.
func (p *Patch) ConnectionIDs() []string {
	ids := make([]string, 0, len(p.connections))
	for id := range p.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ConnectionCount returns the number of connections.
func (p *Patch) ConnectionCount() int { return len(p.connections) }

func (p *Patch) touch() {
	p.lastModified = timestamp.Max(p.lastModified, timestamp.Now())
}

type patchJSON struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Path             string        `json:"path"`
	IsModified       bool          `json:"isModified"`
	Objects          []*MaxObject  `json:"objects"`
	Connections      []*Connection `json:"connections"`
	LastModifiedTime int64         `json:"lastModifiedTime"`
}

// MarshalJSON serializes the patch with objects and connections ordered
// by id.
func (p *Patch) MarshalJSON() ([]byte, error) {
	objects := make([]*MaxObject, 0, len(p.objects))
	for _, id := range p.ObjectIDs() {
		objects = append(objects, p.objects[id])
	}
	connections := make([]*Connection, 0, len(p.connections))
	for _, id := range p.ConnectionIDs() {
		connections = append(connections, p.connections[id])
	}
	return json.Marshal(patchJSON{
		ID:               p.id,
		Name:             p.name,
		Path:             p.path,
		IsModified:       p.modified,
		Objects:          objects,
		Connections:      connections,
		LastModifiedTime: p.lastModified,
	})
}

// UnmarshalJSON restores a patch from its wire form.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var pj patchJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return errors.WrapInvalid(err, "Patch", "UnmarshalJSON", "decode patch")
	}
	if pj.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Patch", "UnmarshalJSON",
			"patch id missing")
	}
	p.id = pj.ID
	p.name = pj.Name
	p.path = pj.Path
	p.modified = pj.IsModified
	p.objects = make(map[string]*MaxObject, len(pj.Objects))
	for _, o := range pj.Objects {
		if o != nil {
			p.objects[o.ID()] = o
		}
	}
	p.connections = make(map[string]*Connection, len(pj.Connections))
	for _, c := range pj.Connections {
		if c != nil {
			p.connections[c.ID()] = c
		}
	}
	p.lastModified = pj.LastModifiedTime
	if p.lastModified == 0 {
		p.lastModified = timestamp.Now()
	}
	return nil
}
