package state

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/pkg/timestamp"
)

// Session is the root of the model: the set of open patches plus the
// global settings. The sync engine owns exactly one live session at a time.
type Session struct {
	id             string
	name           string
	startTime      int64
	patches        map[string]*Patch
	globalSettings *GlobalSettings
	lastModified   int64
}

// NewSession creates a session with the given identity and default
// global settings.
func NewSession(id, name string) *Session {
	now := timestamp.Now()
	return &Session{
		id:             id,
		name:           name,
		startTime:      now,
		patches:        make(map[string]*Patch),
		globalSettings: DefaultGlobalSettings(),
		lastModified:   now,
	}
}

// NewSessionWithGeneratedID creates a session with a fresh UUID.
func NewSessionWithGeneratedID(name string) *Session {
	return NewSession(uuid.NewString(), name)
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// StartTime returns the session start time in Unix milliseconds.
func (s *Session) StartTime() int64 { return s.startTime }

// LastModified returns the last mutation time in Unix milliseconds.
func (s *Session) LastModified() int64 { return s.lastModified }

// SetName renames the session.
func (s *Session) SetName(name string) {
	s.name = name
	s.touch()
}

// GlobalSettings returns the session's settings store.
func (s *Session) GlobalSettings() *GlobalSettings { return s.globalSettings }

// AddPatch inserts a patch, replacing any existing patch with the same id.
func (s *Session) AddPatch(p *Patch) {
	s.patches[p.ID()] = p
	s.touch()
}

// RemovePatch deletes a patch by id.
func (s *Session) RemovePatch(id string) error {
	if _, ok := s.patches[id]; !ok {
		return errors.WrapNotFound(errors.ErrPatchNotFound, "Session", "RemovePatch",
			fmt.Sprintf("patch %q", id))
	}
	delete(s.patches, id)
	s.touch()
	return nil
}

// Patch returns the patch with the given id.
func (s *Session) Patch(id string) (*Patch, error) {
	p, ok := s.patches[id]
	if !ok {
		return nil, errors.WrapNotFound(errors.ErrPatchNotFound, "Session", "Patch",
			fmt.Sprintf("patch %q", id))
	}
	return p, nil
}

// HasPatch reports whether the patch exists.
func (s *Session) HasPatch(id string) bool {
	_, ok := s.patches[id]
	return ok
}

// PatchIDs returns all patch ids in sorted order.
func (s *Session) PatchIDs() []string {
	ids := make([]string, 0, len(s.patches))
	for id := range s.patches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PatchCount returns the number of patches.
func (s *Session) PatchCount() int { return len(s.patches) }

// FindObject locates an object by id across all patches, returning the
// owning patch as well.
func (s *Session) FindObject(objectID string) (*Patch, *MaxObject, error) {
	for _, id := range s.PatchIDs() {
		p := s.patches[id]
		if o, err := p.Object(objectID); err == nil {
			return p, o, nil
		}
	}
	return nil, nil, errors.WrapNotFound(errors.ErrObjectNotFound, "Session", "FindObject",
		fmt.Sprintf("object %q", objectID))
}

// FindConnection locates a connection by id across all patches.
func (s *Session) FindConnection(connectionID string) (*Patch, *Connection, error) {
	for _, id := range s.PatchIDs() {
		p := s.patches[id]
		if c, err := p.Connection(connectionID); err == nil {
			return p, c, nil
		}
	}
	return nil, nil, errors.WrapNotFound(errors.ErrConnectionNotFound, "Session", "FindConnection",
		fmt.Sprintf("connection %q", connectionID))
}

func (s *Session) touch() {
	s.lastModified = timestamp.Max(s.lastModified, timestamp.Now())
}

type sessionJSON struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	StartTime        int64           `json:"startTime"`
	Patches          []*Patch        `json:"patches"`
	GlobalSettings   *GlobalSettings `json:"globalSettings"`
	LastModifiedTime int64           `json:"lastModifiedTime"`
}

// MarshalJSON serializes the session with patches ordered by id.
func (s *Session) MarshalJSON() ([]byte, error) {
	patches := make([]*Patch, 0, len(s.patches))
	for _, id := range s.PatchIDs() {
		patches = append(patches, s.patches[id])
	}
	return json.Marshal(sessionJSON{
		ID:               s.id,
		Name:             s.name,
		StartTime:        s.startTime,
		Patches:          patches,
		GlobalSettings:   s.globalSettings,
		LastModifiedTime: s.lastModified,
	})
}

// UnmarshalJSON restores a session from its wire form.
func (s *Session) UnmarshalJSON(data []byte) error {
	var sj sessionJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return errors.WrapInvalid(err, "Session", "UnmarshalJSON", "decode session")
	}
	if sj.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Session", "UnmarshalJSON",
			"session id missing")
	}
	s.id = sj.ID
	s.name = sj.Name
	s.startTime = sj.StartTime
	if s.startTime == 0 {
		s.startTime = timestamp.Now()
	}
	s.patches = make(map[string]*Patch, len(sj.Patches))
	for _, p := range sj.Patches {
		if p != nil {
			s.patches[p.ID()] = p
		}
	}
	s.globalSettings = sj.GlobalSettings
	if s.globalSettings == nil {
		s.globalSettings = NewGlobalSettings()
	}
	s.lastModified = sj.LastModifiedTime
	if s.lastModified == 0 {
		s.lastModified = timestamp.Now()
	}
	return nil
}
