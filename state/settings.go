package state

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/pkg/timestamp"
)

// Default global settings established when a session is created.
const (
	DefaultOSCPort      = 7400
	DefaultSamplingRate = 44100
)

// GlobalSettings is the session-wide key/value store (OSC port, sampling
// rate, and whatever else the host publishes).
type GlobalSettings struct {
	settings     map[string]Value
	lastModified int64
}

// NewGlobalSettings creates an empty settings store.
func NewGlobalSettings() *GlobalSettings {
	return &GlobalSettings{
		settings:     make(map[string]Value),
		lastModified: timestamp.Now(),
	}
}

// DefaultGlobalSettings creates a settings store pre-populated with the
// bridge defaults.
func DefaultGlobalSettings() *GlobalSettings {
	gs := NewGlobalSettings()
	gs.Set("oscPort", Int(DefaultOSCPort))
	gs.Set("sampling_rate", Int(DefaultSamplingRate))
	return gs
}

// Set stores a setting.
func (g *GlobalSettings) Set(name string, value Value) {
	g.settings[name] = value
	g.touch()
}

// Get returns the named setting.
func (g *GlobalSettings) Get(name string) (Value, error) {
	v, ok := g.settings[name]
	if !ok {
		return Value{}, errors.WrapNotFound(errors.ErrSettingNotFound, "GlobalSettings", "Get",
			fmt.Sprintf("setting %q", name))
	}
	return v, nil
}

// Has reports whether the named setting exists.
func (g *GlobalSettings) Has(name string) bool {
	_, ok := g.settings[name]
	return ok
}

// Remove deletes a setting.
func (g *GlobalSettings) Remove(name string) error {
	if _, ok := g.settings[name]; !ok {
		return errors.WrapNotFound(errors.ErrSettingNotFound, "GlobalSettings", "Remove",
			fmt.Sprintf("setting %q", name))
	}
	delete(g.settings, name)
	g.touch()
	return nil
}

// Names returns the setting names in sorted order.
func (g *GlobalSettings) Names() []string {
	names := make([]string, 0, len(g.settings))
	for name := range g.settings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the settings map.
func (g *GlobalSettings) Snapshot() map[string]Value {
	out := make(map[string]Value, len(g.settings))
	for k, v := range g.settings {
		out[k] = v
	}
	return out
}

// LastModified returns the last mutation time in Unix milliseconds.
func (g *GlobalSettings) LastModified() int64 { return g.lastModified }

func (g *GlobalSettings) touch() {
	g.lastModified = timestamp.Max(g.lastModified, timestamp.Now())
}

type globalSettingsJSON struct {
	Settings         map[string]Value `json:"settings"`
	LastModifiedTime int64            `json:"lastModifiedTime"`
}

// MarshalJSON serializes the settings with their modification time.
func (g *GlobalSettings) MarshalJSON() ([]byte, error) {
	return json.Marshal(globalSettingsJSON{
		Settings:         g.settings,
		LastModifiedTime: g.lastModified,
	})
}

// UnmarshalJSON restores settings from their wire form.
func (g *GlobalSettings) UnmarshalJSON(data []byte) error {
	var gj globalSettingsJSON
	if err := json.Unmarshal(data, &gj); err != nil {
		return errors.WrapInvalid(err, "GlobalSettings", "UnmarshalJSON", "decode settings")
	}
	g.settings = gj.Settings
	if g.settings == nil {
		g.settings = make(map[string]Value)
	}
	g.lastModified = gj.LastModifiedTime
	if g.lastModified == 0 {
		g.lastModified = timestamp.Now()
	}
	return nil
}
