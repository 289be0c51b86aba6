package orchestrator

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/c360/maxbridge/errors"
)

// componentEntry pairs a component's channel with its capability tags.
type componentEntry struct {
	channel      ChannelID
	capabilities string
}

// ComponentRegistry maps logical subsystem names to their routing channel
// and capability description. Registration-only; nothing is removed at
// runtime.
type ComponentRegistry struct {
	mu         sync.RWMutex
	components map[string]componentEntry
}

// NewComponentRegistry creates an empty registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		components: make(map[string]componentEntry),
	}
}

// Register adds or replaces a component.
func (r *ComponentRegistry) Register(name string, channel ChannelID, capabilities string) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "ComponentRegistry", "Register",
			"component name empty")
	}
	if !channel.Valid() {
		return errors.WrapInvalid(errors.ErrUnknownChannel, "ComponentRegistry", "Register",
			fmt.Sprintf("channel %d for component %q", int(channel), name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[name] = componentEntry{channel: channel, capabilities: capabilities}
	return nil
}

// Has reports whether the component is registered.
func (r *ComponentRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.components[name]
	return ok
}

// Channel returns the routing channel for a registered component.
func (r *ComponentRegistry) Channel(name string) (ChannelID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.components[name]
	if !ok {
		return 0, errors.WrapNotFound(errors.ErrUnknownComponent, "ComponentRegistry", "Channel",
			fmt.Sprintf("component %q", name))
	}
	return entry.channel, nil
}

// Capabilities returns the capability tags for a registered component.
func (r *ComponentRegistry) Capabilities(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.components[name]
	if !ok {
		return "", errors.WrapNotFound(errors.ErrUnknownComponent, "ComponentRegistry", "Capabilities",
			fmt.Sprintf("component %q", name))
	}
	return entry.capabilities, nil
}

// Names returns the registered component names in sorted order.
func (r *ComponentRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Technology identifies an execution path for a task.
type Technology int

const (
	// TechnologyNative is high-performance native execution (DSP, threading).
	TechnologyNative Technology = iota
	// TechnologyUI is the embedded UI scripting engine (patch manipulation).
	TechnologyUI
	// TechnologyScript is the external scripting runtime (file I/O, network).
	TechnologyScript
	// TechnologyOSC is the legacy OSC protocol path (external services).
	TechnologyOSC
)

// String returns the wire name of the technology.
func (t Technology) String() string {
	switch t {
	case TechnologyNative:
		return "native"
	case TechnologyUI:
		return "ui"
	case TechnologyScript:
		return "script"
	case TechnologyOSC:
		return "osc"
	default:
		return "unknown"
	}
}

// TechnologySelector chooses an execution technology from a free-form
// task-requirement string. Selection is a first-match linear scan in
// fixed priority order, not a scoring system: the order of checks is the
// tie-break.
type TechnologySelector struct {
	mu           sync.RWMutex
	capabilities map[Technology]string
}

// NewTechnologySelector creates a selector with the built-in technologies.
func NewTechnologySelector() *TechnologySelector {
	return &TechnologySelector{
		capabilities: map[Technology]string{
			TechnologyUI:     "UI, patch manipulation, lightweight processing",
			TechnologyScript: "File I/O, network, heavy processing, external services",
			TechnologyNative: "High-performance DSP, native API access, threading",
			TechnologyOSC:    "External communication, legacy compatibility",
		},
	}
}

// RegisterTechnology adds or replaces a technology's capability tags.
func (s *TechnologySelector) RegisterTechnology(t Technology, capabilities string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capabilities[t] = capabilities
}

// Capabilities returns the capability tags for a technology.
func (s *TechnologySelector) Capabilities(t Technology) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capabilities[t]
}

// Select chooses a technology for the given requirements.
func (s *TechnologySelector) Select(requirements string) Technology {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case strings.Contains(requirements, "DSP") || strings.Contains(requirements, "performance"):
		return TechnologyNative
	case strings.Contains(requirements, "UI") || strings.Contains(requirements, "patch"):
		return TechnologyUI
	case strings.Contains(requirements, "file") || strings.Contains(requirements, "network"):
		return TechnologyScript
	case strings.Contains(requirements, "external"):
		return TechnologyOSC
	default:
		// The most versatile option
		return TechnologyNative
	}
}
