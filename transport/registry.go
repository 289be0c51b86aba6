package transport

import (
	"fmt"
	"sync"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/state"
)

type registration struct {
	pattern string
	handler Handler
}

// HandlerRegistry maps OSC address patterns to handlers. Exact
// addresses are looked up first; wildcard patterns are then tried in
// registration order and the first match wins.
type HandlerRegistry struct {
	mu       sync.RWMutex
	exact    map[string]Handler
	patterns []registration
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		exact: make(map[string]Handler),
	}
}

// Register binds a handler to an address pattern. Registering the same
// pattern again replaces the previous handler in place.
func (r *HandlerRegistry) Register(pattern string, handler Handler) error {
	if pattern == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "HandlerRegistry", "Register",
			"empty pattern")
	}
	if handler == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "HandlerRegistry", "Register",
			fmt.Sprintf("nil handler for %q", pattern))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !HasWildcards(pattern) {
		r.exact[pattern] = handler
		return nil
	}
	for i, reg := range r.patterns {
		if reg.pattern == pattern {
			r.patterns[i].handler = handler
			return nil
		}
	}
	r.patterns = append(r.patterns, registration{pattern: pattern, handler: handler})
	return nil
}

// Unregister removes a pattern. Unknown patterns are a no-op.
func (r *HandlerRegistry) Unregister(pattern string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !HasWildcards(pattern) {
		delete(r.exact, pattern)
		return
	}
	for i, reg := range r.patterns {
		if reg.pattern == pattern {
			r.patterns = append(r.patterns[:i], r.patterns[i+1:]...)
			return
		}
	}
}

// Lookup finds the handler for an address: exact match first, then the
// first wildcard pattern that matches, in registration order.
func (r *HandlerRegistry) Lookup(address string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.exact[address]; ok {
		return h, true
	}
	for _, reg := range r.patterns {
		if MatchAddress(reg.pattern, address) {
			return reg.handler, true
		}
	}
	return nil, false
}

// Dispatch routes a message to its handler.
func (r *HandlerRegistry) Dispatch(address string, args []state.Value) error {
	h, ok := r.Lookup(address)
	if !ok {
		return errors.WrapNotFound(errors.ErrNoHandler, "HandlerRegistry", "Dispatch",
			fmt.Sprintf("address %q", address))
	}
	h(address, args)
	return nil
}

// Patterns returns all registered patterns, exact addresses first.
func (r *HandlerRegistry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.exact)+len(r.patterns))
	for p := range r.exact {
		out = append(out, p)
	}
	for _, reg := range r.patterns {
		out = append(out, reg.pattern)
	}
	return out
}

// Clear drops every registration.
func (r *HandlerRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact = make(map[string]Handler)
	r.patterns = nil
}
