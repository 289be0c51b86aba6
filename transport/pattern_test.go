package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchAddress(t *testing.T) {
	tests := []struct {
		pattern string
		address string
		want    bool
	}{
		// Literals
		{"/max/state", "/max/state", true},
		{"/max/state", "/max/states", false},
		{"/max/state", "/max", false},

		// Star within a segment
		{"/max/*", "/max/state", true},
		{"/max/*", "/max/", true},
		{"/max/*", "/max/state/patch", false},
		{"/max/*/created", "/max/patch/created", true},
		{"/max/*/created", "/max/patch/object/created", false},
		{"/max/st*e", "/max/state", true},

		// Single character
		{"/osc/?", "/osc/a", true},
		{"/osc/?", "/osc/ab", false},
		{"/osc/?", "/osc//", false},
		{"/fader?", "/fader1", true},

		// Character classes
		{"/fader[123]", "/fader2", true},
		{"/fader[123]", "/fader4", false},
		{"/fader[1-4]", "/fader3", true},
		{"/fader[!1-4]", "/fader5", true},
		{"/fader[!1-4]", "/fader2", false},
		{"/fader[", "/fader1", false},

		// Alternation
		{"/max/{patch,object}/created", "/max/patch/created", true},
		{"/max/{patch,object}/created", "/max/object/created", true},
		{"/max/{patch,object}/created", "/max/param/created", false},
		{"/max/{patch", "/max/patch", false},

		// Combinations
		{"/max/state/*/{created,deleted}", "/max/state/patch/created", true},
		{"/max/state/*/{created,deleted}", "/max/state/patch/updated", false},
	}

	for _, tt := range tests {
		got := MatchAddress(tt.pattern, tt.address)
		assert.Equal(t, tt.want, got, "pattern %q address %q", tt.pattern, tt.address)
	}
}

func TestHasWildcards(t *testing.T) {
	assert.False(t, HasWildcards("/max/state"))
	assert.True(t, HasWildcards("/max/*"))
	assert.True(t, HasWildcards("/osc/?"))
	assert.True(t, HasWildcards("/fader[1-4]"))
	assert.True(t, HasWildcards("/max/{a,b}"))
}
