package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/state"
)

func TestRegistryExactMatchBeatsPatterns(t *testing.T) {
	r := NewHandlerRegistry()

	var hit string
	require.NoError(t, r.Register("/max/*", func(addr string, _ []state.Value) {
		hit = "wildcard"
	}))
	require.NoError(t, r.Register("/max/state", func(addr string, _ []state.Value) {
		hit = "exact"
	}))

	require.NoError(t, r.Dispatch("/max/state", nil))
	assert.Equal(t, "exact", hit)

	require.NoError(t, r.Dispatch("/max/other", nil))
	assert.Equal(t, "wildcard", hit)
}

func TestRegistryFirstMatchingPatternWins(t *testing.T) {
	r := NewHandlerRegistry()

	var hit string
	require.NoError(t, r.Register("/max/*/created", func(string, []state.Value) {
		hit = "first"
	}))
	require.NoError(t, r.Register("/max/patch/*", func(string, []state.Value) {
		hit = "second"
	}))

	require.NoError(t, r.Dispatch("/max/patch/created", nil))
	assert.Equal(t, "first", hit)
}

func TestRegistryDispatchPassesArgs(t *testing.T) {
	r := NewHandlerRegistry()

	var gotAddr string
	var gotArgs []state.Value
	require.NoError(t, r.Register("/synth/freq", func(addr string, args []state.Value) {
		gotAddr = addr
		gotArgs = args
	}))

	args := []state.Value{state.Float(440.0), state.String("sine")}
	require.NoError(t, r.Dispatch("/synth/freq", args))
	assert.Equal(t, "/synth/freq", gotAddr)
	require.Len(t, gotArgs, 2)
	assert.True(t, gotArgs[0].Equal(state.Float(440.0)))
}

func TestRegistryNoHandler(t *testing.T) {
	r := NewHandlerRegistry()

	err := r.Dispatch("/nowhere", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoHandler))
	assert.True(t, errors.IsNotFound(err))
}

func TestRegistryRejectsInvalidRegistrations(t *testing.T) {
	r := NewHandlerRegistry()

	err := r.Register("", func(string, []state.Value) {})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	err = r.Register("/ok", nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegistryReplaceAndUnregister(t *testing.T) {
	r := NewHandlerRegistry()

	var hit string
	require.NoError(t, r.Register("/max/*", func(string, []state.Value) { hit = "old" }))
	require.NoError(t, r.Register("/max/*", func(string, []state.Value) { hit = "new" }))

	require.NoError(t, r.Dispatch("/max/x", nil))
	assert.Equal(t, "new", hit)
	assert.Len(t, r.Patterns(), 1)

	r.Unregister("/max/*")
	_, ok := r.Lookup("/max/x")
	assert.False(t, ok)
}

func TestRegistryClear(t *testing.T) {
	r := NewHandlerRegistry()
	require.NoError(t, r.Register("/a", func(string, []state.Value) {}))
	require.NoError(t, r.Register("/b/*", func(string, []state.Value) {}))

	r.Clear()
	assert.Empty(t, r.Patterns())
}

func TestMessageValidate(t *testing.T) {
	valid := Message{Address: "/max/state", Args: []state.Value{state.Int(1)}}
	assert.NoError(t, valid.Validate())

	for _, addr := range []string{"", "max/state", "/max//state", "/max/"} {
		m := Message{Address: addr}
		err := m.Validate()
		require.Error(t, err, "address %q", addr)
		assert.True(t, errors.IsInvalid(err), "address %q", addr)
	}
}
