package statesync

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/maxbridge/config"
	"github.com/c360/maxbridge/state"
)

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()

	cfg := config.Default().Sync
	cfg.StoragePath = t.TempDir() + "/state.json"
	e := NewEngine(cfg, nil, nil, opts...)
	require.NoError(t, e.Initialize())
	t.Cleanup(e.Stop)
	return e
}

// addPatch seeds a patch through the normal change path.
func addPatch(t *testing.T, e *Engine, patchID, name string) {
	t.Helper()
	data := state.Object(map[string]state.Value{"name": state.String(name)})
	require.NoError(t, e.ProcessChange(state.CategoryPatch, state.EventCreated, patchID, data))
}

// addObject seeds an object with a type into the given patch.
func addObject(t *testing.T, e *Engine, patchID, objectID, typ string) {
	t.Helper()
	data := state.Object(map[string]state.Value{
		"patchId": state.String(patchID),
		"type":    state.String(typ),
	})
	require.NoError(t, e.ProcessChange(state.CategoryObject, state.EventCreated, objectID, data))
}

func TestEngineInitializeCreatesDefaultSession(t *testing.T) {
	e := newTestEngine(t)

	assert.NotEmpty(t, e.SessionID())

	resp, err := e.HandleSyncRequest("req-1", "globalSetting", "oscPort")
	require.NoError(t, err)
	assert.Contains(t, string(resp.Data), "7400")

	resp, err = e.HandleSyncRequest("req-2", "globalSetting", "sampling_rate")
	require.NoError(t, err)
	assert.Contains(t, string(resp.Data), "44100")
}

func TestEngineInitializeIdempotent(t *testing.T) {
	e := newTestEngine(t)

	id := e.SessionID()
	require.NoError(t, e.Initialize())
	assert.Equal(t, id, e.SessionID())
}

func TestEngineHistoryBound(t *testing.T) {
	cfg := config.Default().Sync
	e := NewEngine(cfg, nil, nil)
	require.NoError(t, e.Initialize())
	defer e.Stop()

	for i := 0; i <= 1000; i++ {
		data := state.Object(map[string]state.Value{"value": state.Int(int64(i))})
		require.NoError(t, e.ProcessChange(
			state.CategoryGlobalSetting, state.EventUpdated, fmt.Sprintf("setting-%d", i), data))
	}

	history := e.History()
	require.Len(t, history, 1000)

	// Oldest event dropped; the retained entries are the most recent 1000
	// in submission order.
	assert.Equal(t, "setting-1", history[0].ObjectID)
	assert.Equal(t, "setting-1000", history[999].ObjectID)
}

func TestEngineFailedChangeNotRecorded(t *testing.T) {
	e := newTestEngine(t)

	before := len(e.History())
	data := state.Object(map[string]state.Value{
		"patchId": state.String("missing"),
		"type":    state.String("cycle~"),
	})
	err := e.ProcessChange(state.CategoryObject, state.EventCreated, "obj-1", data)
	require.Error(t, err)
	assert.Len(t, e.History(), before)
}

func TestEngineNotifiesOnChange(t *testing.T) {
	var changes []state.StateChange
	e := newTestEngine(t, WithNotify(func(c state.StateChange) {
		changes = append(changes, c)
	}))

	addPatch(t, e, "patch-1", "Main")

	require.Len(t, changes, 1)
	assert.Equal(t, state.CategoryPatch, changes[0].Event.Category)
	assert.Equal(t, state.EventCreated, changes[0].Event.Type)
	assert.Equal(t, "patch-1", changes[0].Event.ObjectID)
	assert.Equal(t, "/max/state/patch/created", changes[0].OSCAddress())
}

func TestEngineSnapshot(t *testing.T) {
	e := newTestEngine(t)
	addPatch(t, e, "patch-1", "Main")

	snap, err := e.Snapshot()
	require.NoError(t, err)
	assert.Greater(t, snap.Timestamp, int64(0))
	assert.Contains(t, string(snap.State), `"patch-1"`)
	assert.Contains(t, string(snap.State), `"globalSettings"`)
}
