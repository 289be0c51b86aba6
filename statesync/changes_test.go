package statesync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/state"
)

func TestObjectCreatedInExistingPatch(t *testing.T) {
	e := newTestEngine(t)
	addPatch(t, e, "patch-1", "Main")

	data := state.Object(map[string]state.Value{
		"patchId": state.String("patch-1"),
		"type":    state.String("cycle~"),
		"position": state.Object(map[string]state.Value{
			"x": state.Float(100),
			"y": state.Float(150),
		}),
	})
	require.NoError(t, e.ProcessChange(state.CategoryObject, state.EventCreated, "obj-1", data))

	resp, err := e.HandleSyncRequest("req", "object", "obj-1")
	require.NoError(t, err)

	var obj struct {
		Type     string `json:"type"`
		PatchID  string `json:"patchId"`
		Position struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"position"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &obj))
	assert.Equal(t, "cycle~", obj.Type)
	assert.Equal(t, "patch-1", obj.PatchID)
	assert.Equal(t, 100.0, obj.Position.X)
	assert.Equal(t, 150.0, obj.Position.Y)
}

func TestObjectCreatedMissingPatchFails(t *testing.T) {
	e := newTestEngine(t)

	data := state.Object(map[string]state.Value{
		"patchId": state.String("patch-1"),
		"type":    state.String("cycle~"),
	})
	err := e.ProcessChange(state.CategoryObject, state.EventCreated, "obj-1", data)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPatchNotFound)

	// Session untouched: the object must not exist anywhere.
	_, err = e.HandleSyncRequest("req", "object", "obj-1")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestObjectCreatedMissingTypeFails(t *testing.T) {
	e := newTestEngine(t)
	addPatch(t, e, "patch-1", "Main")

	data := state.Object(map[string]state.Value{
		"patchId": state.String("patch-1"),
	})
	err := e.ProcessChange(state.CategoryObject, state.EventCreated, "obj-1", data)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestObjectMoveAndResize(t *testing.T) {
	e := newTestEngine(t)
	addPatch(t, e, "patch-1", "Main")
	addObject(t, e, "patch-1", "obj-1", "gain~")

	move := state.Object(map[string]state.Value{
		"patchId": state.String("patch-1"),
		"position": state.Object(map[string]state.Value{
			"x": state.Float(10), "y": state.Float(20),
		}),
	})
	require.NoError(t, e.ProcessChange(state.CategoryObject, state.EventMoved, "obj-1", move))

	resize := state.Object(map[string]state.Value{
		"patchId": state.String("patch-1"),
		"size": state.Object(map[string]state.Value{
			"width": state.Float(80), "height": state.Float(30),
		}),
	})
	require.NoError(t, e.ProcessChange(state.CategoryObject, state.EventResized, "obj-1", resize))

	// Move without position data is invalid.
	noPos := state.Object(map[string]state.Value{"patchId": state.String("patch-1")})
	err := e.ProcessChange(state.CategoryObject, state.EventMoved, "obj-1", noPos)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	resp, err := e.HandleSyncRequest("req", "object", "obj-1")
	require.NoError(t, err)
	assert.Contains(t, string(resp.Data), `"x":10`)
	assert.Contains(t, string(resp.Data), `"width":80`)
}

func TestObjectDeleteIdempotent(t *testing.T) {
	e := newTestEngine(t)
	addPatch(t, e, "patch-1", "Main")
	addObject(t, e, "patch-1", "obj-1", "gain~")

	data := state.Object(map[string]state.Value{"patchId": state.String("patch-1")})
	require.NoError(t, e.ProcessChange(state.CategoryObject, state.EventDeleted, "obj-1", data))
	// Second delete is a no-op, not an error.
	require.NoError(t, e.ProcessChange(state.CategoryObject, state.EventDeleted, "obj-1", data))
}

func TestPatchLifecycle(t *testing.T) {
	e := newTestEngine(t)

	create := state.Object(map[string]state.Value{
		"name": state.String("Main"),
		"path": state.String("/tmp/main.maxpat"),
	})
	require.NoError(t, e.ProcessChange(state.CategoryPatch, state.EventCreated, "patch-1", create))

	update := state.Object(map[string]state.Value{
		"name":       state.String("Renamed"),
		"isModified": state.Bool(true),
	})
	require.NoError(t, e.ProcessChange(state.CategoryPatch, state.EventUpdated, "patch-1", update))

	resp, err := e.HandleSyncRequest("req", "patch", "patch-1")
	require.NoError(t, err)
	assert.Contains(t, string(resp.Data), `"Renamed"`)
	assert.Contains(t, string(resp.Data), `"isModified":true`)

	require.NoError(t, e.ProcessChange(state.CategoryPatch, state.EventDeleted, "patch-1", state.Object(nil)))
	_, err = e.HandleSyncRequest("req", "patch", "patch-1")
	assert.ErrorIs(t, err, errors.ErrPatchNotFound)
}

func TestPatchCreatedMissingNameFails(t *testing.T) {
	e := newTestEngine(t)

	err := e.ProcessChange(state.CategoryPatch, state.EventCreated, "patch-1", state.Object(nil))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestParameterUpsert(t *testing.T) {
	e := newTestEngine(t)
	addPatch(t, e, "patch-1", "Main")
	addObject(t, e, "patch-1", "osc-1", "cycle~")

	// First change creates the parameter.
	create := state.Object(map[string]state.Value{
		"patchId":  state.String("patch-1"),
		"objectId": state.String("osc-1"),
		"name":     state.String("frequency"),
		"value":    state.Float(440.0),
		"type":     state.String("float"),
	})
	require.NoError(t, e.ProcessChange(state.CategoryParameter, state.EventParamChanged, "osc-1", create))

	// Second change updates it in place.
	update := state.Object(map[string]state.Value{
		"patchId":  state.String("patch-1"),
		"objectId": state.String("osc-1"),
		"name":     state.String("frequency"),
		"value":    state.Float(880.0),
	})
	require.NoError(t, e.ProcessChange(state.CategoryParameter, state.EventParamChanged, "osc-1", update))

	resp, err := e.HandleSyncRequest("req", "parameter", "osc-1.frequency")
	require.NoError(t, err)
	assert.Contains(t, string(resp.Data), "880.0")
	assert.Contains(t, string(resp.Data), `"float"`)
}

func TestParameterReadOnlyRejected(t *testing.T) {
	e := newTestEngine(t)
	addPatch(t, e, "patch-1", "Main")
	addObject(t, e, "patch-1", "osc-1", "cycle~")

	create := state.Object(map[string]state.Value{
		"patchId":    state.String("patch-1"),
		"objectId":   state.String("osc-1"),
		"name":       state.String("id"),
		"value":      state.String("fixed"),
		"isReadOnly": state.Bool(true),
	})
	require.NoError(t, e.ProcessChange(state.CategoryParameter, state.EventParamChanged, "osc-1", create))

	update := state.Object(map[string]state.Value{
		"patchId":  state.String("patch-1"),
		"objectId": state.String("osc-1"),
		"name":     state.String("id"),
		"value":    state.String("changed"),
	})
	err := e.ProcessChange(state.CategoryParameter, state.EventParamChanged, "osc-1", update)
	require.Error(t, err)
	assert.True(t, errors.IsPermission(err))
}

func TestConnectionLifecycle(t *testing.T) {
	e := newTestEngine(t)
	addPatch(t, e, "patch-1", "Main")

	connect := state.Object(map[string]state.Value{
		"patchId":          state.String("patch-1"),
		"sourceId":         state.String("osc-1"),
		"sourceOutlet":     state.Int(0),
		"destinationId":    state.String("dac-1"),
		"destinationInlet": state.Int(1),
	})
	require.NoError(t, e.ProcessChange(state.CategoryConnection, state.EventConnected, "conn-1", connect))

	resp, err := e.HandleSyncRequest("req", "connection", "conn-1")
	require.NoError(t, err)
	assert.Contains(t, string(resp.Data), `"sourceId":"osc-1"`)
	assert.Contains(t, string(resp.Data), `"destinationInlet":1`)

	disconnect := state.Object(map[string]state.Value{"patchId": state.String("patch-1")})
	require.NoError(t, e.ProcessChange(state.CategoryConnection, state.EventDisconnected, "conn-1", disconnect))
	_, err = e.HandleSyncRequest("req", "connection", "conn-1")
	assert.ErrorIs(t, err, errors.ErrConnectionNotFound)
}

func TestConnectionMissingEndpointsFails(t *testing.T) {
	e := newTestEngine(t)
	addPatch(t, e, "patch-1", "Main")

	partial := state.Object(map[string]state.Value{
		"patchId":  state.String("patch-1"),
		"sourceId": state.String("osc-1"),
	})
	err := e.ProcessChange(state.CategoryConnection, state.EventConnected, "conn-1", partial)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestGlobalSettingUpdateAndDelete(t *testing.T) {
	e := newTestEngine(t)

	update := state.Object(map[string]state.Value{"value": state.Int(48000)})
	require.NoError(t, e.ProcessChange(state.CategoryGlobalSetting, state.EventUpdated, "sampling_rate", update))

	resp, err := e.HandleSyncRequest("req", "globalSetting", "sampling_rate")
	require.NoError(t, err)
	assert.Contains(t, string(resp.Data), "48000")

	require.NoError(t, e.ProcessChange(state.CategoryGlobalSetting, state.EventDeleted, "sampling_rate", state.Object(nil)))
	_, err = e.HandleSyncRequest("req", "globalSetting", "sampling_rate")
	assert.ErrorIs(t, err, errors.ErrSettingNotFound)
}

func TestSessionRename(t *testing.T) {
	e := newTestEngine(t)

	data := state.Object(map[string]state.Value{"name": state.String("Live Set")})
	require.NoError(t, e.ProcessChange(state.CategorySession, state.EventUpdated, e.SessionID(), data))

	resp, err := e.HandleSyncRequest("req", "session", "")
	require.NoError(t, err)
	assert.Contains(t, string(resp.Data), `"Live Set"`)
}

func TestSessionEventForOtherSessionIgnored(t *testing.T) {
	e := newTestEngine(t)

	before := len(e.History())
	data := state.Object(map[string]state.Value{"name": state.String("Other")})
	require.NoError(t, e.ProcessChange(state.CategorySession, state.EventUpdated, "someone-else", data))

	// Dropped without mutation or history recording.
	assert.Len(t, e.History(), before)
	resp, err := e.HandleSyncRequest("req", "session", "")
	require.NoError(t, err)
	assert.NotContains(t, string(resp.Data), `"Other"`)
}

func TestSessionStateChangedReplacesSession(t *testing.T) {
	e := newTestEngine(t)
	oldID := e.SessionID()

	replacement := state.NewSession("session-new", "Imported")
	snapshot, err := valueOf(replacement)
	require.NoError(t, err)

	data := state.Object(map[string]state.Value{"state": snapshot})
	require.NoError(t, e.ProcessChange(state.CategorySession, state.EventStateChanged, oldID, data))

	assert.Equal(t, "session-new", e.SessionID())
}

func TestProcessStateChangeParsesWireNames(t *testing.T) {
	e := newTestEngine(t)

	data := state.Object(map[string]state.Value{"name": state.String("Main")})
	require.NoError(t, e.ProcessStateChange("patch", "created", "patch-1", data))

	err := e.ProcessStateChange("bogus", "created", "x", state.Object(nil))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	err = e.ProcessStateChange("patch", "bogus", "x", state.Object(nil))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
