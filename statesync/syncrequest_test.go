package statesync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/maxbridge/errors"
)

func TestSyncRequestFullSnapshot(t *testing.T) {
	e := newTestEngine(t)
	addPatch(t, e, "patch-1", "Main")

	resp, err := e.HandleSyncRequest("req-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "full", resp.Category)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &payload))
	assert.Equal(t, "full_snapshot", payload["type"])
	assert.Equal(t, e.SessionID(), payload["id"])
	assert.Len(t, payload["patches"], 1)
}

func TestSyncRequestSessionMetadata(t *testing.T) {
	e := newTestEngine(t)
	addPatch(t, e, "patch-1", "Main")

	resp, err := e.HandleSyncRequest("req", "session", "")
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &payload))
	assert.Equal(t, "session_metadata", payload["type"])
	assert.Equal(t, e.SessionID(), payload["id"])
	// Metadata only: no patch details.
	assert.NotContains(t, payload, "patches")
}

func TestSyncRequestAllPatches(t *testing.T) {
	e := newTestEngine(t)
	addPatch(t, e, "patch-1", "Main")
	addPatch(t, e, "patch-2", "Aux")

	for _, target := range []string{"", "all"} {
		resp, err := e.HandleSyncRequest("req", "patch", target)
		require.NoError(t, err)

		var payload struct {
			Type    string           `json:"type"`
			Patches []map[string]any `json:"patches"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &payload))
		assert.Equal(t, "all_patches", payload.Type)
		assert.Len(t, payload.Patches, 2)
	}
}

func TestSyncRequestAllObjectsCarryPatchContext(t *testing.T) {
	e := newTestEngine(t)
	addPatch(t, e, "patch-1", "Main")
	addObject(t, e, "patch-1", "obj-1", "cycle~")
	addObject(t, e, "patch-1", "obj-2", "gain~")

	resp, err := e.HandleSyncRequest("req", "object", "all")
	require.NoError(t, err)

	var payload struct {
		Type    string           `json:"type"`
		Objects []map[string]any `json:"objects"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &payload))
	assert.Equal(t, "all_objects", payload.Type)
	require.Len(t, payload.Objects, 2)
	for _, obj := range payload.Objects {
		assert.Equal(t, "patch-1", obj["patchId"])
	}
}

func TestSyncRequestParameterCompositeID(t *testing.T) {
	e := newTestEngine(t)

	// Bulk parameter sync is rejected.
	_, err := e.HandleSyncRequest("req", "parameter", "all")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	// Malformed composite ids.
	for _, bad := range []string{"noseparator", ".leading", "trailing."} {
		_, err := e.HandleSyncRequest("req", "parameter", bad)
		require.Error(t, err, "target %q", bad)
		assert.True(t, errors.IsInvalid(err), "target %q", bad)
	}
}

func TestSyncRequestNotFound(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		category string
		target   string
	}{
		{"patch", "ghost"},
		{"object", "ghost"},
		{"connection", "ghost"},
		{"globalSetting", "ghost"},
		{"parameter", "ghost.freq"},
	}
	for _, tt := range tests {
		_, err := e.HandleSyncRequest("req", tt.category, tt.target)
		require.Error(t, err, "category %s", tt.category)
		assert.True(t, errors.IsNotFound(err), "category %s", tt.category)
	}
}

func TestSyncRequestUnknownCategory(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.HandleSyncRequest("req", "bogus", "")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestNewSyncError(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.HandleSyncRequest("req-9", "patch", "ghost")
	require.Error(t, err)

	se := NewSyncError("req-9", "patch", "ghost", err)
	assert.Equal(t, "req-9", se.RequestID)
	assert.Equal(t, "patch", se.Category)
	assert.Equal(t, "ghost", se.TargetID)
	assert.Contains(t, se.Error, "patch")
}
