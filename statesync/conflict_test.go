package statesync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/state"
)

func snapshotValue(sessionTime int64, patches ...state.Value) state.Value {
	return state.Object(map[string]state.Value{
		"id":               state.String("session-1"),
		"lastModifiedTime": state.Int(sessionTime),
		"patches":          state.Array(patches...),
	})
}

func patchValue(id, name string, lastModified int64) state.Value {
	return state.Object(map[string]state.Value{
		"id":               state.String(id),
		"name":             state.String(name),
		"lastModifiedTime": state.Int(lastModified),
	})
}

func TestTimestampRemoteSessionNewerWinsWholesale(t *testing.T) {
	local := snapshotValue(100, patchValue("p1", "local", 100))
	remote := snapshotValue(200, patchValue("p1", "remote", 200))

	resolved := ResolveConflicts(local, remote, ConflictTimestamp)
	assert.True(t, resolved.Equal(remote))
}

func TestTimestampPerPatchResolution(t *testing.T) {
	local := snapshotValue(300,
		patchValue("p1", "local-newer", 250),
		patchValue("p2", "local-older", 100),
	)
	remote := snapshotValue(300,
		patchValue("p1", "remote-older", 200),
		patchValue("p2", "remote-newer", 150),
	)

	resolved := ResolveConflicts(local, remote, ConflictTimestamp)
	patches, ok := arrayField(resolved, "patches")
	require.True(t, ok)
	require.Len(t, patches, 2)

	name1, _ := stringField(patches[0], "name")
	name2, _ := stringField(patches[1], "name")
	assert.Equal(t, "local-newer", name1)
	assert.Equal(t, "remote-newer", name2)
}

func TestTimestampTieKeepsLocal(t *testing.T) {
	local := snapshotValue(300, patchValue("p1", "local", 200))
	remote := snapshotValue(300, patchValue("p1", "remote", 200))

	resolved := ResolveConflicts(local, remote, ConflictTimestamp)
	patches, _ := arrayField(resolved, "patches")
	require.Len(t, patches, 1)
	name, _ := stringField(patches[0], "name")
	assert.Equal(t, "local", name)
}

func TestTimestampRemoteOnlyPatchMergedIn(t *testing.T) {
	local := snapshotValue(300, patchValue("p1", "local", 200))
	remote := snapshotValue(300,
		patchValue("p1", "remote", 100),
		patchValue("p2", "remote-only", 150),
	)

	resolved := ResolveConflicts(local, remote, ConflictTimestamp)
	patches, _ := arrayField(resolved, "patches")
	require.Len(t, patches, 2)

	id2, _ := stringField(patches[1], "id")
	assert.Equal(t, "p2", id2)
}

func TestTimestampGlobalSettingsByModificationTime(t *testing.T) {
	newerSettings := state.Object(map[string]state.Value{
		"settings":         state.Object(map[string]state.Value{"oscPort": state.Int(9000)}),
		"lastModifiedTime": state.Int(400),
	})
	olderSettings := state.Object(map[string]state.Value{
		"settings":         state.Object(map[string]state.Value{"oscPort": state.Int(7400)}),
		"lastModifiedTime": state.Int(100),
	})

	local := state.Object(map[string]state.Value{
		"lastModifiedTime": state.Int(500),
		"globalSettings":   olderSettings,
	})
	remote := state.Object(map[string]state.Value{
		"lastModifiedTime": state.Int(500),
		"globalSettings":   newerSettings,
	})

	resolved := ResolveConflicts(local, remote, ConflictTimestamp)
	settings, ok := resolved.Field("globalSettings")
	require.True(t, ok)
	assert.True(t, settings.Equal(newerSettings))
}

func TestPriorityRemoteSettingsWinUnconditionally(t *testing.T) {
	localSettings := state.Object(map[string]state.Value{
		"settings":         state.Object(map[string]state.Value{"oscPort": state.Int(7400)}),
		"lastModifiedTime": state.Int(900),
	})
	remoteSettings := state.Object(map[string]state.Value{
		"settings":         state.Object(map[string]state.Value{"oscPort": state.Int(9000)}),
		"lastModifiedTime": state.Int(100),
	})

	local := state.Object(map[string]state.Value{
		"patches":        state.Array(patchValue("p1", "local", 900)),
		"globalSettings": localSettings,
	})
	remote := state.Object(map[string]state.Value{
		"patches":        state.Array(patchValue("p1", "remote", 100)),
		"globalSettings": remoteSettings,
	})

	resolved := ResolveConflicts(local, remote, ConflictPriority)

	// Settings favor remote even though local is newer.
	settings, _ := resolved.Field("globalSettings")
	assert.True(t, settings.Equal(remoteSettings))

	// Patch conflicts without priority fields keep local.
	patches, _ := arrayField(resolved, "patches")
	require.Len(t, patches, 1)
	name, _ := stringField(patches[0], "name")
	assert.Equal(t, "local", name)
}

func TestPriorityFieldsCompared(t *testing.T) {
	withPriority := func(v state.Value, priority int64) state.Value {
		obj := copyObject(v)
		obj["priority"] = state.Int(priority)
		return state.Object(obj)
	}

	local := state.Object(map[string]state.Value{
		"patches": state.Array(withPriority(patchValue("p1", "local", 0), 1)),
	})
	remote := state.Object(map[string]state.Value{
		"patches": state.Array(
			withPriority(patchValue("p1", "remote", 0), 5),
			patchValue("p2", "remote-only", 0),
		),
	})

	resolved := ResolveConflicts(local, remote, ConflictPriority)
	patches, _ := arrayField(resolved, "patches")
	require.Len(t, patches, 2)

	name1, _ := stringField(patches[0], "name")
	assert.Equal(t, "remote", name1)
	name2, _ := stringField(patches[1], "name")
	assert.Equal(t, "remote-only", name2)
}

func TestPriorityTopLevelRemoteWins(t *testing.T) {
	local := state.Object(map[string]state.Value{"priority": state.Int(1)})
	remote := state.Object(map[string]state.Value{"priority": state.Int(2)})

	resolved := ResolveConflicts(local, remote, ConflictPriority)
	assert.True(t, resolved.Equal(remote))
}

func TestParseConflictStrategy(t *testing.T) {
	s, err := ParseConflictStrategy("timestamp")
	require.NoError(t, err)
	assert.Equal(t, ConflictTimestamp, s)

	s, err = ParseConflictStrategy("priority")
	require.NoError(t, err)
	assert.Equal(t, ConflictPriority, s)

	_, err = ParseConflictStrategy("coin-flip")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestResolveRemoteStateReplacesSession(t *testing.T) {
	e := newTestEngine(t)
	addPatch(t, e, "patch-1", "Local")

	// Millisecond clock: make the remote session strictly newer.
	time.Sleep(2 * time.Millisecond)
	remote := state.NewSession("session-remote", "Remote")
	remote.AddPatch(state.NewPatch("patch-9", "RemotePatch", ""))
	remoteValue, err := valueOf(remote)
	require.NoError(t, err)

	// Remote was created after the local session, so the timestamp
	// policy takes it wholesale.
	require.NoError(t, e.ResolveRemoteState(remoteValue))
	assert.Equal(t, "session-remote", e.SessionID())
}
