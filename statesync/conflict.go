package statesync

import (
	"encoding/json"
	"fmt"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/state"
)

// ConflictStrategy selects how two diverged snapshots are reconciled.
type ConflictStrategy int

const (
	// ConflictTimestamp prefers the side with the greater lastModifiedTime,
	// at the session level first and then patch by patch.
	ConflictTimestamp ConflictStrategy = iota
	// ConflictPriority compares explicit priority fields where present.
	// Remote global settings win unconditionally; patch conflicts without
	// priority fields keep the local copy. The asymmetry is deliberate.
	ConflictPriority
)

// String returns the wire name of the strategy.
func (s ConflictStrategy) String() string {
	switch s {
	case ConflictTimestamp:
		return "timestamp"
	case ConflictPriority:
		return "priority"
	default:
		return "unknown"
	}
}

// ParseConflictStrategy converts a wire name back to a ConflictStrategy.
func ParseConflictStrategy(s string) (ConflictStrategy, error) {
	switch s {
	case "timestamp":
		return ConflictTimestamp, nil
	case "priority":
		return ConflictPriority, nil
	default:
		return 0, errors.WrapInvalid(errors.ErrInvalidData, "ConflictStrategy", "ParseConflictStrategy",
			fmt.Sprintf("unknown strategy %q", s))
	}
}

// ResolveConflicts reconciles two session snapshots and returns the
// resolved snapshot. Entities present on only one side are always kept;
// resolution never drops a patch.
func ResolveConflicts(local, remote state.Value, strategy ConflictStrategy) state.Value {
	switch strategy {
	case ConflictTimestamp:
		return resolveByTimestamp(local, remote)
	case ConflictPriority:
		return resolveByPriority(local, remote)
	default:
		return local
	}
}

func resolveByTimestamp(local, remote state.Value) state.Value {
	localTime, okLocal := intField(local, "lastModifiedTime")
	remoteTime, okRemote := intField(remote, "lastModifiedTime")
	if okLocal && okRemote && remoteTime > localTime {
		// Remote session is newer as a whole.
		return remote
	}

	resolved := copyObject(local)

	mergePatches(resolved, local, remote, func(localPatch, remotePatch state.Value) bool {
		lt, okL := intField(localPatch, "lastModifiedTime")
		rt, okR := intField(remotePatch, "lastModifiedTime")
		// Ties keep local.
		return okL && okR && rt > lt
	})

	localSettings, okLS := local.Field("globalSettings")
	remoteSettings, okRS := remote.Field("globalSettings")
	if okLS && okRS {
		lt, okL := intField(localSettings, "lastModifiedTime")
		rt, okR := intField(remoteSettings, "lastModifiedTime")
		if okL && okR && rt > lt {
			resolved["globalSettings"] = remoteSettings
		}
	}

	return state.Object(resolved)
}

func resolveByPriority(local, remote state.Value) state.Value {
	localPriority, okLocal := intField(local, "priority")
	remotePriority, okRemote := intField(remote, "priority")
	if okLocal && okRemote && remotePriority > localPriority {
		return remote
	}

	resolved := copyObject(local)

	mergePatches(resolved, local, remote, func(localPatch, remotePatch state.Value) bool {
		lp, okL := intField(localPatch, "priority")
		rp, okR := intField(remotePatch, "priority")
		// Without explicit priorities the local copy stands.
		return okL && okR && rp > lp
	})

	// Remote settings always win under this scheme, regardless of time.
	if remoteSettings, ok := remote.Field("globalSettings"); ok {
		resolved["globalSettings"] = remoteSettings
	}

	return state.Object(resolved)
}

// mergePatches walks the remote patch list: conflicting ids are replaced
// in place when remoteWins says so, remote-only patches are appended.
func mergePatches(resolved map[string]state.Value, local, remote state.Value, remoteWins func(localPatch, remotePatch state.Value) bool) {
	localPatches, okLocal := arrayField(local, "patches")
	remotePatches, okRemote := arrayField(remote, "patches")
	if !okLocal || !okRemote {
		return
	}

	merged := make([]state.Value, len(localPatches))
	copy(merged, localPatches)

	for _, remotePatch := range remotePatches {
		remoteID, ok := stringField(remotePatch, "id")
		if !ok {
			continue
		}

		found := false
		for i, localPatch := range merged {
			localID, _ := stringField(localPatch, "id")
			if localID != remoteID {
				continue
			}
			if remoteWins(localPatch, remotePatch) {
				merged[i] = remotePatch
			}
			found = true
			break
		}
		if !found {
			merged = append(merged, remotePatch)
		}
	}

	resolved["patches"] = state.Array(merged...)
}

// ResolveRemoteState reconciles a remote snapshot against the live
// session using the configured conflict policy and installs the result.
func (e *Engine) ResolveRemoteState(remote state.Value) error {
	strategy, err := ParseConflictStrategy(e.cfg.ConflictPolicy)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return errors.WrapFatal(errors.ErrNotStarted, "Engine", "ResolveRemoteState",
			"no active session")
	}

	local, err := valueOf(e.session)
	if err != nil {
		return err
	}

	resolved := ResolveConflicts(local, remote, strategy)
	replacement, err := sessionFromValue(resolved)
	if err != nil {
		return errors.Wrap(err, "Engine", "ResolveRemoteState", "decode resolved session")
	}
	e.session = replacement

	if e.metrics != nil {
		winner := "local"
		if resolved.Equal(remote) {
			winner = "remote"
		} else if !resolved.Equal(local) {
			winner = "merged"
		}
		e.metrics.ConflictsResolved.WithLabelValues(winner).Inc()
	}

	e.logger.Info("remote state resolved", "strategy", strategy.String(),
		"session", e.session.ID())
	return nil
}

func arrayField(v state.Value, name string) ([]state.Value, bool) {
	f, ok := v.Field(name)
	if !ok {
		return nil, false
	}
	return f.AsArray()
}

func copyObject(v state.Value) map[string]state.Value {
	obj, ok := v.AsObject()
	if !ok {
		return map[string]state.Value{}
	}
	out := make(map[string]state.Value, len(obj))
	for k, val := range obj {
		out[k] = val
	}
	return out
}

// valueOf round-trips an entity through JSON into a Value snapshot.
func valueOf(entity any) (state.Value, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return state.Value{}, errors.WrapIO(err, "Engine", "valueOf", "encode entity")
	}
	var v state.Value
	if err := json.Unmarshal(data, &v); err != nil {
		return state.Value{}, errors.WrapIO(err, "Engine", "valueOf", "decode entity")
	}
	return v, nil
}
