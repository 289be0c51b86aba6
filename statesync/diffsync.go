package statesync

import (
	"encoding/json"
	"sort"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/pkg/timestamp"
	"github.com/c360/maxbridge/state"
)

// Baselines older than this fall back to a full snapshot: diffing against
// a stale baseline is unbounded work for no bandwidth win.
const maxDiffAge = int64(24 * 60 * 60 * 1000) // 24h in milliseconds

// DiffSyncResponse answers a differential sync request. Type is either
// "full_snapshot" (Data holds the session) or "differential" (Data holds
// the flat change list).
type DiffSyncResponse struct {
	RequestID        string          `json:"requestId"`
	Type             string          `json:"type"`
	Data             json.RawMessage `json:"data"`
	BaseTimestamp    int64           `json:"baseTimestamp,omitempty"`
	CurrentTimestamp int64           `json:"currentTimestamp"`
	ChangeCount      int             `json:"changeCount,omitempty"`
}

// diffChange is one entry in the differential change list.
type diffChange struct {
	Category     string          `json:"category"`
	ID           string          `json:"id"`
	PatchID      string          `json:"patchId,omitempty"`
	LastModified int64           `json:"lastModified"`
	Data         json.RawMessage `json:"data"`
}

// HandleDiffSync returns the entities modified after the given baseline.
// A zero or older-than-24h baseline yields a full snapshot instead.
// Deletions since the baseline are not tracked; a client holding deleted
// entities only converges on the next full snapshot.
func (e *Engine) HandleDiffSync(requestID string, lastSyncTimestamp int64) (DiffSyncResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return DiffSyncResponse{}, errors.WrapFatal(errors.ErrNotStarted, "Engine", "HandleDiffSync",
			"no active session")
	}

	now := timestamp.Now()

	if lastSyncTimestamp == 0 || now-lastSyncTimestamp > maxDiffAge {
		data, err := json.Marshal(e.session)
		if err != nil {
			return DiffSyncResponse{}, errors.WrapIO(err, "Engine", "HandleDiffSync",
				"encode session snapshot")
		}
		if e.metrics != nil {
			e.metrics.FullSnapshots.Inc()
		}
		return DiffSyncResponse{
			RequestID:        requestID,
			Type:             "full_snapshot",
			Data:             data,
			CurrentTimestamp: now,
		}, nil
	}

	changes := make([]diffChange, 0)

	for _, patchID := range e.session.PatchIDs() {
		p, err := e.session.Patch(patchID)
		if err != nil {
			return DiffSyncResponse{}, err
		}
		if p.LastModified() <= lastSyncTimestamp {
			continue
		}

		change, err := newDiffChange("patch", p.ID(), "", p.LastModified(), p)
		if err != nil {
			return DiffSyncResponse{}, err
		}
		changes = append(changes, change)

		for _, objectID := range p.ObjectIDs() {
			obj, err := p.Object(objectID)
			if err != nil {
				return DiffSyncResponse{}, err
			}
			if obj.LastModified() <= lastSyncTimestamp {
				continue
			}
			change, err := newDiffChange("object", obj.ID(), patchID, obj.LastModified(), obj)
			if err != nil {
				return DiffSyncResponse{}, err
			}
			changes = append(changes, change)
		}

		for _, connID := range p.ConnectionIDs() {
			conn, err := p.Connection(connID)
			if err != nil {
				return DiffSyncResponse{}, err
			}
			if conn.LastModified() <= lastSyncTimestamp {
				continue
			}
			change, err := newDiffChange("connection", conn.ID(), patchID, conn.LastModified(), conn)
			if err != nil {
				return DiffSyncResponse{}, err
			}
			changes = append(changes, change)
		}
	}

	if gs := e.session.GlobalSettings(); gs.LastModified() > lastSyncTimestamp {
		change, err := newDiffChange("global_setting", "all", "", gs.LastModified(), gs)
		if err != nil {
			return DiffSyncResponse{}, err
		}
		changes = append(changes, change)
	}

	data, err := json.Marshal(changes)
	if err != nil {
		return DiffSyncResponse{}, errors.WrapIO(err, "Engine", "HandleDiffSync",
			"encode change list")
	}
	if e.metrics != nil {
		e.metrics.DiffOperations.Add(float64(len(changes)))
	}

	return DiffSyncResponse{
		RequestID:        requestID,
		Type:             "differential",
		Data:             data,
		BaseTimestamp:    lastSyncTimestamp,
		CurrentTimestamp: now,
		ChangeCount:      len(changes),
	}, nil
}

func newDiffChange(category, id, patchID string, lastModified int64, entity any) (diffChange, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return diffChange{}, errors.WrapIO(err, "Engine", "newDiffChange", "encode entity")
	}
	return diffChange{
		Category:     category,
		ID:           id,
		PatchID:      patchID,
		LastModified: lastModified,
		Data:         data,
	}, nil
}

// ComputeStateDiff recursively compares two snapshots and returns the
// operations that transform base into current. Type mismatches and
// unequal arrays or primitives become whole-value Replace entries; object
// fields are compared key by key with added keys as Add, missing keys as
// Remove, and shared keys recursed into.
func ComputeStateDiff(base, current state.Value) []state.StateDiff {
	var diffs []state.StateDiff
	compareValues(base, current, "", &diffs)
	return diffs
}

func compareValues(base, current state.Value, path string, diffs *[]state.StateDiff) {
	if base.Kind() != current.Kind() {
		*diffs = append(*diffs, state.StateDiff{
			Operation: state.DiffReplace, Path: path, Value: current,
		})
		return
	}

	switch current.Kind() {
	case state.KindObject:
		currentObj, _ := current.AsObject()
		baseObj, _ := base.AsObject()

		for _, key := range sortedKeys(currentObj) {
			childPath := joinPath(path, key)
			if baseChild, ok := baseObj[key]; ok {
				compareValues(baseChild, currentObj[key], childPath, diffs)
			} else {
				*diffs = append(*diffs, state.StateDiff{
					Operation: state.DiffAdd, Path: childPath, Value: currentObj[key],
				})
			}
		}
		for _, key := range sortedKeys(baseObj) {
			if _, ok := currentObj[key]; !ok {
				*diffs = append(*diffs, state.StateDiff{
					Operation: state.DiffRemove, Path: joinPath(path, key),
				})
			}
		}

	default:
		// Arrays and primitives: whole-value replacement when unequal.
		if !base.Equal(current) {
			*diffs = append(*diffs, state.StateDiff{
				Operation: state.DiffReplace, Path: path, Value: current,
			})
		}
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "/" + key
}

func sortedKeys(m map[string]state.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
