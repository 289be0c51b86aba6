package statesync

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/pkg/timestamp"
	"github.com/c360/maxbridge/state"
)

// SyncResponse answers one sync request. Data carries the entity payload
// whose shape depends on the request: a full snapshot, category metadata,
// an entity collection, or a single entity.
type SyncResponse struct {
	RequestID string          `json:"requestId"`
	Category  string          `json:"category"`
	TargetID  string          `json:"targetId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// SyncError is the structured error response for a failed sync request.
type SyncError struct {
	RequestID string `json:"requestId"`
	Category  string `json:"category"`
	TargetID  string `json:"targetId"`
	Error     string `json:"error"`
}

// NewSyncError builds the error response for a failed request.
func NewSyncError(requestID, category, targetID string, err error) SyncError {
	return SyncError{
		RequestID: requestID,
		Category:  category,
		TargetID:  targetID,
		Error:     err.Error(),
	}
}

// HandleSyncRequest answers a sync request. An empty category returns the
// full session snapshot; otherwise the category selects metadata, the
// whole collection (empty or "all" target), or one entity by id. A
// Parameter target is a composite "objectId.paramName" id, split on the
// first dot.
func (e *Engine) HandleSyncRequest(requestID, category, targetID string) (SyncResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return SyncResponse{}, errors.WrapFatal(errors.ErrNotStarted, "Engine", "HandleSyncRequest",
			"no active session")
	}

	var (
		payload map[string]any
		err     error
	)

	if category == "" {
		payload, err = e.fullSnapshotPayload()
	} else {
		var cat state.Category
		cat, err = state.ParseCategory(category)
		if err != nil {
			return SyncResponse{}, err
		}

		all := targetID == "" || targetID == "all"
		switch cat {
		case state.CategorySession:
			payload, err = e.sessionMetadataPayload()
		case state.CategoryPatch:
			if all {
				payload, err = e.allPatchesPayload()
			} else {
				payload, err = e.patchPayload(targetID)
			}
		case state.CategoryObject:
			if all {
				payload, err = e.allObjectsPayload()
			} else {
				payload, err = e.objectPayload(targetID)
			}
		case state.CategoryParameter:
			if all {
				err = errors.WrapInvalid(errors.ErrInvalidData, "Engine", "HandleSyncRequest",
					"parameters cannot be synced in bulk, request by object instead")
			} else {
				payload, err = e.parameterPayload(targetID)
			}
		case state.CategoryConnection:
			if all {
				payload, err = e.allConnectionsPayload()
			} else {
				payload, err = e.connectionPayload(targetID)
			}
		case state.CategoryGlobalSetting:
			if all {
				payload, err = e.allSettingsPayload()
			} else {
				payload, err = e.settingPayload(targetID)
			}
		}
	}
	if err != nil {
		return SyncResponse{}, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return SyncResponse{}, errors.WrapIO(err, "Engine", "HandleSyncRequest", "encode response")
	}

	responseCategory := category
	if responseCategory == "" {
		responseCategory = "full"
	}
	return SyncResponse{
		RequestID: requestID,
		Category:  responseCategory,
		TargetID:  targetID,
		Data:      data,
		Timestamp: timestamp.Now(),
	}, nil
}

func (e *Engine) fullSnapshotPayload() (map[string]any, error) {
	payload, err := entityPayload(e.session)
	if err != nil {
		return nil, err
	}
	payload["type"] = "full_snapshot"
	return payload, nil
}

func (e *Engine) sessionMetadataPayload() (map[string]any, error) {
	return map[string]any{
		"id":               e.session.ID(),
		"name":             e.session.Name(),
		"creationTime":     e.session.StartTime(),
		"lastModifiedTime": e.session.LastModified(),
		"type":             "session_metadata",
	}, nil
}

func (e *Engine) allPatchesPayload() (map[string]any, error) {
	patches := make([]map[string]any, 0, e.session.PatchCount())
	for _, id := range e.session.PatchIDs() {
		p, err := e.session.Patch(id)
		if err != nil {
			return nil, err
		}
		payload, err := entityPayload(p)
		if err != nil {
			return nil, err
		}
		patches = append(patches, payload)
	}
	return map[string]any{"patches": patches, "type": "all_patches"}, nil
}

func (e *Engine) patchPayload(patchID string) (map[string]any, error) {
	p, err := e.session.Patch(patchID)
	if err != nil {
		return nil, err
	}
	payload, err := entityPayload(p)
	if err != nil {
		return nil, err
	}
	payload["type"] = "patch"
	return payload, nil
}

func (e *Engine) allObjectsPayload() (map[string]any, error) {
	objects := make([]map[string]any, 0)
	for _, patchID := range e.session.PatchIDs() {
		p, err := e.session.Patch(patchID)
		if err != nil {
			return nil, err
		}
		for _, objectID := range p.ObjectIDs() {
			obj, err := p.Object(objectID)
			if err != nil {
				return nil, err
			}
			payload, err := entityPayload(obj)
			if err != nil {
				return nil, err
			}
			payload["patchId"] = patchID
			objects = append(objects, payload)
		}
	}
	return map[string]any{"objects": objects, "type": "all_objects"}, nil
}

func (e *Engine) objectPayload(objectID string) (map[string]any, error) {
	patch, obj, err := e.session.FindObject(objectID)
	if err != nil {
		return nil, err
	}
	payload, err := entityPayload(obj)
	if err != nil {
		return nil, err
	}
	payload["patchId"] = patch.ID()
	payload["type"] = "object"
	return payload, nil
}

func (e *Engine) parameterPayload(targetID string) (map[string]any, error) {
	dot := strings.Index(targetID, ".")
	if dot <= 0 || dot == len(targetID)-1 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Engine", "parameterPayload",
			fmt.Sprintf("parameter id %q not of the form objectId.paramName", targetID))
	}
	objectID := targetID[:dot]
	paramName := targetID[dot+1:]

	patch, obj, err := e.session.FindObject(objectID)
	if err != nil {
		return nil, err
	}
	param, err := obj.Parameter(paramName)
	if err != nil {
		return nil, err
	}
	payload, err := entityPayload(param)
	if err != nil {
		return nil, err
	}
	payload["objectId"] = objectID
	payload["patchId"] = patch.ID()
	payload["type"] = "parameter"
	return payload, nil
}

func (e *Engine) allConnectionsPayload() (map[string]any, error) {
	connections := make([]map[string]any, 0)
	for _, patchID := range e.session.PatchIDs() {
		p, err := e.session.Patch(patchID)
		if err != nil {
			return nil, err
		}
		for _, connID := range p.ConnectionIDs() {
			conn, err := p.Connection(connID)
			if err != nil {
				return nil, err
			}
			payload, err := entityPayload(conn)
			if err != nil {
				return nil, err
			}
			payload["patchId"] = patchID
			connections = append(connections, payload)
		}
	}
	return map[string]any{"connections": connections, "type": "all_connections"}, nil
}

func (e *Engine) connectionPayload(connectionID string) (map[string]any, error) {
	patch, conn, err := e.session.FindConnection(connectionID)
	if err != nil {
		return nil, err
	}
	payload, err := entityPayload(conn)
	if err != nil {
		return nil, err
	}
	payload["patchId"] = patch.ID()
	payload["type"] = "connection"
	return payload, nil
}

func (e *Engine) allSettingsPayload() (map[string]any, error) {
	payload, err := entityPayload(e.session.GlobalSettings())
	if err != nil {
		return nil, err
	}
	payload["type"] = "all_global_settings"
	return payload, nil
}

func (e *Engine) settingPayload(name string) (map[string]any, error) {
	value, err := e.session.GlobalSettings().Get(name)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"name":  name,
		"value": value,
		"type":  "global_setting",
	}, nil
}

// entityPayload round-trips an entity through its wire form into a
// generic map so response-level fields can be attached.
func entityPayload(entity any) (map[string]any, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, errors.WrapIO(err, "Engine", "entityPayload", "encode entity")
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.WrapIO(err, "Engine", "entityPayload", "decode entity")
	}
	return payload, nil
}
