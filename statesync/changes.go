package statesync

import (
	"encoding/json"
	"fmt"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/state"
)

// errIgnored marks a change that targets another session and is dropped
// without mutation or history recording.
var errIgnored = errors.New("change ignored")

// ProcessStateChange parses the wire names and applies the change.
func (e *Engine) ProcessStateChange(category, eventType, objectID string, data state.Value) error {
	cat, err := state.ParseCategory(category)
	if err != nil {
		return err
	}
	evt, err := state.ParseEventType(eventType)
	if err != nil {
		return err
	}
	return e.ProcessChange(cat, evt, objectID, data)
}

// ProcessChange applies one typed change event to the model. On success
// the event is appended to history and the change notification fires;
// failures leave the model untouched.
func (e *Engine) ProcessChange(cat state.Category, evt state.EventType, objectID string, data state.Value) error {
	event := state.NewStateEvent(cat, evt, objectID, data, 0)

	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return errors.WrapFatal(errors.ErrNotStarted, "Engine", "ProcessChange",
			"no active session")
	}

	var err error
	switch cat {
	case state.CategorySession:
		err = e.applySessionChange(evt, objectID, data)
	case state.CategoryPatch:
		err = e.applyPatchChange(evt, objectID, data)
	case state.CategoryObject:
		err = e.applyObjectChange(evt, objectID, data)
	case state.CategoryParameter:
		err = e.applyParameterChange(evt, objectID, data)
	case state.CategoryConnection:
		err = e.applyConnectionChange(evt, objectID, data)
	case state.CategoryGlobalSetting:
		err = e.applyGlobalSettingChange(evt, objectID, data)
	default:
		err = errors.WrapInvalid(errors.ErrInvalidData, "Engine", "ProcessChange",
			fmt.Sprintf("category %d", int(cat)))
	}
	e.mu.Unlock()

	if errors.Is(err, errIgnored) {
		return nil
	}
	if err != nil {
		return err
	}

	e.recordEvent(event)
	return nil
}

// applySessionChange handles session-level events. Events addressed to a
// different session id are dropped, not failed.
func (e *Engine) applySessionChange(evt state.EventType, sessionID string, data state.Value) error {
	if sessionID != e.session.ID() {
		return errIgnored
	}

	switch evt {
	case state.EventUpdated:
		if name, ok := stringField(data, "name"); ok {
			e.session.SetName(name)
		}
		return nil

	case state.EventStateChanged:
		// Whole-session replacement from an embedded snapshot.
		snapshot, ok := data.Field("state")
		if !ok {
			return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applySessionChange",
				"missing field 'state'")
		}
		replacement, err := sessionFromValue(snapshot)
		if err != nil {
			return err
		}
		e.session = replacement
		return nil

	default:
		return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applySessionChange",
			fmt.Sprintf("event %q not valid for sessions", evt))
	}
}

func (e *Engine) applyPatchChange(evt state.EventType, patchID string, data state.Value) error {
	switch evt {
	case state.EventCreated:
		name, ok := stringField(data, "name")
		if !ok {
			return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applyPatchChange",
				"missing field 'name'")
		}
		path, _ := stringField(data, "path")
		e.session.AddPatch(state.NewPatch(patchID, name, path))
		return nil

	case state.EventUpdated:
		p, err := e.session.Patch(patchID)
		if err != nil {
			return err
		}
		if name, ok := stringField(data, "name"); ok {
			p.SetName(name)
		}
		if path, ok := stringField(data, "path"); ok {
			p.SetPath(path)
		}
		if modified, ok := boolField(data, "isModified"); ok {
			p.SetModified(modified)
		}
		return nil

	case state.EventDeleted:
		// Deleting an absent patch is a no-op so deletes are idempotent.
		if e.session.HasPatch(patchID) {
			return e.session.RemovePatch(patchID)
		}
		return nil

	default:
		return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applyPatchChange",
			fmt.Sprintf("event %q not valid for patches", evt))
	}
}

func (e *Engine) applyObjectChange(evt state.EventType, objectID string, data state.Value) error {
	patch, err := e.patchFromData(data, "applyObjectChange")
	if err != nil {
		return err
	}

	switch evt {
	case state.EventCreated:
		typ, ok := stringField(data, "type")
		if !ok {
			return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applyObjectChange",
				"missing field 'type'")
		}
		obj := state.NewMaxObject(objectID, typ)
		if pos, ok := positionField(data); ok {
			obj.SetPosition(pos)
		}
		if size, ok := sizeField(data); ok {
			obj.SetSize(size)
		}
		inlets, _ := intField(data, "inlets")
		outlets, _ := intField(data, "outlets")
		if inlets != 0 || outlets != 0 {
			obj.SetPorts(int(inlets), int(outlets))
		}
		if params, ok := data.Field("parameters"); ok {
			elems, isArr := params.AsArray()
			if !isArr {
				return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applyObjectChange",
					"field 'parameters' is not an array")
			}
			for _, elem := range elems {
				p, err := parameterFromValue(elem)
				if err != nil {
					return err
				}
				obj.AddParameter(p)
			}
		}
		patch.AddObject(obj)
		return nil

	case state.EventUpdated:
		obj, err := patch.Object(objectID)
		if err != nil {
			return err
		}
		if pos, ok := positionField(data); ok {
			obj.SetPosition(pos)
		}
		if size, ok := sizeField(data); ok {
			obj.SetSize(size)
		}
		patch.MarkModified()
		return nil

	case state.EventMoved:
		obj, err := patch.Object(objectID)
		if err != nil {
			return err
		}
		pos, ok := positionField(data)
		if !ok {
			return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applyObjectChange",
				"missing position for move")
		}
		obj.SetPosition(pos)
		patch.MarkModified()
		return nil

	case state.EventResized:
		obj, err := patch.Object(objectID)
		if err != nil {
			return err
		}
		size, ok := sizeField(data)
		if !ok {
			return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applyObjectChange",
				"missing size for resize")
		}
		obj.SetSize(size)
		patch.MarkModified()
		return nil

	case state.EventDeleted:
		if patch.HasObject(objectID) {
			return patch.RemoveObject(objectID)
		}
		return nil

	default:
		return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applyObjectChange",
			fmt.Sprintf("event %q not valid for objects", evt))
	}
}

func (e *Engine) applyParameterChange(evt state.EventType, _ string, data state.Value) error {
	patch, err := e.patchFromData(data, "applyParameterChange")
	if err != nil {
		return err
	}
	objectID, ok := stringField(data, "objectId")
	if !ok {
		return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applyParameterChange",
			"missing field 'objectId'")
	}
	obj, err := patch.Object(objectID)
	if err != nil {
		return err
	}

	switch evt {
	case state.EventParamChanged:
		name, ok := stringField(data, "name")
		if !ok {
			return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applyParameterChange",
				"missing field 'name'")
		}
		value, ok := data.Field("value")
		if !ok {
			return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applyParameterChange",
				"missing field 'value'")
		}

		// Upsert: unknown parameters are created with optional type and
		// read-only flag, existing ones are updated in place.
		if !obj.HasParameter(name) {
			typ, hasType := stringField(data, "type")
			if !hasType {
				typ = "any"
			}
			readOnly, _ := boolField(data, "isReadOnly")
			obj.AddParameter(state.NewParameter(name, value, typ, readOnly))
			patch.MarkModified()
			return nil
		}
		if err := obj.UpdateParameter(name, value); err != nil {
			return err
		}
		patch.MarkModified()
		return nil

	default:
		return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applyParameterChange",
			fmt.Sprintf("event %q not valid for parameters", evt))
	}
}

func (e *Engine) applyConnectionChange(evt state.EventType, connectionID string, data state.Value) error {
	patch, err := e.patchFromData(data, "applyConnectionChange")
	if err != nil {
		return err
	}

	switch evt {
	case state.EventConnected:
		sourceID, okSrc := stringField(data, "sourceId")
		sourceOutlet, okSrcOut := intField(data, "sourceOutlet")
		destID, okDst := stringField(data, "destinationId")
		destInlet, okDstIn := intField(data, "destinationInlet")
		if !okSrc || !okSrcOut || !okDst || !okDstIn {
			return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applyConnectionChange",
				"missing connection endpoint fields")
		}
		patch.AddConnection(state.NewConnection(
			connectionID, sourceID, int(sourceOutlet), destID, int(destInlet)))
		return nil

	case state.EventDisconnected:
		if patch.HasConnection(connectionID) {
			return patch.RemoveConnection(connectionID)
		}
		return nil

	default:
		return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applyConnectionChange",
			fmt.Sprintf("event %q not valid for connections", evt))
	}
}

func (e *Engine) applyGlobalSettingChange(evt state.EventType, settingName string, data state.Value) error {
	switch evt {
	case state.EventUpdated:
		value, ok := data.Field("value")
		if !ok {
			return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applyGlobalSettingChange",
				"missing field 'value'")
		}
		e.session.GlobalSettings().Set(settingName, value)
		return nil

	case state.EventDeleted:
		return e.session.GlobalSettings().Remove(settingName)

	default:
		return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "applyGlobalSettingChange",
			fmt.Sprintf("event %q not valid for global settings", evt))
	}
}

// patchFromData resolves the owning patch named by the payload's patchId.
func (e *Engine) patchFromData(data state.Value, op string) (*state.Patch, error) {
	patchID, ok := stringField(data, "patchId")
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Engine", op,
			"missing field 'patchId'")
	}
	return e.session.Patch(patchID)
}

func stringField(v state.Value, name string) (string, bool) {
	f, ok := v.Field(name)
	if !ok {
		return "", false
	}
	return f.AsString()
}

func boolField(v state.Value, name string) (bool, bool) {
	f, ok := v.Field(name)
	if !ok {
		return false, false
	}
	return f.AsBool()
}

func intField(v state.Value, name string) (int64, bool) {
	f, ok := v.Field(name)
	if !ok {
		return 0, false
	}
	return f.AsInt()
}

func floatField(v state.Value, name string) (float64, bool) {
	f, ok := v.Field(name)
	if !ok {
		return 0, false
	}
	return f.AsFloat()
}

func positionField(v state.Value) (state.Position, bool) {
	pos, ok := v.Field("position")
	if !ok {
		return state.Position{}, false
	}
	x, okX := floatField(pos, "x")
	y, okY := floatField(pos, "y")
	if !okX || !okY {
		return state.Position{}, false
	}
	return state.Position{X: x, Y: y}, true
}

func sizeField(v state.Value) (state.Size, bool) {
	size, ok := v.Field("size")
	if !ok {
		return state.Size{}, false
	}
	w, okW := floatField(size, "width")
	h, okH := floatField(size, "height")
	if !okW || !okH {
		return state.Size{}, false
	}
	return state.Size{Width: w, Height: h}, true
}

// parameterFromValue decodes an embedded parameter payload.
func parameterFromValue(v state.Value) (*state.Parameter, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Engine", "parameterFromValue", "encode parameter")
	}
	p := &state.Parameter{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

// sessionFromValue decodes an embedded session snapshot.
func sessionFromValue(v state.Value) (*state.Session, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Engine", "sessionFromValue", "encode session")
	}
	s := &state.Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}
