package state

import (
	"encoding/json"
	"fmt"

	"github.com/c360/maxbridge/errors"
)

// DiffOperation identifies a structural diff operation.
type DiffOperation int

const (
	DiffAdd DiffOperation = iota
	DiffReplace
	DiffRemove
	DiffMove
)

// String returns the wire name of the operation.
func (op DiffOperation) String() string {
	switch op {
	case DiffAdd:
		return "add"
	case DiffReplace:
		return "replace"
	case DiffRemove:
		return "remove"
	case DiffMove:
		return "move"
	default:
		return "unknown"
	}
}

// ParseDiffOperation converts a wire name back to a DiffOperation.
func ParseDiffOperation(s string) (DiffOperation, error) {
	switch s {
	case "add":
		return DiffAdd, nil
	case "replace":
		return DiffReplace, nil
	case "remove":
		return DiffRemove, nil
	case "move":
		return DiffMove, nil
	default:
		return 0, errors.WrapInvalid(errors.ErrInvalidData, "DiffOperation", "ParseDiffOperation",
			fmt.Sprintf("unknown operation %q", s))
	}
}

// StateDiff is one structural diff entry: an operation at a path, with a
// value for everything except Remove. Diffs are transient; they are
// produced for incremental sync and never persisted.
type StateDiff struct {
	Operation DiffOperation
	Path      string
	Value     Value
}

type stateDiffJSON struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value *Value `json:"value,omitempty"`
}

// MarshalJSON serializes the diff entry; Remove entries carry no value.
func (d StateDiff) MarshalJSON() ([]byte, error) {
	dj := stateDiffJSON{
		Op:   d.Operation.String(),
		Path: d.Path,
	}
	if d.Operation != DiffRemove {
		v := d.Value
		dj.Value = &v
	}
	return json.Marshal(dj)
}

// UnmarshalJSON restores a diff entry from its wire form.
func (d *StateDiff) UnmarshalJSON(data []byte) error {
	var dj stateDiffJSON
	if err := json.Unmarshal(data, &dj); err != nil {
		return errors.WrapInvalid(err, "StateDiff", "UnmarshalJSON", "decode diff")
	}
	op, err := ParseDiffOperation(dj.Op)
	if err != nil {
		return err
	}
	d.Operation = op
	d.Path = dj.Path
	if dj.Value != nil {
		d.Value = *dj.Value
	} else {
		d.Value = Null()
	}
	return nil
}
