package statesync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/pkg/timestamp"
	"github.com/c360/maxbridge/state"
)

// StateFormat tags persisted state files; loaders reject anything else.
const StateFormat = "mcp_state"

// StateVersion is the persisted file format version.
const StateVersion = "1.0"

// SaveResponse reports the outcome of a save request.
type SaveResponse struct {
	RequestID string `json:"requestId"`
	Path      string `json:"path"`
	Success   bool   `json:"success"`
	Timestamp int64  `json:"timestamp"`
}

// LoadResponse reports the outcome of a load request.
type LoadResponse struct {
	RequestID string `json:"requestId"`
	Path      string `json:"path"`
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
}

type stateMetadata struct {
	Version   string `json:"version"`
	Timestamp int64  `json:"timestamp"`
	Format    string `json:"format"`
}

// SaveState serializes the session, wrapped in a metadata envelope, to
// the given path. A leading "~" expands to the user home directory, and
// missing parent directories are created.
func (e *Engine) SaveState(requestID, path string) (SaveResponse, error) {
	target, err := expandPath(path)
	if err != nil {
		return SaveResponse{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return SaveResponse{}, errors.WrapFatal(errors.ErrNotStarted, "Engine", "SaveState",
			"no active session")
	}

	payload, err := entityPayload(e.session)
	if err != nil {
		return SaveResponse{}, err
	}
	savedAt := timestamp.Now()
	payload["__metadata"] = stateMetadata{
		Version:   StateVersion,
		Timestamp: savedAt,
		Format:    StateFormat,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return SaveResponse{}, errors.WrapIO(err, "Engine", "SaveState", "encode state file")
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return SaveResponse{}, errors.WrapIO(err, "Engine", "SaveState",
			fmt.Sprintf("create directory for %q", target))
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return SaveResponse{}, errors.WrapIO(err, "Engine", "SaveState",
			fmt.Sprintf("write %q", target))
	}

	if e.metrics != nil {
		e.metrics.StateSaves.Inc()
	}
	e.logger.Debug("state saved", "path", target, "session", e.session.ID())

	return SaveResponse{
		RequestID: requestID,
		Path:      target,
		Success:   true,
		Timestamp: savedAt,
	}, nil
}

// LoadState restores the session from a state file. The file's metadata
// format tag must match; a file that fails validation or decoding leaves
// the current session untouched.
func (e *Engine) LoadState(requestID, path string) (LoadResponse, error) {
	target, err := expandPath(path)
	if err != nil {
		return LoadResponse{}, err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return LoadResponse{}, errors.WrapIO(err, "Engine", "LoadState",
			fmt.Sprintf("read %q", target))
	}

	var envelope struct {
		Metadata *stateMetadata `json:"__metadata"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return LoadResponse{}, errors.WrapInvalid(err, "Engine", "LoadState", "parse state file")
	}
	if envelope.Metadata == nil || envelope.Metadata.Format != StateFormat {
		return LoadResponse{}, errors.WrapInvalid(errors.ErrInvalidStateFormat, "Engine", "LoadState",
			fmt.Sprintf("file %q", target))
	}

	// Decode fully before touching the live session so a corrupt file
	// cannot leave a half-applied model.
	loaded := &state.Session{}
	if err := json.Unmarshal(data, loaded); err != nil {
		return LoadResponse{}, errors.Wrap(err, "Engine", "LoadState", "decode session")
	}

	e.mu.Lock()
	e.session = loaded
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.StateLoads.Inc()
	}
	e.logger.Info("state loaded", "path", target, "session", loaded.ID())

	return LoadResponse{
		RequestID: requestID,
		Path:      target,
		Success:   true,
		SessionID: loaded.ID(),
	}, nil
}

// expandPath resolves a leading "~" against the user home directory.
func expandPath(path string) (string, error) {
	if path == "" {
		return "", errors.WrapInvalid(errors.ErrInvalidData, "Engine", "expandPath",
			"empty path")
	}
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapIO(err, "Engine", "expandPath", "resolve home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
