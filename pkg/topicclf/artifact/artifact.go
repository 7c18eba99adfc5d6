// Package artifact reads and writes the JSON files a training run produces.
// Every file is a versioned envelope around a component's own encoding.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

// FormatVersion is bumped when the envelope or a payload changes shape.
const FormatVersion = 1

// Envelope wraps a payload with what produced it.
type Envelope struct {
	Kind          string          `json:"kind"`
	FormatVersion int             `json:"format_version"`
	RunID         string          `json:"run_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Encode serializes payload inside an envelope.
func Encode(kind, runID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return json.MarshalIndent(Envelope{
		Kind:          kind,
		FormatVersion: FormatVersion,
		RunID:         runID,
		CreatedAt:     time.Now().UTC(),
		Payload:       raw,
	}, "", "  ")
}

// Decode unpacks an envelope of the given kind into payload.
func Decode(data []byte, kind string, payload any) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("corrupt envelope: %w", err)
	}
	if env.Kind != kind {
		return env, fmt.Errorf("artifact kind %q, want %q", env.Kind, kind)
	}
	if env.FormatVersion != FormatVersion {
		return env, fmt.Errorf("artifact format version %d, want %d", env.FormatVersion, FormatVersion)
	}
	if len(env.Payload) == 0 {
		return env, errors.New("artifact has no payload")
	}
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return env, fmt.Errorf("corrupt %s payload: %w", kind, err)
	}
	return env, nil
}

// Load reads path and decodes it. Every failure is an
// *internalerr.ArtifactLoadError.
func Load(path, kind string, payload any) (Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Envelope{}, &internalerr.ArtifactLoadError{Path: path, Err: err}
	}
	env, err := Decode(data, kind, payload)
	if err != nil {
		return env, &internalerr.ArtifactLoadError{Path: path, Err: err}
	}
	return env, nil
}

// WriteFile writes data next to path and renames it into place, so readers
// never see a partial file.
func WriteFile(path string, data []byte) error {
	tmp, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// writeTemp writes data to a new temporary file in path's directory and
// returns its name.
func writeTemp(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("write temp artifact: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("sync temp artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("chmod temp artifact: %w", err)
	}
	return name, nil
}
