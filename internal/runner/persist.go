package runner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ResponseWriter persists response bodies as response-<slot>-<runID>.json.
// The run id is shared by all calls so concurrent writers never collide.
type ResponseWriter struct {
	Dir   string
	RunID string
	Raw   bool
}

// Path returns the file a slot's response is written to.
func (w ResponseWriter) Path(slot int) string {
	name := fmt.Sprintf("response-%d-%s.json", slot, w.RunID)
	if w.Dir == "" {
		return name
	}
	return filepath.Join(w.Dir, name)
}

// Write stores body for slot. Unless Raw is set the body must be JSON; it is
// re-indented before writing.
func (w ResponseWriter) Write(slot int, body []byte) (string, error) {
	path := w.Path(slot)

	data := body
	if !w.Raw {
		normalized, err := NormalizeJSON(body)
		if err != nil {
			return path, fmt.Errorf("normalize response for slot %d: %w", slot, err)
		}
		data = normalized
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return path, fmt.Errorf("write response for slot %d: %w", slot, err)
	}
	return path, nil
}

// NormalizeJSON re-serializes body with two-space indentation, keeping key order.
func NormalizeJSON(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(body), "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
