package output

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestConfigure(t *testing.T) {
	orig := Logger
	defer SetLogger(orig)

	var buf bytes.Buffer
	if err := Configure(&buf, "warn", "json"); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	Logger.Info("hidden")
	Logger.Warn("shown", "slot", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line at warn level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Expected JSON log line: %v", err)
	}
	if entry["msg"] != "shown" || entry["slot"] != float64(3) {
		t.Errorf("Unexpected entry: %v", entry)
	}

	if err := Configure(&buf, "loud", "text"); err == nil {
		t.Error("Expected an error for an unknown level")
	}
	if err := Configure(&buf, "info", "xml"); err == nil {
		t.Error("Expected an error for an unknown format")
	}
	level.Set(slog.LevelInfo)
}
