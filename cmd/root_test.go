package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"stampede/internal/report"
	"stampede/internal/runner"
	"stampede/internal/storage"
)

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		in       []string
		expected []string
	}{
		{[]string{"/help"}, []string{"--help"}},
		{[]string{"-HELP"}, []string{"--help"}},
		{[]string{"--?"}, []string{"--help"}},
		{[]string{"/?"}, []string{"--help"}},
		{[]string{"10", "http://h", "--delay-between-calls:250"}, []string{"10", "http://h", "--delay-between-calls=250"}},
		{[]string{"--Delay-Between-Calls:5"}, []string{"--delay-between-calls=5"}},
		{[]string{"--delay-between-calls=7"}, []string{"--delay-between-calls=7"}},
		{[]string{"5", "http://h/?activityId=x"}, []string{"5", "http://h/?activityId=x"}},
	}

	for _, tt := range tests {
		got := normalizeArgs(tt.in)
		if !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("normalizeArgs(%v) = %v, want %v", tt.in, got, tt.expected)
		}
	}
}

func TestBuildConfig_Defaults(t *testing.T) {
	cfg, err := buildConfig([]string{"25", "http://localhost:8080/fast"}, runFlags{TimeoutSec: 1000})
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if cfg.Count != 25 {
		t.Errorf("Expected 25 calls, got %d", cfg.Count)
	}
	if cfg.Mode != runner.ModeParallel || cfg.NoCountdown {
		t.Errorf("Expected parallel mode with countdown, got %s (no countdown: %t)", cfg.Mode, cfg.NoCountdown)
	}
	if !cfg.IsGet() {
		t.Error("Expected GET without a body file")
	}
	if cfg.Insecure {
		t.Error("Expected TLS verification by default")
	}
}

func TestBuildConfig_Insecure(t *testing.T) {
	cfg, err := buildConfig([]string{"1", "https://localhost:8443/fast"}, runFlags{TimeoutSec: 1000, Insecure: true})
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if !cfg.Insecure {
		t.Error("Expected --insecure to carry into the run config")
	}
}

func TestBuildConfig_BodyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.json")
	os.WriteFile(path, []byte(`{"input":"x"}`), 0644)

	cfg, err := buildConfig([]string{"1", "http://h/test", path}, runFlags{})
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if cfg.Method() != "POST" {
		t.Errorf("Expected POST, got %s", cfg.Method())
	}

	if _, err := buildConfig([]string{"1", "http://h/test", filepath.Join(t.TempDir(), "missing.json")}, runFlags{}); err == nil {
		t.Error("Expected an error for a missing body file")
	}
}

func TestBuildConfig_DelayImpliesSequential(t *testing.T) {
	cfg, err := buildConfig([]string{"3", "http://h"}, runFlags{DelayMs: 250, DelaySet: true})
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if cfg.Mode != runner.ModeSequential {
		t.Errorf("Expected sequential mode, got %s", cfg.Mode)
	}
	if cfg.DelayBetweenCalls != 250*time.Millisecond {
		t.Errorf("Expected 250ms delay, got %s", cfg.DelayBetweenCalls)
	}

	cfg, _ = buildConfig([]string{"3", "http://h"}, runFlags{DelaySet: true})
	if cfg.Mode != runner.ModeSequential {
		t.Error("Expected an explicit zero delay to still imply sequential")
	}
}

func TestBuildConfig_Errors(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		flags runFlags
	}{
		{"bad count", []string{"lots", "http://h"}, runFlags{}},
		{"zero count", []string{"0", "http://h"}, runFlags{}},
		{"missing url", []string{"5"}, runFlags{}},
		{"negative delay", []string{"5", "http://h"}, runFlags{DelayMs: -1, DelaySet: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildConfig(tt.args, tt.flags)
			if !errors.Is(err, runner.ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestFlags_CaseInsensitive(t *testing.T) {
	defer func() { noDelay, dumpFailedIDs = false, false }()

	if err := rootCmd.Flags().Parse([]string{"--No-Delay", "--DUMP-FAILED-IDS"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !noDelay || !dumpFailedIDs {
		t.Errorf("Expected mixed-case flags to be recognized, got no-delay=%t dump=%t", noDelay, dumpFailedIDs)
	}
}

func historyItems() []storage.HistoryItem {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return []storage.HistoryItem{
		{
			ID:        "run-1",
			Timestamp: ts,
			Config:    runner.Config{Count: 10, URL: "http://h/fast", Mode: runner.ModeParallel},
			Summary:   report.Summary{Timestamp: ts, Total: 10, Success: 10, AvgMs: 4.2, MaxMs: 9, SuccessPct: 100},
		},
	}
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	if err := printHistory(&buf, historyItems(), "table"); err != nil {
		t.Fatalf("table failed: %v", err)
	}
	for _, want := range []string{"WHEN", "2024-01-02 03:04:05", "http://h/fast", "100%"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("Expected table to contain %q, got:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if err := printHistory(&buf, historyItems(), "json"); err != nil {
		t.Fatalf("json failed: %v", err)
	}
	var decoded []storage.HistoryItem
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil || len(decoded) != 1 {
		t.Errorf("Expected valid JSON with one item, got %v (%s)", err, buf.String())
	}

	buf.Reset()
	if err := printHistory(&buf, historyItems(), "yaml"); err != nil {
		t.Fatalf("yaml failed: %v", err)
	}
	var generic []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &generic); err != nil || len(generic) != 1 {
		t.Errorf("Expected valid YAML with one item, got %v (%s)", err, buf.String())
	}
	if generic[0]["id"] != "run-1" {
		t.Errorf("Expected id run-1, got %v", generic[0]["id"])
	}

	if err := printHistory(&buf, nil, "xml"); err == nil {
		t.Error("Expected an error for an unknown format")
	}
}

func TestLoadHistory(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	for _, it := range historyItems() {
		if err := store.Save(it); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	items, err := loadHistory(store, []string{"run-1"}, 20)
	if err != nil {
		t.Fatalf("loadHistory by id failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != "run-1" {
		t.Errorf("Expected run-1, got %+v", items)
	}

	items, err = loadHistory(store, nil, 20)
	if err != nil || len(items) != 1 {
		t.Errorf("Expected one listed run, got %d (%v)", len(items), err)
	}

	if _, err := loadHistory(store, []string{"missing"}, 20); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
