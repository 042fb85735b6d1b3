package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stampede/internal/report"
	"stampede/internal/runner"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveListGet(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		item := HistoryItem{
			ID:        fmt.Sprintf("run-%d", i),
			Timestamp: time.Now(),
			Config:    runner.Config{Count: i + 1, URL: "http://localhost/test", Mode: runner.ModeParallel},
			Summary:   report.Summary{Total: uint64(i + 1), Success: uint64(i + 1), SuccessPct: 100},
		}
		if err := s.Save(item); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	items, err := s.List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	if items[0].ID != "run-2" || items[2].ID != "run-0" {
		t.Errorf("Expected newest first, got %s..%s", items[0].ID, items[2].ID)
	}

	limited, _ := s.List(2)
	if len(limited) != 2 {
		t.Errorf("Expected 2 items with limit, got %d", len(limited))
	}

	got, err := s.Get("run-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Config.Count != 2 || got.Summary.Total != 2 {
		t.Errorf("Unexpected item: %+v", got)
	}

	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_Prunes(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < MaxHistory+5; i++ {
		if err := s.Save(HistoryItem{ID: fmt.Sprintf("run-%d", i)}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	items, _ := s.List(0)
	if len(items) != MaxHistory {
		t.Fatalf("Expected %d items, got %d", MaxHistory, len(items))
	}
	if items[len(items)-1].ID != "run-5" {
		t.Errorf("Expected oldest kept run to be run-5, got %s", items[len(items)-1].ID)
	}
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.Save(HistoryItem{ID: "persisted"})
	s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected db file to survive Close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer s.Close()

	if _, err := s.Get("persisted"); err != nil {
		t.Errorf("Expected item after reopen, got %v", err)
	}
}

func TestAppendTimingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timings.txt")

	lines := []string{"😊 first", "😨 second"}
	for _, l := range lines {
		if err := AppendTimingLine(path, l); err != nil {
			t.Fatalf("AppendTimingLine failed: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read timings: %v", err)
	}
	expected := strings.Join(lines, "\n") + "\n"
	if string(data) != expected {
		t.Errorf("Expected %q, got %q", expected, string(data))
	}
}

func sampleRecords() []runner.CallRecord {
	now := time.Now()
	return []runner.CallRecord{
		{Slot: 0, CorrelationID: "a", Method: "GET", URL: "http://h/x", Status: 200, Class: runner.ClassOK, LatencyMs: 12.7, DispatchedAt: now},
		{Slot: 1, CorrelationID: "b", Method: "GET", URL: "http://h/x", Status: 429, Class: runner.Classify(429), LatencyMs: 3, DispatchedAt: now},
		{Slot: 2, CorrelationID: "c", Method: "GET", URL: "http://h/x", Err: errors.New("connection refused"), DispatchedAt: now},
	}
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.csv")
	if err := Export(sampleRecords(), path); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Invalid CSV: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("Expected header + 3 rows, got %d", len(rows))
	}
	if rows[1][1] != "12" || rows[1][3] != "200" || rows[1][7] != "true" {
		t.Errorf("Unexpected OK row: %v", rows[1])
	}
	if rows[2][2] != "429" || rows[2][7] != "false" {
		t.Errorf("Unexpected 429 row: %v", rows[2])
	}
	if rows[3][2] != "TransportError" || rows[3][8] != "connection refused" {
		t.Errorf("Unexpected transport error row: %v", rows[3])
	}
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.JSON")
	if err := Export(sampleRecords(), path); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out []ExportRecord
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Invalid JSON export: %v", err)
	}
	if len(out) != 3 || !out[0].Success || out[2].Error == "" {
		t.Errorf("Unexpected export: %+v", out)
	}
}
