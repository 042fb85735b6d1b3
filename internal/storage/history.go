package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stampede/internal/report"
	"stampede/internal/runner"
)

const DefaultTimingsFile = "timings.txt"

// HistoryItem is one recorded run.
type HistoryItem struct {
	ID        string         `json:"id" yaml:"id"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Config    runner.Config  `json:"config" yaml:"config"`
	Summary   report.Summary `json:"summary" yaml:"summary"`
}

// DefaultHistoryPath is $HOME/.stampede/history.db.
func DefaultHistoryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".stampede", "history.db"), nil
}

// AppendTimingLine appends line to the run log at path, creating it if needed.
func AppendTimingLine(path, line string) error {
	if path == "" {
		path = DefaultTimingsFile
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open timings file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("append timings file: %w", err)
	}
	return nil
}
