package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"stampede/internal/runner"
)

// ExportRecord is the serialized form of one call.
type ExportRecord struct {
	Slot          int     `json:"slot"`
	TimeStamp     int64   `json:"timestamp_ms"`
	LatencyMs     float64 `json:"latency_ms"`
	Method        string  `json:"method"`
	URL           string  `json:"url"`
	Status        int     `json:"status"`
	Class         string  `json:"class"`
	CorrelationID string  `json:"correlation_id"`
	Success       bool    `json:"success"`
	Error         string  `json:"error,omitempty"`
	ResponsePath  string  `json:"response_path,omitempty"`
}

func toExport(rec runner.CallRecord) ExportRecord {
	e := ExportRecord{
		Slot:          rec.Slot,
		TimeStamp:     rec.DispatchedAt.UnixMilli(),
		LatencyMs:     rec.LatencyMs,
		Method:        rec.Method,
		URL:           rec.URL,
		Status:        rec.Status,
		Class:         rec.Class.String(),
		CorrelationID: rec.CorrelationID,
		Success:       rec.Class == runner.ClassOK && rec.Err == nil,
		ResponsePath:  rec.ResponsePath,
	}
	if rec.Err != nil {
		e.Error = rec.Err.Error()
	}
	return e
}

// Export writes records to filename. A .json extension selects JSON, anything
// else CSV.
func Export(records []runner.CallRecord, filename string) error {
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		return ExportJSON(records, filename)
	}
	return ExportCSV(records, filename)
}

// ExportCSV exports calls to a JMeter-compatible CSV file.
// Schema: timeStamp,elapsed,label,responseCode,responseMessage,threadName,dataType,success,failureMessage,bytes,sentBytes,grpThreads,allThreads,URL,Latency,IdleTime,Connect
func ExportCSV(records []runner.CallRecord, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{
		"timeStamp", "elapsed", "label", "responseCode", "responseMessage",
		"threadName", "dataType", "success", "failureMessage", "bytes",
		"sentBytes", "grpThreads", "allThreads", "URL", "Latency", "IdleTime", "Connect",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	threads := strconv.Itoa(len(records))
	for _, rec := range records {
		e := toExport(rec)
		elapsed := strconv.FormatInt(int64(e.LatencyMs), 10)

		label := e.Class
		if !rec.Responded() {
			label = "TransportError"
		}

		row := []string{
			strconv.FormatInt(e.TimeStamp, 10),
			elapsed,
			label,
			strconv.Itoa(e.Status),
			http.StatusText(e.Status),
			"slot-" + strconv.Itoa(e.Slot),
			"text",
			strconv.FormatBool(e.Success),
			e.Error,
			"0",
			"0",
			threads,
			threads,
			e.URL,
			elapsed,
			"0",
			"0",
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// ExportJSON exports calls to a JSON file.
func ExportJSON(records []runner.CallRecord, filename string) error {
	out := make([]ExportRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, toExport(rec))
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
