package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"stampede/internal/output"
)

const (
	HeaderVariants = "X-Variants"
	VariantsValue  = "test"
)

// execute performs exactly one call for slot and records its outcome in the
// aggregate. Nothing raised here leaves the call boundary.
func (r *Runner) execute(ctx context.Context, slot int, releasedAt time.Time) (rec CallRecord) {
	rec = CallRecord{
		Slot:          slot,
		CorrelationID: NewCorrelationID(),
		Method:        r.Cfg.Method(),
	}
	rec.URL = RewriteCorrelationID(r.Cfg.URL, rec.CorrelationID)

	defer func() {
		if p := recover(); p != nil {
			rec.Err = fmt.Errorf("call panicked: %v", p)
			r.Agg.MarkFailed()
		}
		if rec.Err != nil {
			output.Logger.Error("Call failed",
				"slot", slot,
				"correlation_id", rec.CorrelationID,
				"status", rec.Status,
				"error", rec.Err,
			)
		}
		rec.CompletedAt = time.Now()
		if r.Hooks.OnCall != nil {
			r.Hooks.OnCall(rec)
		}
	}()

	req, err := r.newRequest(ctx, rec)
	if err != nil {
		rec.Err = fmt.Errorf("build request: %w", err)
		r.Agg.RecordError()
		return rec
	}

	start := time.Now()
	rec.DispatchedAt = start
	if !releasedAt.IsZero() {
		r.Agg.RecordDispatch(start.Sub(releasedAt))
	}

	resp, err := r.Client.Do(req)
	rec.LatencyMs = float64(time.Since(start)) / float64(time.Millisecond)
	r.Agg.RecordLatency(slot, rec.LatencyMs)

	if err != nil {
		rec.Err = err
		r.Agg.RecordError()
		return rec
	}
	defer resp.Body.Close()

	rec.Status = resp.StatusCode
	rec.Class = Classify(resp.StatusCode)

	r.Agg.RecordAttempt()
	if rec.Class == ClassOK {
		r.Agg.RecordSuccess()
	} else {
		r.Agg.RecordFailure(rec.CorrelationID, rec.Class.String())
	}

	if !r.Cfg.WriteResponse {
		// Drain so the connection returns to the pool
		io.Copy(io.Discard, resp.Body)
		return rec
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		rec.Err = fmt.Errorf("read response body: %w", err)
		r.Agg.MarkFailed()
		return rec
	}

	path, err := r.responses.Write(slot, body)
	rec.ResponsePath = path
	if err != nil {
		rec.Err = err
		r.Agg.MarkFailed()
	}
	return rec
}

func (r *Runner) newRequest(ctx context.Context, rec CallRecord) (*http.Request, error) {
	var body io.Reader
	if rec.Method == http.MethodPost {
		body = bytes.NewReader(r.Cfg.Body)
	}

	req, err := http.NewRequestWithContext(ctx, rec.Method, rec.URL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(HeaderVariants, VariantsValue)
	if rec.Method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
