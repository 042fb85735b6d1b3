package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"stampede/internal/stats"

	"github.com/charmbracelet/lipgloss"
)

const (
	TokenFailure = "😨"
	TokenSuccess = "😊"
)

// TimestampLayout is used for the bracketed timestamp of the summary line.
const TimestampLayout = time.DateTime

var failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))

// Summary is the computed outcome of a run.
type Summary struct {
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	AnyFailure bool      `json:"any_failure" yaml:"any_failure"`

	Total    uint64 `json:"total" yaml:"total"`
	Success  uint64 `json:"success" yaml:"success"`
	Failures uint64 `json:"failures" yaml:"failures"`
	Errored  uint64 `json:"errored" yaml:"errored"`

	AvgMs float64 `json:"avg_ms" yaml:"avg_ms"`
	MinMs float64 `json:"min_ms" yaml:"min_ms"`
	MaxMs float64 `json:"max_ms" yaml:"max_ms"`

	SuccessPct float64 `json:"success_pct" yaml:"success_pct"`
	FailurePct float64 `json:"failure_pct" yaml:"failure_pct"`

	// Spread between the first and last dispatch after gate release, 0 for sequential runs
	DispatchSpreadMs float64 `json:"dispatch_spread_ms" yaml:"dispatch_spread_ms"`
}

// Summarize computes the summary of a frozen snapshot.
func Summarize(snap stats.Snapshot, now time.Time) Summary {
	s := Summary{
		Timestamp:  now,
		AnyFailure: snap.AnyFailure,
		Total:      snap.Attempted,
		Success:    snap.Succeeded,
		Failures:   snap.Failed(),
		Errored:    snap.Errored,
	}

	if len(snap.Latencies) > 0 {
		var sum float64
		s.MinMs = math.Inf(1)
		s.MaxMs = math.Inf(-1)
		for _, l := range snap.Latencies {
			sum += l
			s.MinMs = math.Min(s.MinMs, l)
			s.MaxMs = math.Max(s.MaxMs, l)
		}
		s.AvgMs = sum / float64(len(snap.Latencies))
	}

	if snap.Attempted > 0 {
		s.SuccessPct = round2(float64(snap.Succeeded) / float64(snap.Attempted) * 100)
	}
	s.FailurePct = round2(100 - s.SuccessPct)

	if snap.DispatchCount > 0 {
		s.DispatchSpreadMs = float64(snap.DispatchSpreadUs) / 1000
	}
	return s
}

// Token is the leading glyph of the summary line.
func (s Summary) Token() string {
	if s.AnyFailure {
		return TokenFailure
	}
	return TokenSuccess
}

// Line is the one-line run summary that is also appended to the timings file.
func (s Summary) Line() string {
	return fmt.Sprintf("%s [%s] avg: %.2f ms. min: %.2f ms. max: %.2f ms. %s%% success.",
		s.Token(),
		s.Timestamp.Format(TimestampLayout),
		s.AvgMs, s.MinMs, s.MaxMs,
		formatPct(s.SuccessPct),
	)
}

// Render prints the end-of-run report: the failure banner when any call
// failed, the summary line, the dispatch spread, and optionally the failed
// correlation ids.
func Render(w io.Writer, s Summary, failures []stats.Failure, dumpFailed bool) {
	fmt.Fprintln(w)
	if s.AnyFailure {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "🔥 Total: %d Success: %d Failures: %d\n", s.Total, s.Success, s.Failures)
		fmt.Fprintln(w, failureStyle.Render(fmt.Sprintf("🔥 %s%% failure.", formatPct(s.FailurePct))))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, s.Line())

	if s.DispatchSpreadMs > 0 {
		fmt.Fprintf(w, "⚡ dispatch spread: %.3f ms\n", s.DispatchSpreadMs)
	}

	if dumpFailed && len(failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "😔 Failed Activity Ids:")
		for _, f := range failures {
			fmt.Fprintf(w, "%s %s\n", f.Class, f.CorrelationID)
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// formatPct prints a percentage without trailing zeros, e.g. 100, 99.5, 33.33.
func formatPct(v float64) string {
	return fmt.Sprintf("%g", v)
}
