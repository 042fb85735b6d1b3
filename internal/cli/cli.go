package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stampede/internal/output"
	"stampede/internal/report"
	"stampede/internal/runner"
	"stampede/internal/stats"
	"stampede/internal/storage"
	"stampede/internal/tui/live"
	"stampede/internal/tui/styles"
)

const rule = "======================================================================"

// Options control everything around the run itself.
type Options struct {
	// Out receives the console output, os.Stdout when nil
	Out io.Writer

	TimingsFile string
	ExportPath  string
	Live        bool

	// History records the run when set
	History *storage.Store

	// StepInterval overrides the countdown pacing
	StepInterval time.Duration
}

// Start runs cfg to completion and prints the report. Per-call failures are
// part of the returned summary, the error is reserved for configuration and
// terminal problems.
func Start(ctx context.Context, cfg runner.Config, opts Options) (report.Summary, error) {
	if err := cfg.Validate(); err != nil {
		return report.Summary{}, err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	r := runner.NewRunner(cfg)
	if opts.StepInterval > 0 {
		r.StepInterval = opts.StepInterval
	}

	printHeader(out, cfg, r.RunID)
	printLegend(out)

	rec := &recorder{}
	hooks := []runner.Hooks{}
	if opts.ExportPath != "" {
		hooks = append(hooks, runner.Hooks{OnCall: rec.add})
	}

	output.Logger.Debug("Run starting",
		"run_id", r.RunID,
		"mode", cfg.Mode,
		"count", cfg.Count,
		"method", cfg.Method(),
		"correlated", runner.HasCorrelationID(cfg.URL),
	)

	var snap stats.Snapshot
	if opts.Live {
		var err error
		snap, err = runLive(ctx, r, cfg, out, hooks)
		if err != nil {
			return report.Summary{}, err
		}
	} else {
		c := &console{out: out}
		r.Hooks = chain(append(hooks, c.hooks())...)
		snap = r.Run(ctx)
	}

	summary := report.Summarize(snap, time.Now())
	report.Render(out, summary, snap.Failures, cfg.DumpFailedIDs)

	if err := storage.AppendTimingLine(opts.TimingsFile, summary.Line()); err != nil {
		output.Logger.Error("Failed to append timings", "path", opts.TimingsFile, "error", err)
	}

	if opts.ExportPath != "" {
		if err := storage.Export(rec.sorted(), opts.ExportPath); err != nil {
			output.Logger.Error("Failed to export calls", "path", opts.ExportPath, "error", err)
		} else {
			fmt.Fprintf(out, "\n💾 Calls exported to %s\n", opts.ExportPath)
		}
	}

	if opts.History != nil {
		item := storage.HistoryItem{
			ID:        r.RunID,
			Timestamp: summary.Timestamp,
			Config:    cfg,
			Summary:   summary,
		}
		if err := opts.History.Save(item); err != nil {
			output.Logger.Error("Failed to record run history", "run_id", r.RunID, "error", err)
		}
	}

	return summary, nil
}

func runLive(ctx context.Context, r *runner.Runner, cfg runner.Config, out io.Writer, hooks []runner.Hooks) (stats.Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(live.NewModel(cfg, cancel), tea.WithOutput(out))
	r.Hooks = chain(append(hooks, live.Hooks(p))...)

	done := make(chan stats.Snapshot, 1)
	go func() {
		snap := r.Run(ctx)
		p.Send(live.DoneMsg{})
		done <- snap
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return stats.Snapshot{}, fmt.Errorf("live view: %w", err)
	}
	return <-done, nil
}

func printHeader(w io.Writer, cfg runner.Config, runID string) {
	fmt.Fprintf(w, "\n🚀 STARTING STAMPEDE\n")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Target URL : %s\n", cfg.URL)
	fmt.Fprintf(w, "Method     : %s\n", cfg.Method())
	fmt.Fprintf(w, "Calls      : %d (%s)\n", cfg.Count, cfg.Mode)
	if cfg.Mode == runner.ModeSequential {
		fmt.Fprintf(w, "Delay      : %s\n", cfg.DelayBetweenCalls)
	}
	if cfg.WriteResponse {
		dir := cfg.OutDir
		if dir == "" {
			dir = "."
		}
		fmt.Fprintf(w, "Responses  : %s (raw: %t)\n", dir, cfg.WriteRaw)
	}
	if cfg.Insecure {
		fmt.Fprintf(w, "TLS        : verification disabled\n")
	}
	fmt.Fprintf(w, "Run ID     : %s\n", runID)
	fmt.Fprintln(w, rule)
}

func printLegend(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Result Key")
	fmt.Fprintln(w, strings.Repeat("-", 29))
	for _, c := range runner.LegendOrder {
		fmt.Fprintf(w, "%s => %s\n", c.Glyph(), c)
	}
	fmt.Fprintf(w, "%s => TransportError\n", runner.GlyphTransportError)
	fmt.Fprintln(w, strings.Repeat("-", 29))
	fmt.Fprintln(w)
}

// console echoes countdown steps and one token per completed call.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *console) hooks() runner.Hooks {
	return runner.Hooks{
		OnCountdown: c.countdown,
		OnRelease:   c.release,
		OnCall:      c.call,
	}
}

func (c *console) countdown(step string, index int) {
	light := "🟡"
	if index == 0 {
		light = "🔴"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, styles.Countdown.Render(step)+"   "+light)
}

func (c *console) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, styles.Go.Render("GO!")+" 🟢")
}

func (c *console) call(rec runner.CallRecord) {
	ok := rec.Responded() && rec.Class == runner.ClassOK && rec.Err == nil
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, styles.ForOutcome(ok).Render(rec.Glyph()))
}

// recorder keeps every call record for export.
type recorder struct {
	mu      sync.Mutex
	records []runner.CallRecord
}

func (r *recorder) add(rec runner.CallRecord) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// sorted returns the records in slot order.
func (r *recorder) sorted() []runner.CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]runner.CallRecord, len(r.records))
	copy(out, r.records)
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// chain fans each event out to every non-nil hook in order.
func chain(hs ...runner.Hooks) runner.Hooks {
	return runner.Hooks{
		OnCountdown: func(step string, index int) {
			for _, h := range hs {
				if h.OnCountdown != nil {
					h.OnCountdown(step, index)
				}
			}
		},
		OnRelease: func() {
			for _, h := range hs {
				if h.OnRelease != nil {
					h.OnRelease()
				}
			}
		},
		OnCall: func(rec runner.CallRecord) {
			for _, h := range hs {
				if h.OnCall != nil {
					h.OnCall(rec)
				}
			}
		},
	}
}
