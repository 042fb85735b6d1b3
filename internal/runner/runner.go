package runner

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"stampede/internal/output"
	"stampede/internal/stats"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// CountdownSteps are announced 500ms apart before a synchronized burst.
var CountdownSteps = []string{"-", "3", "2", "1"}

const (
	DefaultStepInterval = 500 * time.Millisecond
)

// Hooks observe a run. Every field is optional. OnCall is invoked from the
// call's own goroutine, so implementations must be safe for concurrent use.
type Hooks struct {
	OnCountdown func(step string, index int)
	OnRelease   func()
	OnCall      func(rec CallRecord)
}

type Runner struct {
	Cfg    Config
	Agg    *stats.Aggregate
	Client *http.Client
	RunID  string
	Hooks  Hooks

	// StepInterval is the pause between countdown steps
	StepInterval time.Duration

	responses ResponseWriter
}

func NewRunner(cfg Config) *Runner {
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	t.MaxIdleConns = maxConns
	t.MaxConnsPerHost = maxConns
	t.MaxIdleConnsPerHost = maxConns
	if cfg.Insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := &http.Client{
		Timeout:   time.Duration(cfg.TimeoutSec) * time.Second,
		Transport: t,
	}

	runID := uuid.New().String()

	return &Runner{
		Cfg:          cfg,
		Agg:          stats.NewAggregate(cfg.Count),
		Client:       client,
		RunID:        runID,
		StepInterval: DefaultStepInterval,
		responses: ResponseWriter{
			Dir:   cfg.OutDir,
			RunID: runID,
			Raw:   cfg.WriteRaw,
		},
	}
}

// Responses is the writer used when the run persists bodies.
func (r *Runner) Responses() ResponseWriter {
	return r.responses
}

// Run dispatches every call and returns the frozen aggregate once the last
// unit has finished. Cancelling ctx stops units that have not been
// dispatched yet; completed calls keep their results.
func (r *Runner) Run(ctx context.Context) stats.Snapshot {
	if r.Cfg.Mode == ModeSequential {
		r.runSequential(ctx)
	} else {
		r.runParallel(ctx)
	}
	return r.Agg.Freeze()
}

func (r *Runner) runParallel(ctx context.Context) {
	n := r.Cfg.Count
	gate := NewGate(n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		slot := i
		g.Go(func() error {
			gate.Arrive()
			if err := gate.Wait(ctx); err != nil {
				return err
			}
			// Wait may pick the open gate even when ctx is already done
			if err := ctx.Err(); err != nil {
				return err
			}
			r.execute(ctx, slot, gate.ReleasedAt())
			return nil
		})
	}

	if !r.Cfg.NoCountdown {
		r.countdown(ctx)
		if err := gate.AwaitReady(ctx); err != nil {
			r.logCancelled(err)
		}
	}

	gate.Release()
	if r.Hooks.OnRelease != nil {
		r.Hooks.OnRelease()
	}

	if err := g.Wait(); err != nil {
		r.logCancelled(err)
	}
}

func (r *Runner) runSequential(ctx context.Context) {
	for i := 0; i < r.Cfg.Count; i++ {
		if ctx.Err() != nil {
			r.logCancelled(ctx.Err())
			return
		}
		r.execute(ctx, i, time.Time{})

		if r.Cfg.DelayBetweenCalls > 0 {
			if err := sleep(ctx, r.Cfg.DelayBetweenCalls); err != nil {
				r.logCancelled(err)
				return
			}
		}
	}
}

func (r *Runner) countdown(ctx context.Context) {
	for i, step := range CountdownSteps {
		if r.Hooks.OnCountdown != nil {
			r.Hooks.OnCountdown(step, i)
		}
		if err := sleep(ctx, r.StepInterval); err != nil {
			return
		}
	}
}

// logCancelled records that the run stopped before every unit executed.
func (r *Runner) logCancelled(err error) {
	output.Logger.Warn("Run interrupted", "run_id", r.RunID, "error", err)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
