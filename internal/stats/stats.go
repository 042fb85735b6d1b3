package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Failure is one non-OK outcome: the call's correlation id and its classification.
type Failure struct {
	CorrelationID string `json:"correlation_id"`
	Class         string `json:"class"`
}

// Aggregate accumulates the outcome of every call in a run. All methods are
// safe for concurrent use until Freeze is called.
type Aggregate struct {
	// latencies and executed are partitioned by slot, each index has exactly one writer
	latencies []float64
	executed  []bool

	Attempted uint64
	Succeeded uint64
	Errored   uint64

	anyFailure atomic.Bool

	mu       sync.Mutex
	failures []Failure

	// Dispatch offsets from gate release (microseconds)
	Dispatch *SafeHistogram

	frozen atomic.Bool
}

// Snapshot is the frozen, read-only view handed to the reporter.
type Snapshot struct {
	// Latencies of the executed slots, in slot order
	Latencies  []float64
	Attempted  uint64
	Succeeded  uint64
	Errored    uint64
	AnyFailure bool
	Failures   []Failure

	DispatchCount    int64
	DispatchSpreadUs int64
}

// Counts is a live view of the counters, valid at any time.
type Counts struct {
	Attempted uint64
	Succeeded uint64
	Errored   uint64
}

func NewAggregate(slots int) *Aggregate {
	return &Aggregate{
		latencies: make([]float64, slots),
		executed:  make([]bool, slots),
		Dispatch:  NewSafeHistogram(),
	}
}

// RecordLatency stores the latency of slot and marks it as executed.
func (a *Aggregate) RecordLatency(slot int, ms float64) {
	a.latencies[slot] = ms
	a.executed[slot] = true
}

func (a *Aggregate) RecordAttempt() {
	atomic.AddUint64(&a.Attempted, 1)
}

func (a *Aggregate) RecordSuccess() {
	atomic.AddUint64(&a.Succeeded, 1)
}

// RecordError counts a call that never received a status.
func (a *Aggregate) RecordError() {
	atomic.AddUint64(&a.Errored, 1)
	a.MarkFailed()
}

// RecordFailure stores a non-OK outcome and sets the failure flag.
func (a *Aggregate) RecordFailure(correlationID, class string) {
	a.MarkFailed()

	a.mu.Lock()
	a.failures = append(a.failures, Failure{CorrelationID: correlationID, Class: class})
	a.mu.Unlock()
}

// MarkFailed sets the sticky failure flag.
func (a *Aggregate) MarkFailed() {
	a.anyFailure.Store(true)
}

// RecordDispatch records how long after gate release a call was dispatched.
func (a *Aggregate) RecordDispatch(offset time.Duration) {
	if offset < 0 {
		offset = 0
	}
	// Values beyond the histogram range are dropped
	_ = a.Dispatch.RecordValue(offset.Microseconds())
}

func (a *Aggregate) Counts() Counts {
	return Counts{
		Attempted: atomic.LoadUint64(&a.Attempted),
		Succeeded: atomic.LoadUint64(&a.Succeeded),
		Errored:   atomic.LoadUint64(&a.Errored),
	}
}

// Frozen reports whether Freeze has been called.
func (a *Aggregate) Frozen() bool {
	return a.frozen.Load()
}

// Freeze marks the aggregate read-only and returns its snapshot. The caller
// must have joined every writer first.
func (a *Aggregate) Freeze() Snapshot {
	a.frozen.Store(true)

	// Slots that never ran (cancelled runs) are left out
	latencies := make([]float64, 0, len(a.latencies))
	for slot, ms := range a.latencies {
		if a.executed[slot] {
			latencies = append(latencies, ms)
		}
	}

	a.mu.Lock()
	failures := make([]Failure, len(a.failures))
	copy(failures, a.failures)
	a.mu.Unlock()

	return Snapshot{
		Latencies:        latencies,
		Attempted:        atomic.LoadUint64(&a.Attempted),
		Succeeded:        atomic.LoadUint64(&a.Succeeded),
		Errored:          atomic.LoadUint64(&a.Errored),
		AnyFailure:       a.anyFailure.Load(),
		Failures:         failures,
		DispatchCount:    a.Dispatch.TotalCount(),
		DispatchSpreadUs: a.Dispatch.Spread(),
	}
}

// Failed is the number of calls that received a non-OK status.
func (s Snapshot) Failed() uint64 {
	return s.Attempted - s.Succeeded
}
