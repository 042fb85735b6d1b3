package runner

import (
	"context"
	"sync"
	"time"
)

// Gate is the shared start line of a parallel run. Units Arrive, then Wait;
// the controller waits for every arrival and Releases them all at once by
// closing a channel.
type Gate struct {
	ready      sync.WaitGroup
	open       chan struct{}
	once       sync.Once
	releasedAt time.Time
}

// NewGate expects units arrivals before AwaitReady returns.
func NewGate(units int) *Gate {
	g := &Gate{open: make(chan struct{})}
	g.ready.Add(units)
	return g
}

// Arrive signals that one unit is running and about to block on the gate.
func (g *Gate) Arrive() {
	g.ready.Done()
}

// AwaitReady blocks until every unit has arrived or ctx is done.
func (g *Gate) AwaitReady(ctx context.Context) error {
	// Use a channel to make Wait() cancellable
	done := make(chan struct{})
	go func() {
		g.ready.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release opens the gate. Calls after the first are no-ops.
func (g *Gate) Release() {
	g.once.Do(func() {
		g.releasedAt = time.Now()
		close(g.open)
	})
}

// Wait blocks until the gate is released or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReleasedAt blocks until the gate is open and returns the release instant.
func (g *Gate) ReleasedAt() time.Time {
	<-g.open
	return g.releasedAt
}
