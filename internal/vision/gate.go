package vision

import (
	"context"
	"runtime"
)

// Gate bounds the number of simultaneous external-model invocations so a
// burst of uploads cannot multiply model spend without limit. Requests share
// nothing else, so this is the only cross-request coordination point.
type Gate struct {
	slots chan struct{}
}

// NewGate creates a gate allowing at most n concurrent invocations.
func NewGate(n int) *Gate {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &Gate{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or the context is done.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (g *Gate) Release() {
	<-g.slots
}
