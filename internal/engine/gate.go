package engine

import (
	"sync"
	"sync/atomic"
)

// Gate admits at most one decision request at a time across all instruments.
// Acquisition never blocks; callers that lose the race drop their event.
type Gate struct {
	busy atomic.Bool
}

// TryAcquire takes the gate if it is free. On success the returned release
// func must be called exactly once; extra calls are no-ops.
func (g *Gate) TryAcquire() (release func(), ok bool) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, false
	}
	var once sync.Once
	return func() {
		once.Do(func() { g.busy.Store(false) })
	}, true
}

// Busy reports whether a decision is in flight.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}
