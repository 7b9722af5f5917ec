package crash

import "sync/atomic"

// guard is the reentrancy latch around crash processing.
//
// A compare-and-swap latch: the first faulting goroutine proceeds with
// report assembly, every other one is told to terminate immediately, so
// two independent faults can never interleave their reports. Enter and
// Exit are non-blocking and non-allocating so they stay usable from
// signal-handler-like contexts.
type guard struct {
	busy atomic.Bool
}

// Enter attempts to acquire the latch. A false return means crash
// processing is already underway and the caller must terminate the process
// with no further work.
func (g *guard) Enter() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Exit releases the latch. Only meaningful on the non-aborting paths; an
// aborting crash never reaches it.
func (g *guard) Exit() {
	g.busy.Store(false)
}
