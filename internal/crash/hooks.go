package crash

import "fmt"

// HandlePanic is the defer-compatible panic funnel, the runtime-terminate
// hook of this subsystem. Install it at the top of every goroutine that
// must not take the process down unreported:
//
//	defer manager.HandlePanic()
//
// A recovered panic value is routed through the known-crash filter first,
// so a benign fault still gets its quiet shutdown.
func (m *Manager) HandlePanic() {
	r := recover()
	if r == nil {
		return
	}

	reason := fmt.Sprintf("panic: %v", r)
	if !m.TryHandleCrash(fmt.Sprintf("%v", r), reason) {
		m.HandleCrash(reason)
	}
}

// Protect runs fn under the panic funnel. Convenience wrapper for worker
// goroutines.
func (m *Manager) Protect(fn func()) {
	defer m.HandlePanic()
	fn()
}
