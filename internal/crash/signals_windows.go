//go:build windows

package crash

// installSignalHandler is a no-op on Windows; faults surface as runtime
// panics and reach the crash path through HandlePanic.
func (m *Manager) installSignalHandler() {}
