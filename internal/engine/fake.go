package engine

import (
	"sync"
	"sync/atomic"
)

// Fake is an in-memory Engine for tests and the demo host. It behaves like
// a healthy engine unless failure hooks are installed.
type Fake struct {
	Logs *LogBuffer

	active atomic.Bool
	allocs atomic.Int64

	mu    sync.Mutex
	fatal FatalHandler

	// ShutdownErr, when non-nil, is returned by Shutdown without
	// deactivating the engine.
	ShutdownErr error

	// LogErrorsFunc, when set, replaces LogErrors. Used to inject faults
	// into the report-assembly path.
	LogErrorsFunc func() []string
}

// NewFake creates an inactive fake engine.
func NewFake() *Fake {
	return &Fake{Logs: NewLogBuffer()}
}

// Startup marks the engine active.
func (f *Fake) Startup() {
	f.active.Store(true)
}

// IsActive implements Engine.
func (f *Fake) IsActive() bool {
	return f.active.Load()
}

// Shutdown implements Engine.
func (f *Fake) Shutdown() error {
	if f.ShutdownErr != nil {
		return f.ShutdownErr
	}
	f.active.Store(false)
	return nil
}

// SetFatalHandler implements Engine.
func (f *Fake) SetFatalHandler(h FatalHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fatal = h
}

// RaiseFatal invokes the installed fatal handler, mimicking an engine
// fatal error. It is a no-op when no handler is installed.
func (f *Fake) RaiseFatal(format string, args ...any) {
	f.mu.Lock()
	h := f.fatal
	f.mu.Unlock()
	if h != nil {
		h(format, args...)
	}
}

// Allocate and Release adjust the live allocation counter.
func (f *Fake) Allocate(n int64) { f.allocs.Add(n) }
func (f *Fake) Release(n int64)  { f.allocs.Add(-n) }

// NumAllocations implements Engine.
func (f *Fake) NumAllocations() int64 {
	return f.allocs.Load()
}

// LogErrors implements Engine.
func (f *Fake) LogErrors() []string {
	if f.LogErrorsFunc != nil {
		return f.LogErrorsFunc()
	}
	return f.Logs.Errors()
}

// LogWarnings implements Engine.
func (f *Fake) LogWarnings() []string {
	return f.Logs.Warnings()
}

// DrainLogGeneral implements Engine.
func (f *Fake) DrainLogGeneral() []string {
	return f.Logs.DrainGeneral()
}

var _ Engine = (*Fake)(nil)
