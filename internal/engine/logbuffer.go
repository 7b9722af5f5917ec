package engine

import "sync"

// LogBuffer is the engine-side store for the three report log categories.
// Errors and warnings are retained for the whole session; general entries
// form a consume-once queue.
type LogBuffer struct {
	mu       sync.Mutex
	errors   []string
	warnings []string
	general  []string
}

// NewLogBuffer creates an empty log buffer.
func NewLogBuffer() *LogBuffer {
	return &LogBuffer{}
}

// AppendError records an error log line.
func (b *LogBuffer) AppendError(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errors = append(b.errors, message)
}

// AppendWarning records a warning log line.
func (b *LogBuffer) AppendWarning(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.warnings = append(b.warnings, message)
}

// AppendGeneral enqueues a general log line.
func (b *LogBuffer) AppendGeneral(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.general = append(b.general, message)
}

// Errors returns an ordered snapshot of the error log.
func (b *LogBuffer) Errors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.errors))
	copy(out, b.errors)
	return out
}

// Warnings returns an ordered snapshot of the warning log.
func (b *LogBuffer) Warnings() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.warnings))
	copy(out, b.warnings)
	return out
}

// DrainGeneral returns the queued general entries and empties the queue.
func (b *LogBuffer) DrainGeneral() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.general
	b.general = nil
	return out
}
