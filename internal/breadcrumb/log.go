// Package breadcrumb holds the process-wide diagnostic timeline that gets
// attached to crash reports.
//
// Application threads append breadcrumbs and warnings at arbitrary points
// during normal operation; the crash path reads them exactly once, at crash
// time, on whichever goroutine raised the fault. Appends never block longer
// than a single critical section and entries are never pruned during a
// session, so the report sees the full timeline in append order.
package breadcrumb

import "sync"

// Log is a thread-safe, append-only pair of message buffers.
// The zero value is ready to use.
type Log struct {
	mu          sync.Mutex
	breadcrumbs []string
	warnings    []string
}

// NewLog creates an empty diagnostic log.
func NewLog() *Log {
	return &Log{}
}

// AddBreadcrumb appends a timeline marker.
func (l *Log) AddBreadcrumb(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.breadcrumbs = append(l.breadcrumbs, message)
}

// AddWarning appends a warning message.
func (l *Log) AddWarning(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, message)
}

// ClearBreadcrumbs discards all recorded breadcrumbs. Warnings are kept.
func (l *Log) ClearBreadcrumbs() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.breadcrumbs = nil
}

// Breadcrumbs returns an immutable snapshot of the breadcrumbs in append
// order.
func (l *Log) Breadcrumbs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.breadcrumbs))
	copy(out, l.breadcrumbs)
	return out
}

// Warnings returns an immutable snapshot of the warnings in append order.
func (l *Log) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.warnings))
	copy(out, l.warnings)
	return out
}
