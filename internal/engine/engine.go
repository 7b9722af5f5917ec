// Package engine defines the boundary to the rendering/processing engine
// the crash subsystem protects.
//
// The crash path only ever queries the engine during report assembly and
// exit handling; it never manages the engine's object graph.
package engine

// FatalHandler receives the engine's fatal-error callback: the raw format
// string carries the stable crash signature, args are the formatting
// arguments for the human-readable message.
type FatalHandler func(format string, args ...any)

// Engine is the external rendering/processing engine as seen by the crash
// subsystem.
type Engine interface {
	// IsActive reports whether the engine is initialized and running.
	IsActive() bool

	// Shutdown releases the engine gracefully. A non-nil error means the
	// release itself faulted and the caller must fall back to a full crash
	// report.
	Shutdown() error

	// SetFatalHandler installs the callback invoked on engine fatal errors.
	SetFatalHandler(h FatalHandler)

	// LogErrors and LogWarnings return ordered snapshots of the engine's
	// buffered log categories.
	LogErrors() []string
	LogWarnings() []string

	// DrainLogGeneral consumes the general log queue; entries are returned
	// once and are not re-reportable.
	DrainLogGeneral() []string

	// NumAllocations returns the engine's live allocation count, used for
	// leak triage in crash reports.
	NumAllocations() int64
}
