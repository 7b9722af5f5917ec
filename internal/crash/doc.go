// Package crash decides, at the moment of a fatal error, whether the
// process dies quietly or with a full diagnostic report.
//
// The package implements four cooperating pieces:
//
//   - Filter: matches an incoming fatal-error format string against the
//     configured list of known-benign crash signatures.
//
//   - guard: a non-reentrant atomic latch ensuring only the first fault the
//     process sees is ever fully processed; anything raised while a report
//     is being assembled short-circuits straight to termination.
//
//   - Manager: the explicitly owned process-wide state (session clock,
//     diagnostic log, engine and backend wiring) and the report assembler
//     that merges breadcrumbs, system snapshot, call stack and engine logs
//     into the fixed-key annotation map the backend persists.
//
//   - hook installers: panic funnel, externally raised fatal signals, the
//     engine's fatal-error callback, and the exit-without-shutdown check.
//
// Nothing in this package returns an error upward from the crash path; the
// result of handling a fault is always process termination, graceful or
// abnormal.
package crash
