package crash

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hugo-lorenzo-mato/crashguard/internal/callstack"
	"github.com/hugo-lorenzo-mato/crashguard/internal/sysinfo"
)

// unknownValue is the placeholder for any diagnostic value that could not
// be computed. Keys are never omitted from a report.
const unknownValue = "unknown"

// HandleCrash assembles a full report for an unhandled fault and terminates
// the process abnormally. It never returns.
func (m *Manager) HandleCrash(reason string) {
	m.handleCrash(reason, true)
}

// BuildAndSubmit assembles and persists a crash report. When shouldAbort is
// true the process is terminated abnormally and the call does not return;
// otherwise the report is informational and the call returns normally.
func (m *Manager) BuildAndSubmit(reason string, shouldAbort bool) {
	m.handleCrash(reason, shouldAbort)
}

// HandleExit is the process-exit check. An engine still active at normal
// exit means modules and threads may still be running and whatever happens
// next would be a masked crash; report it, but let the process exit on its
// own so an engine left in an invalid state cannot turn the check itself
// into an abort.
func (m *Manager) HandleExit() {
	if !m.safeIsActive() {
		return
	}
	m.handleCrash("AtExit", false)
}

// TryHandleCrash gives known-benign fatal errors a quiet death. It returns
// false when the format string matches no configured signature, leaving the
// disposition to the caller. On a match the engine is released gracefully
// and the process exits with success; if the release itself faults, the
// fallback is a full report (recursion is covered by the guard).
func (m *Manager) TryHandleCrash(rawFormat, message string) bool {
	if !m.filter.IsKnown(rawFormat) {
		return false
	}

	m.logger.Info("known crash, terminating quietly", "reason", message)
	if err := m.shutdownEngine(); err != nil {
		m.logger.Error("graceful shutdown faulted", "error", err)
		m.handleCrash(message, true)
		return true
	}
	m.exitFn(0)
	return true
}

// shutdownEngine releases the engine, converting a panicking release into
// an explicit error for the fallback path.
func (m *Manager) shutdownEngine() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine shutdown panicked: %v", r)
		}
	}()
	if m.engine == nil {
		return nil
	}
	return m.engine.Shutdown()
}

// handleCrash is the single crash-processing path. The guard makes it
// non-reentrant: a fault raised while a report is already being assembled
// terminates immediately, with no second report.
func (m *Manager) handleCrash(reason string, callAbort bool) {
	if !m.guard.Enter() {
		m.abortFn()
		return
	}

	m.buildAndSubmit(reason, callAbort)

	// Only the non-aborting disposition ever gets here.
	m.guard.Exit()
}

// buildAndSubmit runs the report steps, each individually best-effort: a
// failure in one never blocks the others.
func (m *Manager) buildAndSubmit(reason string, callAbort bool) {
	// The capturer drops this package's frames by file path, so the walk
	// starts at zero regardless of how deep the funnel chain runs.
	frames, crashedFunction := callstack.Capture(0)
	if crashedFunction != "" {
		m.logger.Error("fatal error", "reason", reason, "crashed_function", crashedFunction)
	} else {
		m.logger.Error("fatal error", "reason", reason)
	}

	annotations := m.buildAnnotations(reason, frames)

	// The backend must be guaranteed able to receive this report even if
	// the crashed process left it inconsistent; re-establishing it is an
	// idempotent, supported recovery step.
	ctx := context.Background()
	if err := m.setupBackend(ctx); err != nil {
		m.logger.Error("backend re-setup failed", "error", err)
	}
	if m.backend != nil {
		if id, err := m.backend.SetAnnotations(annotations); err != nil {
			m.logger.Error("persisting crash report failed", "error", err)
		} else {
			m.logger.Info("crash report persisted", "id", id)
		}
	}

	if callAbort {
		m.abortFn()
	}
}

// buildAnnotations assembles the fixed-key annotation map. Every key is
// always present; values degrade to a placeholder when their computation
// fails.
func (m *Manager) buildAnnotations(reason string, frames []callstack.Frame) map[string]string {
	ann := make(map[string]string, 18)
	if frames == nil {
		frames = []callstack.Frame{}
	}

	ann["Time elapsed"] = fmt.Sprintf("%ds", int(m.Uptime().Seconds()))

	if m.safeIsActive() {
		ann["Status"] = "initialized"
	} else {
		ann["Status"] = "shutdown"
	}
	ann["Leaks"] = m.safeLeaks()

	usage := m.sys.CaptureUsage()
	if usage.MemoryValid {
		ann["Total memory"] = sysinfo.PrettyBytes(usage.TotalPhysicalMemory)
		ann["Total used memory"] = withPercentage(usage.UsedPhysicalMemory, usage.TotalPhysicalMemory)
		ann[fmt.Sprintf("Total %s memory", m.product)] = withPercentage(usage.ProcessMemory, usage.TotalPhysicalMemory)
	} else {
		ann["Total memory"] = unknownValue
		ann["Total used memory"] = unknownValue
		ann[fmt.Sprintf("Total %s memory", m.product)] = unknownValue
	}
	if usage.CPUValid {
		ann["CPU usage"] = fmt.Sprintf("%d%%", int(usage.CPUPercent))
	} else {
		ann["CPU usage"] = unknownValue
	}

	ann["OBS errors"] = jsonDump(orEmpty(m.safeLogErrors()))
	ann["OBS warnings"] = jsonDump(orEmpty(m.safeLogWarnings()))
	ann["OBS log general"] = jsonDump(orEmpty(m.safeDrainGeneral()))
	ann["Process List"] = jsonDump(m.sys.CaptureProcessList())
	ann["Manual callstack"] = jsonDump(frames)
	ann["Crash reason"] = reason
	ann["Computer name"] = m.sys.CaptureComputerName()
	ann["Breadcrumbs"] = jsonDump(m.log.Breadcrumbs())
	ann["Warnings"] = jsonDump(m.log.Warnings())
	ann["GPUs"] = jsonDump(orEmpty(m.sys.CaptureGPUNames()))

	return ann
}

func withPercentage(part, total uint64) string {
	if total == 0 {
		return sysinfo.PrettyBytes(part)
	}
	return fmt.Sprintf("%s - percentage: %.1f%%",
		sysinfo.PrettyBytes(part), 100*float64(part)/float64(total))
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// jsonDump serializes a diagnostic value for a single report attribute,
// degrading to the placeholder instead of failing the report.
func jsonDump(v any) string {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return unknownValue
	}
	return string(data)
}

// The safe* helpers query the engine without trusting it: the engine may be
// the very thing that crashed, and a faulting diagnostic query degrades to
// a neutral value instead of escalating.

func (m *Manager) safeIsActive() (active bool) {
	defer func() { _ = recover() }()
	if m.engine == nil {
		return false
	}
	return m.engine.IsActive()
}

func (m *Manager) safeLeaks() (out string) {
	out = unknownValue
	defer func() { _ = recover() }()
	if m.engine == nil {
		return out
	}
	return fmt.Sprintf("%d", m.engine.NumAllocations())
}

func (m *Manager) safeLogErrors() (out []string) {
	defer func() { _ = recover() }()
	if m.engine == nil {
		return nil
	}
	return m.engine.LogErrors()
}

func (m *Manager) safeLogWarnings() (out []string) {
	defer func() { _ = recover() }()
	if m.engine == nil {
		return nil
	}
	return m.engine.LogWarnings()
}

func (m *Manager) safeDrainGeneral() (out []string) {
	defer func() { _ = recover() }()
	if m.engine == nil {
		return nil
	}
	return m.engine.DrainLogGeneral()
}
