// Package callstack walks the current goroutine's return-address chain into
// a structured, symbol-resolved frame list for crash reports.
//
// The walk must be safe to run while the process is in an unknown state:
// every resolution failure is absorbed as an omitted frame and the capture
// itself never panics outward.
package callstack

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// maxRawFrames bounds the raw address walk.
	maxRawFrames = 62
	// maxShownFrames bounds how many resolved entries a report carries; the
	// backend cannot display more in a single attribute.
	maxShownFrames = 50
)

// reporterPathFragments identify the crash-reporting subsystem's own source
// files; their frames are dropped wherever they sit in the walk so crash
// grouping is not polluted by the reporter's funnel.
var reporterPathFragments = []string{
	"internal/callstack/",
	"internal/crash/",
}

// panicDispatchFunctions is the runtime's panic plumbing between the
// faulting statement and the recovering funnel; dropped so the innermost
// resolved frame is the code that actually faulted.
var panicDispatchFunctions = map[string]bool{
	"runtime.gopanic":  true,
	"runtime.sigpanic": true,
}

// notInAppPrefixes marks functions belonging to the runtime library; the
// backend de-prioritizes them when grouping crashes.
var notInAppPrefixes = []string{"runtime.", "reflect.", "syscall.", "internal/"}

// OmittedRange is a compressed run of consecutive frames that could not be
// resolved.
type OmittedRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Frame is one resolved call-stack entry, innermost first in a capture.
type Frame struct {
	Function        string        `json:"function"`
	File            string        `json:"filename"`
	Line            int           `json:"lineno"`
	InstructionAddr string        `json:"instruction_addr"`
	SymbolAddr      string        `json:"symbol_addr"`
	InApp           bool          `json:"in_app"`
	FramesOmitted   *OmittedRange `json:"frames_omitted,omitempty"`
}

// rawFrame is an unprocessed walk entry. An empty function name means
// symbol resolution failed for that address.
type rawFrame struct {
	pc       uintptr
	entry    uintptr
	function string
	file     string
	line     int
}

// Capture walks the calling goroutine's stack, excluding skip frames on top
// of the capturer's own, and returns the resolved frames innermost first
// together with the name of the crashed function for quick triage.
func Capture(skip int) (frames []Frame, crashedFunction string) {
	// A faulting diagnostic subsystem must not crash the crash handler.
	defer func() {
		_ = recover()
	}()

	pcs := make([]uintptr, maxRawFrames)
	// +2 skips runtime.Callers and Capture itself.
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil, ""
	}

	raw := make([]rawFrame, 0, n)
	iter := runtime.CallersFrames(pcs[:n])
	for {
		fr, more := iter.Next()
		raw = append(raw, rawFrame{
			pc:       fr.PC,
			entry:    fr.Entry,
			function: fr.Function,
			file:     fr.File,
			line:     fr.Line,
		})
		if !more {
			break
		}
	}

	return render(raw)
}

// render turns a raw walk into report frames, innermost first.
//
// Unresolvable entries are never emitted one by one: consecutive failures
// accumulate into a pending run that the next resolved frame absorbs as a
// compressed omitted range. Frames belonging to the reporting subsystem and
// to the runtime's panic dispatch are dropped entirely. The innermost
// resolved frame names the crashed function.
func render(raw []rawFrame) ([]Frame, string) {
	frames := make([]Frame, 0, len(raw))
	crashed := ""
	var pending []int

	for i, rf := range raw {
		if len(frames) >= maxShownFrames {
			break
		}

		if rf.function == "" {
			pending = append(pending, i)
			continue
		}
		if isReporterFrame(rf.file) || panicDispatchFunctions[rf.function] {
			continue
		}

		frame := Frame{
			Function:        rf.function,
			File:            filepath.Base(rf.file),
			Line:            rf.line,
			InstructionAddr: formatAddr(rf.pc),
			SymbolAddr:      formatAddr(rf.entry),
			InApp:           isInApp(rf.function),
		}
		if len(pending) > 0 {
			frame.FramesOmitted = &OmittedRange{From: pending[0], To: pending[len(pending)-1]}
			pending = nil
		}
		if crashed == "" {
			crashed = rf.function
		}
		frames = append(frames, frame)
	}

	return frames, crashed
}

func isReporterFrame(file string) bool {
	for _, fragment := range reporterPathFragments {
		if strings.Contains(file, fragment) {
			return true
		}
	}
	return false
}

func isInApp(function string) bool {
	for _, prefix := range notInAppPrefixes {
		if strings.HasPrefix(function, prefix) {
			return false
		}
	}
	return true
}

func formatAddr(addr uintptr) string {
	return fmt.Sprintf("0x%x", uint64(addr))
}
