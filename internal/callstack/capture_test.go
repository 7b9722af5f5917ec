package callstack

import (
	"strings"
	"testing"
)

func synthetic(n int, unresolved ...int) []rawFrame {
	missing := make(map[int]bool, len(unresolved))
	for _, i := range unresolved {
		missing[i] = true
	}
	raw := make([]rawFrame, n)
	for i := range raw {
		if missing[i] {
			continue
		}
		raw[i] = rawFrame{
			pc:       uintptr(0x1000 + i),
			entry:    uintptr(0x1000),
			function: "app.frame" + string(rune('A'+i)),
			file:     "/src/app/frame.go",
			line:     10 + i,
		}
	}
	return raw
}

func TestRender_GapCompression(t *testing.T) {
	t.Parallel()

	frames, _ := render(synthetic(10, 3, 4, 5))

	if len(frames) != 7 {
		t.Fatalf("expected 7 emitted frames, got %d", len(frames))
	}

	// The frame following the gap absorbs the omitted run.
	var carrier *Frame
	for i := range frames {
		if frames[i].FramesOmitted != nil {
			if carrier != nil {
				t.Fatal("more than one frame carries an omitted range")
			}
			carrier = &frames[i]
		}
	}
	if carrier == nil {
		t.Fatal("no frame carries the omitted range")
	}
	if carrier.Line != 16 { // synthetic frame index 6
		t.Errorf("omitted range attached to wrong frame (line %d)", carrier.Line)
	}
	if carrier.FramesOmitted.From != 3 || carrier.FramesOmitted.To != 5 {
		t.Errorf("omitted range = {%d,%d}, want {3,5}", carrier.FramesOmitted.From, carrier.FramesOmitted.To)
	}
}

func TestRender_TrailingGapIsDropped(t *testing.T) {
	t.Parallel()

	frames, _ := render(synthetic(5, 3, 4))
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for _, f := range frames {
		if f.FramesOmitted != nil {
			t.Error("trailing unresolved run has no following frame and must not be emitted")
		}
	}
}

func TestRender_CrashedFunctionIsInnermostResolved(t *testing.T) {
	t.Parallel()

	_, crashed := render(synthetic(6, 0, 1))
	if crashed != "app.frameC" {
		t.Errorf("crashed function = %q, want innermost resolved %q", crashed, "app.frameC")
	}
}

func TestRender_RuntimeFramesFlaggedNotInApp(t *testing.T) {
	t.Parallel()

	raw := []rawFrame{
		{pc: 1, entry: 1, function: "runtime.mallocgc", file: "/go/src/runtime/malloc.go", line: 1},
		{pc: 2, entry: 2, function: "app.Render", file: "/src/app/render.go", line: 42},
	}
	frames, _ := render(raw)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].InApp {
		t.Error("runtime frame flagged as application code")
	}
	if !frames[1].InApp {
		t.Error("application frame flagged as runtime code")
	}
}

func TestRender_ReporterFramesExcluded(t *testing.T) {
	t.Parallel()

	// The funnel chain above a recovered panic: capturer, crash package,
	// runtime panic dispatch, then the code that actually faulted.
	raw := []rawFrame{
		{pc: 1, entry: 1, function: "crashguard/internal/callstack.Capture", file: "/src/crashguard/internal/callstack/capture.go", line: 60},
		{pc: 2, entry: 2, function: "crashguard/internal/crash.(*Manager).buildAndSubmit", file: "/src/crashguard/internal/crash/report.go", line: 96},
		{pc: 3, entry: 3, function: "crashguard/internal/crash.(*Manager).HandlePanic", file: "/src/crashguard/internal/crash/hooks.go", line: 13},
		{pc: 4, entry: 4, function: "runtime.gopanic", file: "/go/src/runtime/panic.go", line: 770},
		{pc: 5, entry: 5, function: "app.Crash", file: "/src/app/crash.go", line: 7},
		{pc: 6, entry: 6, function: "app.Main", file: "/src/app/main.go", line: 21},
	}
	frames, crashed := render(raw)
	if len(frames) != 2 {
		t.Fatalf("expected reporter and panic-dispatch frames filtered, got %d frames", len(frames))
	}
	if crashed != "app.Crash" {
		t.Errorf("crashed function = %q, want %q", crashed, "app.Crash")
	}
}

func TestRender_ReporterFilterIsPathAnchored(t *testing.T) {
	t.Parallel()

	// internal/crashpad is a different package and must survive the filter.
	raw := []rawFrame{
		{pc: 1, entry: 1, function: "crashguard/internal/crashpad.WritePending", file: "/src/crashguard/internal/crashpad/report.go", line: 56},
	}
	frames, _ := render(raw)
	if len(frames) != 1 {
		t.Fatalf("expected crashpad frame kept, got %d frames", len(frames))
	}
}

func TestRender_ShownFrameCap(t *testing.T) {
	t.Parallel()

	frames, _ := render(synthetic(maxRawFrames))
	if len(frames) > maxShownFrames {
		t.Errorf("emitted %d frames, cap is %d", len(frames), maxShownFrames)
	}
}

func TestCapture_RealStack(t *testing.T) {
	t.Parallel()

	frames, crashed := Capture(0)
	if len(frames) == 0 {
		t.Fatal("expected at least one frame from a live capture")
	}
	if crashed == "" {
		t.Error("crashed function empty on a live capture")
	}
	for _, f := range frames {
		if strings.Contains(f.File, "capture.go") && strings.Contains(f.Function, "callstack") {
			t.Errorf("capturer's own frame leaked into the capture: %+v", f)
		}
		if !strings.HasPrefix(f.InstructionAddr, "0x") {
			t.Errorf("instruction address not hex formatted: %q", f.InstructionAddr)
		}
	}
}
