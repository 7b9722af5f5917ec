package crash

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/crashguard/internal/engine"
	"github.com/hugo-lorenzo-mato/crashguard/internal/sysinfo"
)

// deadPlatform is a PlatformDiagnostics whose every query fails.
type deadPlatform struct{}

func (deadPlatform) CaptureUsage() sysinfo.Usage {
	return sysinfo.Usage{}
}

func (deadPlatform) CaptureComputerName() string {
	return "unknown"
}

func (deadPlatform) CaptureProcessList() map[string]int32 {
	return map[string]int32{}
}

func (deadPlatform) CaptureGPUNames() []string {
	return nil
}

// panickyEngine faults on every query.
type panickyEngine struct{}

func (panickyEngine) IsActive() bool                        { panic("engine corrupted") }
func (panickyEngine) Shutdown() error                       { panic("engine corrupted") }
func (panickyEngine) SetFatalHandler(_ engine.FatalHandler) {}
func (panickyEngine) LogErrors() []string                   { panic("engine corrupted") }
func (panickyEngine) LogWarnings() []string                 { panic("engine corrupted") }
func (panickyEngine) DrainLogGeneral() []string             { panic("engine corrupted") }
func (panickyEngine) NumAllocations() int64                 { panic("engine corrupted") }

// fixedKeys is the annotation contract with the backend.
func fixedKeys(product string) []string {
	return []string{
		"Time elapsed",
		"Status",
		"Leaks",
		"Total memory",
		"Total used memory",
		"Total " + product + " memory",
		"CPU usage",
		"OBS errors",
		"OBS warnings",
		"OBS log general",
		"Process List",
		"Manual callstack",
		"Crash reason",
		"Computer name",
		"Breadcrumbs",
		"Warnings",
	}
}

func TestBuildAnnotations_AllKeysPresentWhenEverythingFails(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{}, panickyEngine{}, nil, nil)
	m.sys = deadPlatform{}

	ann := m.buildAnnotations("total failure", nil)

	for _, key := range fixedKeys(defaultProduct) {
		assert.Contains(t, ann, key, "missing fixed key %q", key)
	}
	assert.Equal(t, unknownValue, ann["Total memory"])
	assert.Equal(t, unknownValue, ann["Total used memory"])
	assert.Equal(t, unknownValue, ann["Total obs-server memory"])
	assert.Equal(t, unknownValue, ann["CPU usage"])
	assert.Equal(t, unknownValue, ann["Leaks"])
	assert.Equal(t, "shutdown", ann["Status"], "a faulting IsActive degrades to shutdown")
	assert.Equal(t, "total failure", ann["Crash reason"])
	assert.Equal(t, "unknown", ann["Computer name"])
}

func TestBuildAnnotations_HealthyEngine(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{Product: "slobs"})
	h.eng.Startup()
	h.eng.Allocate(42)
	h.eng.Logs.AppendError("render: device lost")
	h.eng.Logs.AppendWarning("encoder lagging")
	h.eng.Logs.AppendGeneral("stream key loaded")
	h.m.AddBreadcrumb("go live clicked")
	h.m.AddWarning("dropped frames")

	ann := h.m.buildAnnotations("unit test", nil)

	for _, key := range fixedKeys("slobs") {
		require.Contains(t, ann, key)
	}
	assert.Equal(t, "initialized", ann["Status"])
	assert.Equal(t, "42", ann["Leaks"])
	assert.Contains(t, ann["OBS errors"], "render: device lost")
	assert.Contains(t, ann["OBS warnings"], "encoder lagging")
	assert.Contains(t, ann["OBS log general"], "stream key loaded")
	assert.Contains(t, ann["Breadcrumbs"], "go live clicked")
	assert.Contains(t, ann["Warnings"], "dropped frames")
	assert.True(t, strings.HasSuffix(ann["Time elapsed"], "s"))

	// The general queue is consume-once.
	ann2 := h.m.buildAnnotations("second pass", nil)
	assert.NotContains(t, ann2["OBS log general"], "stream key loaded")
	assert.Contains(t, ann2["OBS errors"], "render: device lost", "errors are retained")
}

func TestBuildAnnotations_CallstackIsStructuredJSON(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{})
	h.m.BuildAndSubmit("stack check", false)

	reports := h.pendingReports(t)
	require.Len(t, reports, 1)

	var frames []map[string]any
	require.NoError(t, json.Unmarshal([]byte(reports[0].Annotations["Manual callstack"]), &frames))
	require.NotEmpty(t, frames, "live capture must yield frames")
	for _, f := range frames {
		assert.Contains(t, f, "function")
		assert.Contains(t, f, "filename")
		assert.Contains(t, f, "lineno")
	}
}

func TestHandlePanic_StackExcludesReporterFrames(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{})
	h.m.Protect(func() { panic("torn frame buffer in compositor") })

	reports := h.pendingReports(t)
	require.Len(t, reports, 1)

	var frames []map[string]any
	require.NoError(t, json.Unmarshal([]byte(reports[0].Annotations["Manual callstack"]), &frames))
	require.NotEmpty(t, frames)

	// The funnel between the panic and the capture must not appear in the
	// report, least of all as the innermost frame.
	for _, f := range frames {
		fn, _ := f["function"].(string)
		assert.NotContains(t, fn, "HandlePanic")
		assert.NotContains(t, fn, "handleCrash")
		assert.NotContains(t, fn, "buildAndSubmit")
		assert.NotEqual(t, "runtime.gopanic", fn)
		assert.NotContains(t, fn, "internal/crash.")
		assert.NotContains(t, fn, "internal/callstack.")
	}
}

func TestWithPercentage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "512mb - percentage: 50.0%", withPercentage(512*1024*1024, 1024*1024*1024))
	assert.Equal(t, "1kb", withPercentage(1024, 0), "zero total skips the percentage")
}

func TestIPCValuesToAnnotations(t *testing.T) {
	t.Parallel()

	got := IPCValuesToAnnotations([]IPCValue{
		{Kind: IPCNull},
		{Kind: IPCInt, Int: -7},
		{Kind: IPCUint, Uint: 7},
		{Kind: IPCFloat, Float: 1.5},
		{Kind: IPCString, Str: "scene-1"},
		{Kind: IPCBinary, Binary: []byte{0x01}},
	})

	want := map[string]string{
		"arg0": "null",
		"arg1": "-7",
		"arg2": "7",
		"arg3": "1.5",
		"arg4": "scene-1",
		"arg5": "",
	}
	assert.Equal(t, want, got)
}
