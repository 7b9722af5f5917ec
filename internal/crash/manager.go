package crash

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/breadcrumb"
	"github.com/hugo-lorenzo-mato/crashguard/internal/crashpad"
	"github.com/hugo-lorenzo-mato/crashguard/internal/engine"
	"github.com/hugo-lorenzo-mato/crashguard/internal/sysinfo"
)

// defaultProduct names the protected product in the per-process memory
// annotation key when no name is configured.
const defaultProduct = "obs-server"

// PlatformDiagnostics is the capability interface over platform state
// capture. The production implementation is sysinfo.Provider; tests swap in
// a fake to exercise degraded-metric paths.
type PlatformDiagnostics interface {
	CaptureUsage() sysinfo.Usage
	CaptureComputerName() string
	CaptureProcessList() map[string]int32
	CaptureGPUNames() []string
}

// Config carries the manager's startup settings.
type Config struct {
	// Product names the host product; it parameterizes the
	// "Total <product> memory" annotation key.
	Product string

	// KnownCrashSignatures are the substrings identifying benign fatal
	// errors that terminate quietly instead of producing a report.
	KnownCrashSignatures []string

	// UploadsEnabled toggles backend report uploading at setup time.
	UploadsEnabled bool
}

// Manager owns the process-wide crash state: the session clock, the
// diagnostic log, the reentrancy latch, and the wiring to the engine and
// the report backend. Create one per process and hand it to every hook
// installer.
type Manager struct {
	product string
	uploads bool

	filter  *Filter
	guard   guard
	log     *breadcrumb.Log
	sys     PlatformDiagnostics
	engine  engine.Engine
	backend *crashpad.Client
	logger  *slog.Logger

	startedAt time.Time

	// exitFn and abortFn are the terminal actions, injectable for tests.
	exitFn  func(code int)
	abortFn func()
}

// NewManager wires a crash manager. The engine and backend are the two
// external collaborators; either may be nil in reduced setups (annotations
// degrade to placeholders, reports are dropped).
func NewManager(cfg Config, eng engine.Engine, backend *crashpad.Client, logger *slog.Logger) *Manager {
	if cfg.Product == "" {
		cfg.Product = defaultProduct
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		product:   cfg.Product,
		uploads:   cfg.UploadsEnabled,
		filter:    NewFilter(cfg.KnownCrashSignatures),
		log:       breadcrumb.NewLog(),
		sys:       sysinfo.NewProvider(),
		engine:    eng,
		backend:   backend,
		logger:    logger,
		startedAt: time.Now(),
		exitFn:    os.Exit,
		abortFn:   abortProcess,
	}
}

// Initialize starts the session clock, brings up the report backend and
// installs the crash hooks. A backend failure aborts initialization before
// any hook is installed: the process keeps running, unprotected, and the
// caller decides how loudly to complain.
func (m *Manager) Initialize(ctx context.Context) error {
	m.startedAt = time.Now()

	if err := m.setupBackend(ctx); err != nil {
		return fmt.Errorf("crash reporting setup: %w", err)
	}

	if m.engine != nil {
		m.engine.SetFatalHandler(m.onEngineFatal)
	}
	m.installSignalHandler()

	m.logger.Info("crash manager initialized", "product", m.product)
	return nil
}

// setupBackend (re-)establishes the backend connection. It is idempotent
// by design: the crash path re-runs it so a report can be received even
// when the original handler connection is in an inconsistent state.
func (m *Manager) setupBackend(ctx context.Context) error {
	if m.backend == nil {
		return nil
	}
	if err := m.backend.Initialize(ctx); err != nil {
		return err
	}
	if err := m.backend.EnableUploads(ctx, m.uploads); err != nil {
		return err
	}
	return m.backend.StartHandler(ctx)
}

// Close releases the backend connection. The diagnostic log survives until
// process exit.
func (m *Manager) Close() error {
	if m.backend == nil {
		return nil
	}
	return m.backend.Close()
}

// Uptime returns the elapsed session time.
func (m *Manager) Uptime() time.Duration {
	return time.Since(m.startedAt)
}

// AddBreadcrumb records a timeline marker for later crash reports.
func (m *Manager) AddBreadcrumb(message string) {
	m.log.AddBreadcrumb(message)
}

// AddBreadcrumbf records a formatted timeline marker.
func (m *Manager) AddBreadcrumbf(format string, args ...any) {
	m.log.AddBreadcrumb(fmt.Sprintf(format, args...))
}

// AddWarning records a warning for later crash reports.
func (m *Manager) AddWarning(message string) {
	m.log.AddWarning(message)
}

// ClearBreadcrumbs discards the recorded breadcrumbs.
func (m *Manager) ClearBreadcrumbs() {
	m.log.ClearBreadcrumbs()
}

// onEngineFatal is the engine's fatal-error callback: the raw format string
// is what the known-crash filter inspects, the formatted message is what a
// report carries.
func (m *Manager) onEngineFatal(format string, args ...any) {
	message := safeSprintf(format, args...)
	if !m.TryHandleCrash(format, message) {
		m.HandleCrash(message)
	}
}

// safeSprintf formats without trusting the format string; a mismatched
// format must not take down the crash path.
func safeSprintf(format string, args ...any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = format
		}
	}()
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
