package crashpad

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// handlerPIDFile is written by the handler process once it is ready to
// receive reports. StartHandler polls for it.
const handlerPIDFile = "handler.pid"

// ErrNotInitialized is returned when the client is driven before
// Initialize succeeded.
var ErrNotInitialized = errors.New("crashpad: client not initialized")

// Options configures the backend client.
type Options struct {
	// DatabasePath is the directory holding the report database and the
	// pending-report spool.
	DatabasePath string

	// UploadURL is where the handler submits reports. Empty disables
	// uploading; reports are still persisted locally.
	UploadURL string

	// HandlerPath is the handler executable. Empty skips spawning and the
	// host runs without an out-of-process handler.
	HandlerPath string

	// ExtraArguments are appended to the handler command line.
	ExtraArguments []string

	// StartTimeout bounds the wait for the handler to come up.
	StartTimeout time.Duration

	// Sanitize, when set, redacts the annotation map before it is spooled.
	Sanitize func(map[string]string) map[string]string
}

// Client wires the crashing process to the report backend. Initialize and
// StartHandler are idempotent: the crash path re-runs them to guarantee the
// backend can receive the report even when the original connection is in an
// inconsistent state.
type Client struct {
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	db         *Database
	handlerPID int
}

// NewClient creates a backend client. Initialize must be called before use.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{opts: opts, logger: logger}
}

// Initialize opens the report database and prepares the pending spool.
// Calling it on an initialized client re-opens the database, which is the
// deliberate recovery step on the crash path.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		_ = c.db.Close()
		c.db = nil
	}

	db, err := OpenDatabase(c.opts.DatabasePath)
	if err != nil {
		return fmt.Errorf("initializing report database: %w", err)
	}
	if err := os.MkdirAll(PendingDir(c.opts.DatabasePath), 0o750); err != nil {
		_ = db.Close()
		return fmt.Errorf("preparing pending dir: %w", err)
	}

	c.db = db
	_ = ctx
	return nil
}

// EnableUploads toggles report uploading.
func (c *Client) EnableUploads(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	db := c.db
	c.mu.Unlock()
	if db == nil {
		return ErrNotInitialized
	}
	return db.SetUploadsEnabled(ctx, enabled)
}

// StartHandler spawns the handler process and waits for it to signal
// readiness. A handler that is already running (live PID file) is reused.
// Spawn failure leaves the host process running without crash protection;
// the caller decides how loudly to complain.
func (c *Client) StartHandler(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opts.HandlerPath == "" {
		return nil
	}

	if pid, ok := c.readHandlerPID(); ok {
		c.handlerPID = pid
		return nil
	}

	args := []string{
		"--database", c.opts.DatabasePath,
		"--url", c.opts.UploadURL,
	}
	args = append(args, c.opts.ExtraArguments...)

	cmd := exec.Command(c.opts.HandlerPath, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting crash handler: %w", err)
	}
	// The handler daemonizes itself via its PID file; the spawned process
	// is not waited on here.
	go func() { _ = cmd.Wait() }()

	deadline := time.Now().Add(c.opts.StartTimeout)
	for time.Now().Before(deadline) {
		if pid, ok := c.readHandlerPID(); ok {
			c.handlerPID = pid
			c.logger.Info("crash handler started", "pid", pid)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return fmt.Errorf("crash handler did not become ready within %s", c.opts.StartTimeout)
}

// HandlerPID returns the PID of the running handler, or 0.
func (c *Client) HandlerPID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlerPID
}

func (c *Client) readHandlerPID() (int, bool) {
	data, err := os.ReadFile(filepath.Join(c.opts.DatabasePath, handlerPIDFile))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// SetAnnotations persists an annotation map as a pending report. This is
// the one step the crash path depends on, so it is a single atomic file
// write; database ingest happens out of process.
func (c *Client) SetAnnotations(annotations map[string]string) (string, error) {
	if c.opts.Sanitize != nil {
		annotations = c.opts.Sanitize(annotations)
	}
	report := NewReport(annotations)
	path, err := WritePending(c.opts.DatabasePath, report)
	if err != nil {
		return "", err
	}
	c.logger.Info("crash report spooled", "id", report.ID, "path", path)
	return report.ID, nil
}

// Database exposes the open report database, or nil before Initialize.
func (c *Client) Database() *Database {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db
}

// Close releases the database connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
