package crashpad

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// Ingestor is the handler-process side of the backend: it moves pending
// report files into the database, uploads unsent reports, and prunes old
// ones.
type Ingestor struct {
	db           *Database
	databasePath string
	uploadURL    string
	maxReports   int
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewIngestor creates an ingestor over an open database.
func NewIngestor(db *Database, databasePath, uploadURL string, maxReports int, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Ingestor{
		db:           db,
		databasePath: databasePath,
		uploadURL:    uploadURL,
		maxReports:   maxReports,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
}

// WritePIDFile marks this handler as ready for StartHandler pollers.
func (in *Ingestor) WritePIDFile() error {
	path := filepath.Join(in.databasePath, handlerPIDFile)
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

// RemovePIDFile clears the readiness marker on shutdown.
func (in *Ingestor) RemovePIDFile() {
	_ = os.Remove(filepath.Join(in.databasePath, handlerPIDFile))
}

// Scan ingests every pending report file, then uploads and prunes.
func (in *Ingestor) Scan(ctx context.Context) error {
	paths, err := ListPending(in.databasePath)
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := in.ingestFile(ctx, path); err != nil {
			in.logger.Warn("ingest failed", "path", path, "error", err)
		}
	}
	if err := in.uploadPending(ctx); err != nil {
		in.logger.Warn("upload pass failed", "error", err)
	}
	if err := in.db.Prune(ctx, in.maxReports); err != nil {
		in.logger.Warn("prune failed", "error", err)
	}
	return nil
}

// Watch runs an initial scan and then processes pending reports as they
// appear, until the context is cancelled.
func (in *Ingestor) Watch(ctx context.Context) error {
	if err := in.Scan(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// A standalone handler may start before any host ever spooled a report;
	// the spool directory only exists once someone creates it.
	pending := PendingDir(in.databasePath)
	if err := os.MkdirAll(pending, 0o750); err != nil {
		return fmt.Errorf("preparing pending dir: %w", err)
	}
	if err := watcher.Add(pending); err != nil {
		return fmt.Errorf("watching pending dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// renameio lands files via rename; a fresh pending report shows
			// up as Create.
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			if err := in.Scan(ctx); err != nil && ctx.Err() == nil {
				in.logger.Warn("scan after event failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			in.logger.Warn("watcher error", "error", err)
		}
	}
}

// ingestFile moves one pending file into the database. The file is removed
// only after the insert succeeds; inserts are idempotent by report ID, so a
// crash between the two steps cannot lose or duplicate a report.
func (in *Ingestor) ingestFile(ctx context.Context, path string) error {
	report, err := ReadPending(path)
	if err != nil {
		return err
	}
	if err := in.db.InsertReport(ctx, report); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing ingested file: %w", err)
	}
	in.logger.Info("report ingested", "id", report.ID, "reason", report.Reason)
	return nil
}

// uploadPending submits unsent reports with bounded concurrency. Uploads
// are skipped entirely when disabled or when no URL is configured.
func (in *Ingestor) uploadPending(ctx context.Context) error {
	if in.uploadURL == "" {
		return nil
	}
	enabled, err := in.db.UploadsEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}

	reports, err := in.db.PendingUploads(ctx, 32)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, report := range reports {
		report := report
		g.Go(func() error {
			if err := in.upload(ctx, report); err != nil {
				in.logger.Warn("upload failed", "id", report.ID, "error", err)
				_ = in.db.RecordUploadAttempt(ctx, report.ID)
				return nil // one failed upload must not stop the rest
			}
			return in.db.MarkUploaded(ctx, report.ID)
		})
	}
	return g.Wait()
}

func (in *Ingestor) upload(ctx context.Context, r Report) error {
	body, err := renderUploadBody(r)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, in.uploadURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Crashguard-Report-ID", r.ID)

	resp, err := in.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("uploading report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload rejected: %s", resp.Status)
	}
	in.logger.Info("report uploaded", "id", r.ID, "status", resp.Status)
	return nil
}
