// Package crashpad implements the crash-report backend: a SQLite-backed
// report database, atomically written pending-report files, and the client
// the crash manager drives at crash time.
//
// The split mirrors an out-of-process handler design. The crashing process
// only ever performs one simple synchronous step, writing a pending JSON
// file; the handler process ingests pending files into the database and
// uploads them.
package crashpad

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
)

// Report is one persisted crash report.
type Report struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	Reason      string            `json:"reason"`
	Annotations map[string]string `json:"annotations"`
	Uploaded    bool              `json:"uploaded,omitempty"`
}

// NewReport builds a report from an annotation map. The crash reason is
// lifted from the annotations when present.
func NewReport(annotations map[string]string) Report {
	return Report{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Reason:      annotations["Crash reason"],
		Annotations: annotations,
	}
}

// pendingDirName is the subdirectory of the database path holding reports
// not yet ingested by the handler.
const pendingDirName = "pending"

// PendingDir returns the pending-report directory under a database path.
func PendingDir(databasePath string) string {
	return filepath.Join(databasePath, pendingDirName)
}

// WritePending persists a report into the pending directory. The write is
// atomic so the handler never observes a half-written report, and it is
// plain synchronous file I/O so it stays safe on the crash path.
func WritePending(databasePath string, r Report) (string, error) {
	dir := PendingDir(databasePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating pending dir: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}

	path := filepath.Join(dir, "report-"+r.ID+".json")
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing pending report: %w", err)
	}
	return path, nil
}

// ReadPending loads one pending report file.
func ReadPending(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("reading pending report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("parsing pending report: %w", err)
	}
	return r, nil
}

// renderUploadBody serializes a report for submission to the collector.
func renderUploadBody(r Report) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling upload body: %w", err)
	}
	return data, nil
}

// ListPending returns the pending report files under a database path,
// oldest first. A missing directory yields an empty list.
func ListPending(databasePath string) ([]string, error) {
	dir := PendingDir(databasePath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading pending dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "report-") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
