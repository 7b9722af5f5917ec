package crashpad

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

const uploadsEnabledKey = "uploads_enabled"

// Database is the SQLite crash-report store shared by the client (settings)
// and the handler process (report ingest, upload bookkeeping).
type Database struct {
	db   *sql.DB
	path string
}

// OpenDatabase opens (creating if needed) the report database under the
// given database path.
func OpenDatabase(databasePath string) (*Database, error) {
	if err := os.MkdirAll(databasePath, 0o750); err != nil {
		return nil, fmt.Errorf("creating database dir: %w", err)
	}

	file := filepath.Join(databasePath, "crashguard.db")
	db, err := sql.Open("sqlite", file+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	d := &Database{db: db, path: file}
	if err := d.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return d, nil
}

// Close closes the underlying connection.
func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) migrate() error {
	var version int
	err := d.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		version = 0
	}
	if version < 1 {
		if _, err := d.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	return nil
}

// SetUploadsEnabled persists the upload toggle.
func (d *Database) SetUploadsEnabled(ctx context.Context, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	_, err := d.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		uploadsEnabledKey, value)
	if err != nil {
		return fmt.Errorf("storing uploads setting: %w", err)
	}
	return nil
}

// UploadsEnabled reads the upload toggle. Defaults to false when unset.
func (d *Database) UploadsEnabled(ctx context.Context) (bool, error) {
	var value string
	err := d.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", uploadsEnabledKey).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading uploads setting: %w", err)
	}
	return value == "1", nil
}

// InsertReport stores a report. Inserting an already-stored report ID is a
// no-op, so ingesting the same pending file twice cannot duplicate it.
func (d *Database) InsertReport(ctx context.Context, r Report) error {
	annotations, err := json.Marshal(r.Annotations)
	if err != nil {
		return fmt.Errorf("marshaling annotations: %w", err)
	}
	_, err = d.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO reports (id, created_at, reason, annotations, uploaded) VALUES (?, ?, ?, ?, ?)",
		r.ID, r.CreatedAt.Format(time.RFC3339Nano), r.Reason, string(annotations), boolToInt(r.Uploaded))
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// GetReport loads one report by ID.
func (d *Database) GetReport(ctx context.Context, id string) (Report, error) {
	row := d.db.QueryRowContext(ctx,
		"SELECT id, created_at, reason, annotations, uploaded FROM reports WHERE id = ?", id)
	return scanReport(row)
}

// ListReports returns all reports, newest first.
func (d *Database) ListReports(ctx context.Context) ([]Report, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT id, created_at, reason, annotations, uploaded FROM reports ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// PendingUploads returns reports not yet uploaded, oldest first.
func (d *Database) PendingUploads(ctx context.Context, limit int) ([]Report, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT id, created_at, reason, annotations, uploaded FROM reports WHERE uploaded = 0 ORDER BY created_at ASC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending uploads: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// MarkUploaded records a successful upload.
func (d *Database) MarkUploaded(ctx context.Context, id string) error {
	_, err := d.db.ExecContext(ctx,
		"UPDATE reports SET uploaded = 1, upload_attempts = upload_attempts + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking report uploaded: %w", err)
	}
	return nil
}

// RecordUploadAttempt bumps the attempt counter after a failed upload.
func (d *Database) RecordUploadAttempt(ctx context.Context, id string) error {
	_, err := d.db.ExecContext(ctx,
		"UPDATE reports SET upload_attempts = upload_attempts + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("recording upload attempt: %w", err)
	}
	return nil
}

// Prune deletes the oldest reports beyond maxReports. A non-positive limit
// disables pruning.
func (d *Database) Prune(ctx context.Context, maxReports int) error {
	if maxReports <= 0 {
		return nil
	}
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM reports WHERE id NOT IN (
			SELECT id FROM reports ORDER BY created_at DESC LIMIT ?
		)`, maxReports)
	if err != nil {
		return fmt.Errorf("pruning reports: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (Report, error) {
	var r Report
	var createdAt, annotations string
	var uploaded int
	if err := row.Scan(&r.ID, &createdAt, &r.Reason, &annotations, &uploaded); err != nil {
		return Report{}, fmt.Errorf("scanning report: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Report{}, fmt.Errorf("parsing report timestamp: %w", err)
	}
	r.CreatedAt = ts
	if err := json.Unmarshal([]byte(annotations), &r.Annotations); err != nil {
		return Report{}, fmt.Errorf("parsing report annotations: %w", err)
	}
	r.Uploaded = uploaded == 1
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
