package crashpad

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestor_ScanMovesPendingIntoDatabase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := OpenDatabase(dir)
	require.NoError(t, err)
	defer db.Close()

	r := testReport("ingest me")
	_, err = WritePending(dir, r)
	require.NoError(t, err)

	in := NewIngestor(db, dir, "", 0, nil)
	require.NoError(t, in.Scan(ctx))

	got, err := db.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "ingest me", got.Reason)

	paths, err := ListPending(dir)
	require.NoError(t, err)
	assert.Empty(t, paths, "pending file removed after ingest")

	// A second scan is a no-op.
	require.NoError(t, in.Scan(ctx))
	reports, err := db.ListReports(ctx)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestIngestor_UploadsDisabledRetainsReports(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	db, err := OpenDatabase(dir)
	require.NoError(t, err)
	defer db.Close()

	_, err = WritePending(dir, testReport("keep local"))
	require.NoError(t, err)

	in := NewIngestor(db, dir, server.URL, 0, nil)
	require.NoError(t, in.Scan(ctx))

	assert.Zero(t, hits.Load(), "no upload while uploads disabled")
	pending, err := db.PendingUploads(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "report retained un-uploaded")
}

func TestIngestor_UploadsWhenEnabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.NotEmpty(t, r.Header.Get("X-Crashguard-Report-ID"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	db, err := OpenDatabase(dir)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.SetUploadsEnabled(ctx, true))

	_, err = WritePending(dir, testReport("send me"))
	require.NoError(t, err)

	in := NewIngestor(db, dir, server.URL, 0, nil)
	require.NoError(t, in.Scan(ctx))

	assert.Equal(t, int32(1), hits.Load())
	pending, err := db.PendingUploads(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "uploaded report marked as sent")

	// Uploads are attempted once per report.
	require.NoError(t, in.Scan(ctx))
	assert.Equal(t, int32(1), hits.Load())
}

func TestIngestor_UploadFailureKeepsReportPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	db, err := OpenDatabase(dir)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.SetUploadsEnabled(ctx, true))

	_, err = WritePending(dir, testReport("retry me"))
	require.NoError(t, err)

	in := NewIngestor(db, dir, server.URL, 0, nil)
	require.NoError(t, in.Scan(ctx))

	pending, err := db.PendingUploads(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "failed upload stays pending for a later pass")
}

func TestIngestor_WatchCreatesSpoolOnFreshDatabase(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	// A standalone handler: database opened, but no host ever spooled a
	// report, so pending/ does not exist yet.
	db, err := OpenDatabase(dir)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := NewIngestor(db, dir, "", 0, nil)
	err = in.Watch(ctx)
	require.ErrorIs(t, err, context.Canceled, "watch must reach its event loop, not fail on the missing spool")
	assert.DirExists(t, PendingDir(dir))
}

func TestIngestor_PIDFileLifecycle(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	db, err := OpenDatabase(dir)
	require.NoError(t, err)
	defer db.Close()

	in := NewIngestor(db, dir, "", 0, nil)
	require.NoError(t, in.WritePIDFile())

	c := NewClient(Options{DatabasePath: dir}, nil)
	pid, ok := c.readHandlerPID()
	require.True(t, ok)
	assert.Positive(t, pid)

	in.RemovePIDFile()
	_, ok = c.readHandlerPID()
	assert.False(t, ok)
}
