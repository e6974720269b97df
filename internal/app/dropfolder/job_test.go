package dropfolder_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/op-import/internal/app/dropfolder"
	"github.com/jinford/op-import/internal/core/upload"
	"github.com/jinford/op-import/internal/infra/localfs"
	testutil "github.com/jinford/op-import/internal/testing"
)

type recordingUploader struct {
	mu      sync.Mutex
	sent    []string
	fail    map[string]bool
	entered chan struct{}
	block   chan struct{}
}

func (u *recordingUploader) Send(ctx context.Context, req upload.SendRequest, onProgress upload.ProgressFunc) error {
	if u.entered != nil {
		u.entered <- struct{}{}
	}
	if u.block != nil {
		<-u.block
	}
	n, err := io.Copy(io.Discard, req.Body)
	if err != nil {
		return err
	}
	onProgress(n, req.Size)

	u.mu.Lock()
	defer u.mu.Unlock()
	u.sent = append(u.sent, req.FileName)
	if u.fail[req.FileName] {
		return errors.New("server error")
	}
	return nil
}

func (u *recordingUploader) names() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, len(u.sent))
	copy(out, u.sent)
	u.sent = nil
	return out
}

func newJob(t *testing.T, dir string, uploader upload.Uploader) *dropfolder.Job {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	filter, err := localfs.NewIgnoreFilter(filepath.Join(dir, ".importignore"))
	require.NoError(t, err)

	return dropfolder.NewJob(
		dropfolder.Config{Dir: dir, Schedule: "@every 1h", AllowedExtensions: []string{"zip"}, AnatomyPreset: "_"},
		localfs.NewCollector(filter),
		upload.NewOrchestrator(uploader, upload.WithLogger(logger)),
		logger,
	)
}

func TestJob_RunOnce(t *testing.T) {
	// Setup
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.zip"), []byte("aaa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.zip"), []byte("bb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.zip.part"), []byte("partial"), 0o644))

	uploader := &recordingUploader{fail: map[string]bool{"b.zip": true}}
	job := newJob(t, dir, uploader)
	ctx := context.Background()

	// Execute: 1回目は全て送信し、b.zip は失敗する
	summary, err := job.RunOnce(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Collected)
	assert.Equal(t, 1, summary.Skipped)
	require.NotNil(t, summary.Result)
	assert.Equal(t, 1, summary.Result.SucceededCount())
	assert.Equal(t, 1, summary.Result.FailedCount())
	assert.Equal(t, []string{"a.zip", "b.zip"}, uploader.names())

	// Execute: 2回目は失敗したファイルだけを再送する
	uploader.fail = nil
	summary, err = job.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, []string{"b.zip"}, uploader.names())

	// Execute: 3回目は送信対象なし
	summary, err = job.RunOnce(ctx)
	require.NoError(t, err)
	assert.Nil(t, summary.Result)
	assert.Empty(t, uploader.names())

	// Execute: 更新されたファイルは再送する
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.zip"), []byte("aaaa"), 0o644))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "a.zip"), later, later))
	_, err = job.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.zip"}, uploader.names())
}

func TestJob_RunOnce_NoOverlap(t *testing.T) {
	// Setup
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.zip"), []byte("aaa"), 0o644))

	uploader := &recordingUploader{entered: make(chan struct{}, 1), block: make(chan struct{})}
	job := newJob(t, dir, uploader)

	done := make(chan error, 1)
	go func() {
		_, err := job.RunOnce(context.Background())
		done <- err
	}()

	// Execute: 1回目の転送中に2回目を実行する
	<-uploader.entered
	_, err := job.RunOnce(context.Background())

	// Assert
	assert.ErrorIs(t, err, dropfolder.ErrRunInProgress)
	close(uploader.block)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"a.zip"}, uploader.names())
}

func TestJob_RunOnce_MissingDir(t *testing.T) {
	job := newJob(t, filepath.Join(t.TempDir(), "missing"), &testutil.MockUploader{})

	_, err := job.RunOnce(context.Background())
	assert.ErrorContains(t, err, "failed to collect files")
}

func TestJob_Start_InvalidSchedule(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	job := dropfolder.NewJob(
		dropfolder.Config{Dir: t.TempDir(), Schedule: "not a schedule"},
		localfs.NewCollector(nil),
		upload.NewOrchestrator(&testutil.MockUploader{}),
		logger,
	)

	assert.Error(t, job.Start(context.Background()))
}

func TestJob_StartStop(t *testing.T) {
	job := newJob(t, t.TempDir(), &testutil.MockUploader{})

	require.NoError(t, job.Start(context.Background()))
	job.Stop()
}
