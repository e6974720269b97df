package testing

import (
	"bytes"
	"context"
	"io"

	"github.com/jinford/op-import/internal/core/jobstatus"
	"github.com/jinford/op-import/internal/core/preset"
	"github.com/jinford/op-import/internal/core/upload"
)

// MockUploader はテスト用のモックUploaderです
type MockUploader struct {
	SendFunc func(ctx context.Context, req upload.SendRequest, onProgress upload.ProgressFunc) error
}

func (m *MockUploader) Send(ctx context.Context, req upload.SendRequest, onProgress upload.ProgressFunc) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, req, onProgress)
	}
	return nil
}

// MockRegistry はテスト用のモックRegistryです
type MockRegistry struct {
	ListJobsFunc  func(ctx context.Context) ([]jobstatus.JobRecord, error)
	SetStatusFunc func(ctx context.Context, processID, status string) error
}

func (m *MockRegistry) ListJobs(ctx context.Context) ([]jobstatus.JobRecord, error) {
	if m.ListJobsFunc != nil {
		return m.ListJobsFunc(ctx)
	}
	return nil, nil
}

func (m *MockRegistry) SetStatus(ctx context.Context, processID, status string) error {
	if m.SetStatusFunc != nil {
		return m.SetStatusFunc(ctx, processID, status)
	}
	return nil
}

// MockPresetSource はテスト用のモックPresetSourceです
type MockPresetSource struct {
	ListAnatomyPresetsFunc func(ctx context.Context) ([]preset.Preset, error)
}

func (m *MockPresetSource) ListAnatomyPresets(ctx context.Context) ([]preset.Preset, error) {
	if m.ListAnatomyPresetsFunc != nil {
		return m.ListAnatomyPresetsFunc(ctx)
	}
	return nil, nil
}

// MemoryFile はメモリ上のバイト列をアップロード対象として扱います
type MemoryFile struct {
	FileName string
	Data     []byte
	OpenErr  error
}

// NewMemoryFile は新しいMemoryFileを作成します
func NewMemoryFile(name string, data []byte) *MemoryFile {
	return &MemoryFile{FileName: name, Data: data}
}

// NewSizedFile は指定サイズのゼロ埋めファイルを作成します
func NewSizedFile(name string, size int) *MemoryFile {
	return &MemoryFile{FileName: name, Data: make([]byte, size)}
}

func (f *MemoryFile) Name() string { return f.FileName }

func (f *MemoryFile) Size() int64 { return int64(len(f.Data)) }

func (f *MemoryFile) Open() (io.ReadCloser, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

// DrainUploader は本文を全て読み出して進捗を通知するだけのUploaderを返します
// chunk は1回の通知あたりのバイト数
func DrainUploader(chunk int) *MockUploader {
	return &MockUploader{
		SendFunc: func(ctx context.Context, req upload.SendRequest, onProgress upload.ProgressFunc) error {
			buf := make([]byte, chunk)
			r := upload.NewCountingReader(req.Body, req.Size, onProgress)
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				_, err := r.Read(buf)
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
			}
		},
	}
}
