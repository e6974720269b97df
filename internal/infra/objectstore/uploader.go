package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jinford/op-import/internal/core/upload"
)

// Config はS3互換ストレージの接続設定
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Uploader はインポート用アーカイブをバケットに配置します
// インポートサービスがバケットを監視する構成で使う
type Uploader struct {
	client objectPutter
	bucket string
	prefix string
	newID  func() string
}

// New はS3互換ストレージに接続してUploaderを作成します
func New(cfg Config) (*Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}
	return newUploader(client, cfg.Bucket, cfg.Prefix), nil
}

func newUploader(client objectPutter, bucket, prefix string) *Uploader {
	return &Uploader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		newID:  uuid.NewString,
	}
}

// ObjectKey はアップロード先のキーを返します
func (u *Uploader) ObjectKey(req upload.SendRequest) string {
	name := u.newID()
	if ext := upload.Extension(req.FileName); ext != "" {
		name += "." + ext
	}
	return path.Join(u.prefix, req.JobName, name)
}

// Send はファイルをバケットにアップロードします
func (u *Uploader) Send(ctx context.Context, req upload.SendRequest, onProgress upload.ProgressFunc) error {
	metadata := map[string]string{
		"project-name": req.Headers[upload.HeaderProjectName],
	}
	if p := req.Headers[upload.HeaderAnatomyPreset]; p != "" {
		metadata["anatomy-preset"] = p
	}

	_, err := u.client.PutObject(ctx, u.bucket, u.ObjectKey(req), req.Body, req.Size, minio.PutObjectOptions{
		ContentType:  upload.ContentTypeOctetStream,
		UserMetadata: metadata,
		Progress:     &progressSink{total: req.Size, onProgress: onProgress},
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// progressSink は SDK から送信済みのバイト列を受け取り、累計を通知します
// マルチパート転送では複数のワーカーから同時に Read される
type progressSink struct {
	total      int64
	sent       atomic.Int64
	onProgress upload.ProgressFunc
}

func (p *progressSink) Read(b []byte) (int, error) {
	sent := p.sent.Add(int64(len(b)))
	if p.onProgress != nil {
		p.onProgress(sent, p.total)
	}
	return len(b), nil
}
