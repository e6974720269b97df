package upload

import (
	"context"
	"io"
)

const (
	// HeaderProjectName はインポート先のプロジェクト名
	HeaderProjectName = "X-Ayon-Project-Name"
	// HeaderAnatomyPreset は新規プロジェクトに適用するプリセット
	HeaderAnatomyPreset = "X-Ayon-Anatomy-Preset"
	HeaderContentType   = "Content-Type"

	ContentTypeOctetStream = "application/octet-stream"
)

// ProgressFunc はバイト単位の送信進捗を受け取ります
type ProgressFunc func(sent, total int64)

// SendRequest は1ファイル分の送信リクエスト
type SendRequest struct {
	JobName  string
	FileName string
	Size     int64
	Body     io.Reader
	Headers  map[string]string
}

// Uploader はファイルを1件送信します
// ctx がキャンセルされた場合は転送を中断すること
type Uploader interface {
	Send(ctx context.Context, req SendRequest, onProgress ProgressFunc) error
}

// CountingReader は読み出したバイト数を ProgressFunc に通知する io.Reader
type CountingReader struct {
	r          io.Reader
	total      int64
	sent       int64
	onProgress ProgressFunc
}

// NewCountingReader は新しいCountingReaderを作成します
func NewCountingReader(r io.Reader, total int64, onProgress ProgressFunc) *CountingReader {
	return &CountingReader{r: r, total: total, onProgress: onProgress}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.onProgress != nil {
			c.onProgress(c.sent, c.total)
		}
	}
	return n, err
}
