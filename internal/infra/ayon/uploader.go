package ayon

import (
	"context"

	"github.com/jinford/op-import/internal/core/upload"
)

// Send はファイル本体をインポートエンドポイントへストリーミング送信します
func (c *Client) Send(ctx context.Context, req upload.SendRequest, onProgress upload.ProgressFunc) error {
	body := upload.NewCountingReader(req.Body, req.Size, onProgress)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		SetBody(body).
		Post(c.addonPath("import"))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return responseError("import request failed", resp)
	}
	return nil
}
