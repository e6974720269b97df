package ayon

import (
	"context"

	"github.com/jinford/op-import/internal/core/preset"
)

type presetList struct {
	Presets []preset.Preset `json:"presets"`
}

// ListAnatomyPresets はサーバーに登録されたアナトミープリセットを取得します
func (c *Client) ListAnatomyPresets(ctx context.Context) ([]preset.Preset, error) {
	var list presetList

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&list).
		Get("/api/anatomy/presets")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, responseError("list presets request failed", resp)
	}
	return list.Presets, nil
}
