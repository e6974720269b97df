package preset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// DefaultName はサーバー側のデフォルトプリセットを表す名前
	DefaultName   = "_"
	defaultTitle  = "Default"
	primarySuffix = " (PRIMARY)"
)

// ErrUnknownPreset は存在しないプリセットが指定された場合のエラー
var ErrUnknownPreset = errors.New("unknown anatomy preset")

// Preset はバックエンドに登録されたアナトミープリセット
type Preset struct {
	Name    string `json:"name"`
	Primary bool   `json:"primary"`
}

// Option は選択肢として表示するプリセット
type Option struct {
	Name  string
	Title string
}

// Source はプリセット一覧の取得元
type Source interface {
	ListAnatomyPresets(ctx context.Context) ([]Preset, error)
}

// Catalog はプリセットの選択肢を組み立てます
type Catalog struct {
	source Source
	logger *slog.Logger
}

// NewCatalog は新しいCatalogを作成します
func NewCatalog(source Source, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{source: source, logger: logger}
}

// Options はデフォルトを先頭にしたプリセットの選択肢を返します
func (c *Catalog) Options(ctx context.Context) ([]Option, error) {
	presets, err := c.source.ListAnatomyPresets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list anatomy presets: %w", err)
	}

	options := make([]Option, 0, len(presets)+1)
	options = append(options, Option{Name: DefaultName, Title: defaultTitle})
	for _, p := range presets {
		title := p.Name
		if p.Primary {
			title += primarySuffix
		}
		options = append(options, Option{Name: p.Name, Title: title})
	}
	return options, nil
}

// Resolve はプリセット名を検証して送信用の値を返します
// 空文字と "_" はデフォルトとして扱い、バックエンドへの問い合わせを行わない
func (c *Catalog) Resolve(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == DefaultName {
		return DefaultName, nil
	}

	presets, err := c.source.ListAnatomyPresets(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list anatomy presets: %w", err)
	}
	for _, p := range presets {
		if p.Name == name {
			return name, nil
		}
	}

	c.logger.Warn("指定されたプリセットが存在しません", "preset", name)
	return "", fmt.Errorf("%w: %s", ErrUnknownPreset, name)
}
