package upload

import (
	"io"
	"path/filepath"
	"slices"
	"strings"
)

// File はアップロード対象のファイル
type File interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// Extension はファイル名の最後の "." 以降を小文字で返します
// "." を含まない場合は空文字
func Extension(name string) string {
	base := filepath.Base(name)
	idx := strings.LastIndex(base, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}

// JobName はファイル名から拡張子を除いたベース名を返します
// バックエンドはこの名前をプロジェクト名として扱う
func JobName(name string) string {
	base := filepath.Base(name)
	idx := strings.LastIndex(base, ".")
	if idx <= 0 {
		return base
	}
	return base[:idx]
}

// ExtensionAllowed はファイル名の拡張子が許可リストに含まれるかを返します
// 許可リストが空なら常に true
func ExtensionAllowed(name string, allowed []string) bool {
	norm := normalizeExtensions(allowed)
	return len(norm) == 0 || slices.Contains(norm, Extension(name))
}

// normalizeExtensions は許可リストを比較用に正規化します
func normalizeExtensions(allowed []string) []string {
	out := make([]string, 0, len(allowed))
	for _, ext := range allowed {
		ext = strings.ToLower(strings.TrimLeft(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		out = append(out, ext)
	}
	return out
}
