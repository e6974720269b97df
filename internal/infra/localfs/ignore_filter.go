package localfs

import (
	"fmt"
	"os"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFilter は .importignore と --exclude のパターンマッチングを提供します
type IgnoreFilter struct {
	patterns *gitignore.GitIgnore
}

// NewIgnoreFilter は新しいIgnoreFilterを作成します
// ignoreFile が存在すればそのパターンも読み込む
func NewIgnoreFilter(ignoreFile string, extra ...string) (*IgnoreFilter, error) {
	var patterns []string

	if ignoreFile != "" {
		if _, err := os.Stat(ignoreFile); err == nil {
			filePatterns, err := readIgnoreFile(ignoreFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", ignoreFile, err)
			}
			patterns = append(patterns, filePatterns...)
		}
	}

	patterns = append(patterns, extra...)

	// デフォルトの除外パターンを追加
	patterns = append(patterns, defaultIgnorePatterns()...)

	return &IgnoreFilter{
		patterns: gitignore.CompileIgnoreLines(patterns...),
	}, nil
}

// ShouldIgnore はパスが除外対象かどうかを判定します
func (f *IgnoreFilter) ShouldIgnore(path string) bool {
	if f == nil || f.patterns == nil {
		return false
	}
	return f.patterns.MatchesPath(path)
}

// readIgnoreFile は ignore ファイルを読み込んでパターンのスライスを返します
func readIgnoreFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var patterns []string
	for _, line := range strings.FieldsFunc(string(content), func(r rune) bool { return r == '\n' || r == '\r' }) {
		line = strings.TrimSpace(line)
		// 空行とコメント行をスキップ
		if line == "" || line[0] == '#' {
			continue
		}
		patterns = append(patterns, line)
	}

	return patterns, nil
}

// defaultIgnorePatterns はデフォルトの除外パターンを返します
// 転送中の一時ファイルやOSのメタデータを取り込まない
func defaultIgnorePatterns() []string {
	return []string{
		".DS_Store",
		"Thumbs.db",
		"*.part",
		"*.partial",
		"*.crdownload",
		"*.tmp",
		".*.swp",
		".importignore",
	}
}
