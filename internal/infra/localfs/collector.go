package localfs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jinford/op-import/internal/core/upload"
)

// LocalFile はローカルディスク上のアップロード対象ファイル
type LocalFile struct {
	path    string
	size    int64
	modTime time.Time
}

// Stat はパスのファイル情報から LocalFile を作成します
func Stat(path string) (*LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &LocalFile{path: path, size: info.Size(), modTime: info.ModTime()}, nil
}

func (f *LocalFile) Name() string { return filepath.Base(f.path) }

func (f *LocalFile) Size() int64 { return f.size }

// Path はファイルのパスを返します
func (f *LocalFile) Path() string { return f.path }

// ModTime は収集時点の更新日時を返します
func (f *LocalFile) ModTime() time.Time { return f.modTime }

// Fingerprint は同一ファイルの判定に使うキーを返します
func (f *LocalFile) Fingerprint() string {
	return fmt.Sprintf("%s|%d|%d", f.path, f.size, f.modTime.UnixNano())
}

func (f *LocalFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// Collector はコマンドライン引数のパスからアップロード対象を収集します
type Collector struct {
	filter *IgnoreFilter
}

// NewCollector は新しいCollectorを作成します
func NewCollector(filter *IgnoreFilter) *Collector {
	return &Collector{filter: filter}
}

// Collect はファイルはそのまま、ディレクトリは配下を辞書順に展開して返します
// 除外パターンはディレクトリの展開時のみ適用し、同じファイルは1度だけ含める
func (c *Collector) Collect(paths []string) ([]*LocalFile, error) {
	var files []*LocalFile
	seen := make(map[string]bool)

	add := func(f *LocalFile) {
		key, err := filepath.Abs(f.path)
		if err != nil {
			key = f.path
		}
		if seen[key] {
			return
		}
		seen[key] = true
		files = append(files, f)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}

		if !info.IsDir() {
			add(&LocalFile{path: p, size: info.Size(), modTime: info.ModTime()})
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == p {
				return nil
			}

			rel, err := filepath.Rel(p, path)
			if err != nil {
				return err
			}
			if c.filter.ShouldIgnore(filepath.ToSlash(rel)) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}

			fi, err := d.Info()
			if err != nil {
				return err
			}
			add(&LocalFile{path: path, size: fi.Size(), modTime: fi.ModTime()})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}

	return files, nil
}

// UploadFiles は LocalFile を upload.File のスライスに変換します
func UploadFiles(files []*LocalFile) []upload.File {
	out := make([]upload.File, len(files))
	for i, f := range files {
		out[i] = f
	}
	return out
}
