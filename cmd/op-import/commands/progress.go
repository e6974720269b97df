package commands

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jinford/op-import/internal/core/upload"
)

// ProgressBar はバッチの進捗をシンプルなプログレスバーで表示する
type ProgressBar struct {
	mu      sync.Mutex
	w       io.Writer
	width   int
	lastBar string
}

// NewProgressBar は新しいProgressBarを作成する
func NewProgressBar(w io.Writer, width int) *ProgressBar {
	return &ProgressBar{w: w, width: width}
}

// Update はプログレスバーを更新する
func (pb *ProgressBar) Update(p upload.BatchProgress) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	bar := pb.render(p)

	// 同じバーを繰り返し表示しない
	if bar != pb.lastBar {
		fmt.Fprintf(pb.w, "\r%s", bar)
		pb.lastBar = bar
	}
}

// Finish はバーの表示を終えて改行する
func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.lastBar != "" {
		fmt.Fprintln(pb.w)
		pb.lastBar = ""
	}
}

func (pb *ProgressBar) render(p upload.BatchProgress) string {
	filled := pb.width * p.OverallProgressPct / 100

	var b strings.Builder
	fmt.Fprintf(&b, "[%d/%d] [", p.FileIndex+1, p.FileCount)
	for i := 0; i < pb.width; i++ {
		switch {
		case i < filled:
			b.WriteByte('=')
		case i == filled:
			b.WriteByte('>')
		default:
			b.WriteByte(' ')
		}
	}
	fmt.Fprintf(&b, "] %3d%% %s %d%%", p.OverallProgressPct, p.FileName, p.FileProgressPct)
	if n := len(p.Errors); n > 0 {
		fmt.Fprintf(&b, " (failed %d)", n)
	}
	return b.String()
}
