package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/jinford/op-import/internal/core/jobstatus"
	"github.com/jinford/op-import/internal/core/preset"
	"github.com/jinford/op-import/internal/core/upload"
)

const timestampLayout = "02-01-2006 15:04:05"

var iconGlyphs = map[string]string{
	"timer":   "…",
	"spinner": "~",
	"history": "↻",
	"check":   "✓",
	"error":   "✗",
	"times":   "×",
	"help":    "?",
}

// formatFileSize はバイト数を B/KB/MB/GB で表示します
func formatFileSize(bytes int64) string {
	const unit = 1024
	switch {
	case bytes < unit:
		return fmt.Sprintf("%d B", bytes)
	case bytes < unit*unit:
		return fmt.Sprintf("%.2f KB", float64(bytes)/unit)
	case bytes < unit*unit*unit:
		return fmt.Sprintf("%.2f MB", float64(bytes)/unit/unit)
	default:
		return fmt.Sprintf("%.2f GB", float64(bytes)/unit/unit/unit)
	}
}

// formatTimestamp は日時をローカル時刻で表示します
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timestampLayout)
}

// renderJobsTable はテーブル形式でジョブ一覧を表示します
func renderJobsTable(w io.Writer, jobs []jobstatus.Job) {
	table := tablewriter.NewWriter(w)
	table.Header("", "Project", "Status", "User", "Description", "Created At", "Updated At", "Process ID")

	for _, job := range jobs {
		glyph, ok := iconGlyphs[job.Icon]
		if !ok {
			glyph = job.Icon
		}
		table.Append(
			glyph,
			job.Project,
			job.Status,
			job.User,
			job.Description,
			formatTimestamp(job.CreatedAt),
			formatTimestamp(job.UpdatedAt),
			job.ProcessID.OrElse("-"),
		)
	}

	table.Render()
}

// renderSnapshot はスナップショットのジョブ一覧と取得状況を表示します
func renderSnapshot(w io.Writer, snap jobstatus.Snapshot) {
	if snap.Stale {
		fmt.Fprintf(w, "警告: ジョブ一覧の取得に失敗したため前回の結果を表示しています (%s)\n", snap.LastError)
	}
	if len(snap.Jobs) == 0 {
		fmt.Fprintln(w, "ジョブはありません")
		return
	}
	renderJobsTable(w, snap.Jobs)
}

// renderPresetsTable はプリセットの選択肢を表示します
func renderPresetsTable(w io.Writer, options []preset.Option) {
	table := tablewriter.NewWriter(w)
	table.Header("Name", "Title")
	for _, o := range options {
		table.Append(o.Name, o.Title)
	}
	table.Render()
}

// renderBatchResult はファイルごとの結果と失敗理由を表示します
func renderBatchResult(w io.Writer, result upload.BatchResult) {
	table := tablewriter.NewWriter(w)
	table.Header("#", "File", "Size", "State")
	for _, task := range result.Tasks {
		table.Append(
			fmt.Sprintf("%d", task.Index+1),
			task.File.Name(),
			formatFileSize(task.File.Size()),
			string(task.State),
		)
	}
	table.Render()

	if len(result.Errors) > 0 {
		fmt.Fprintln(w, "\nアップロードに失敗したファイル:")
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  - %s: %s\n", e.FileName, e.Message)
		}
	}

	fmt.Fprintf(w, "\n成功: %d, 失敗: %d, 合計: %d\n",
		result.SucceededCount(), result.FailedCount(), len(result.Tasks))
	if result.Cancelled {
		fmt.Fprintln(w, "アップロードは中断されました")
	}
}
