package jobstatus

import "strings"

// Category はジョブステータスの分類
type Category string

const (
	CategoryPending    Category = "pending"
	CategoryInProgress Category = "in_progress"
	CategorySucceeded  Category = "succeeded"
	CategoryFailed     Category = "failed"
	CategoryAborted    Category = "aborted"
	CategoryUnknown    Category = "unknown"
)

// Mapping はステータス文字列から導出される表示情報
type Mapping struct {
	Category    Category
	Icon        string
	Restartable bool
}

var statusMappings = map[string]Mapping{
	"pending":     {Category: CategoryPending, Icon: "timer"},
	"in_progress": {Category: CategoryInProgress, Icon: "spinner"},
	"restarted":   {Category: CategoryInProgress, Icon: "history"},
	"finished":    {Category: CategorySucceeded, Icon: "check", Restartable: true},
	"failed":      {Category: CategoryFailed, Icon: "error", Restartable: true},
	"aborted":     {Category: CategoryAborted, Icon: "times", Restartable: true},
}

var unknownMapping = Mapping{Category: CategoryUnknown, Icon: "help"}

// MapStatus はバックエンドのステータス文字列を分類します
// 未知の値は CategoryUnknown になる
func MapStatus(raw string) Mapping {
	if m, ok := statusMappings[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return m
	}
	return unknownMapping
}

// IsRestartable はジョブが再実行可能かを返します
// processId を持たないジョブは常に false
func IsRestartable(rec JobRecord) bool {
	pid, ok := rec.ProcessID.Get()
	if !ok || strings.TrimSpace(pid) == "" {
		return false
	}
	return MapStatus(rec.Status).Restartable
}

// Reconcile はレジストリのジョブ一覧を順序を保って正規化します
func Reconcile(records []JobRecord) []Job {
	jobs := make([]Job, 0, len(records))
	for _, rec := range records {
		m := MapStatus(rec.Status)
		jobs = append(jobs, Job{
			JobRecord:   rec,
			Category:    m.Category,
			Icon:        m.Icon,
			Restartable: IsRestartable(rec),
		})
	}
	return jobs
}
