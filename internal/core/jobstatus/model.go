package jobstatus

import (
	"slices"
	"time"

	"github.com/samber/mo"
)

// StatusRestarted は再実行を要求する際に書き込むステータス
const StatusRestarted = "restarted"

// JobRecord はバックエンドのジョブレジストリが返すジョブ
// 読み取り専用で、状態の変更はレジストリへのコマンドでのみ行う
type JobRecord struct {
	ID          string
	Status      string
	Project     string
	User        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessID   mo.Option[string]
}

// Job はステータスを正規化したジョブ
type Job struct {
	JobRecord
	Category    Category
	Icon        string
	Restartable bool
}

// Snapshot はポーリングで公開されるジョブ一覧
type Snapshot struct {
	Jobs      []Job
	FetchedAt time.Time
	Stale     bool
	LastError string
	Cycle     int
}

// Clone はジョブ一覧を複製したスナップショットを返します
func (s Snapshot) Clone() Snapshot {
	s.Jobs = slices.Clone(s.Jobs)
	return s
}

// Restartable は再実行可能なジョブのみを返します
func (s Snapshot) Restartable() []Job {
	var out []Job
	for _, j := range s.Jobs {
		if j.Restartable {
			out = append(out, j)
		}
	}
	return out
}
