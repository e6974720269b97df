package upload

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// ErrBatchStarted は実行済みの Batch を再実行しようとした場合のエラー
var ErrBatchStarted = errors.New("batch has already been started")

// FileError は失敗したファイルとその理由
type FileError struct {
	FileName string `json:"fileName"`
	Message  string `json:"message"`
}

// BatchProgress はバッチ全体の進捗状況
type BatchProgress struct {
	BatchID            uuid.UUID
	FileIndex          int
	FileName           string
	FileCount          int
	FileProgressPct    int
	OverallProgressPct int
	Errors             []FileError
}

// String は進捗状況を文字列で返します
func (p BatchProgress) String() string {
	return fmt.Sprintf("[%d/%d] %s: %d%% (overall %d%%, failed %d)",
		p.FileIndex+1, p.FileCount, p.FileName, p.FileProgressPct, p.OverallProgressPct, len(p.Errors))
}

// BatchResult はバッチ終了時の結果
type BatchResult struct {
	BatchID   uuid.UUID
	Tasks     []TransferTask
	Errors    []FileError
	Cancelled bool
	Progress  BatchProgress
}

// SucceededCount は成功したファイル数を返します
func (r BatchResult) SucceededCount() int {
	return r.countState(TaskSucceeded)
}

// FailedCount は失敗したファイル数を返します
func (r BatchResult) FailedCount() int {
	return r.countState(TaskFailed)
}

func (r BatchResult) countState(state TaskState) int {
	n := 0
	for _, t := range r.Tasks {
		if t.State == state {
			n++
		}
	}
	return n
}

// Submission はバッチ投入時のパラメータ
type Submission struct {
	Files             []File
	AllowedExtensions []string
	AnatomyPreset     string
}

// Batch は1回のバッチ投入の状態を保持します
// Orchestrator.Run に渡して使う。再利用はできない
type Batch struct {
	ID uuid.UUID

	emitMu         sync.Mutex // 進捗通知の順序を保つ。mu より先に取る
	mu             sync.Mutex
	tasks          []*TransferTask
	preset         string
	totalBytes     int64
	concludedBytes int64
	current        int
	overall        int
	errors         []FileError
	started        bool
	cancelled      bool
	finished       bool
	onProgress     func(BatchProgress)
}

// NewBatch はファイルを検証して Batch を作成します
// 拡張子が許可リストにないファイルが1つでもあれば ValidationError を返す
func NewBatch(sub Submission) (*Batch, error) {
	if len(sub.Files) == 0 {
		return nil, ErrEmptyBatch
	}

	allowed := normalizeExtensions(sub.AllowedExtensions)
	if len(allowed) > 0 {
		for _, f := range sub.Files {
			ext := Extension(f.Name())
			if !slices.Contains(allowed, ext) {
				return nil, &ValidationError{FileName: f.Name(), Extension: ext, Allowed: allowed}
			}
		}
	}

	b := &Batch{
		ID:      uuid.New(),
		tasks:   make([]*TransferTask, 0, len(sub.Files)),
		preset:  sub.AnatomyPreset,
		current: -1,
	}
	for i, f := range sub.Files {
		b.tasks = append(b.tasks, NewTransferTask(f, i))
		b.totalBytes += f.Size()
	}
	return b, nil
}

// Len はタスク数を返します
func (b *Batch) Len() int {
	return len(b.tasks)
}

// TotalBytes はバッチ全体のバイト数を返します
func (b *Batch) TotalBytes() int64 {
	return b.totalBytes
}

// Tasks はタスクのスナップショットを返します
func (b *Batch) Tasks() []TransferTask {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tasksLocked()
}

// Progress は現在の進捗のスナップショットを返します
func (b *Batch) Progress() BatchProgress {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.progressLocked()
}

// Result は現時点の結果を返します
func (b *Batch) Result() BatchResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BatchResult{
		BatchID:   b.ID,
		Tasks:     b.tasksLocked(),
		Errors:    slices.Clone(b.errors),
		Cancelled: b.cancelled,
		Progress:  b.progressLocked(),
	}
}

func (b *Batch) headers(fileName string) map[string]string {
	h := map[string]string{
		HeaderContentType: ContentTypeOctetStream,
		HeaderProjectName: JobName(fileName),
	}
	if b.preset != "" {
		h[HeaderAnatomyPreset] = b.preset
	}
	return h
}

func (b *Batch) begin(onProgress func(BatchProgress)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrBatchStarted
	}
	b.started = true
	b.onProgress = onProgress
	return nil
}

// update は mu の下で fn を実行し、fn が true を返した場合はロック解放後に進捗を通知します
// 通知は emitMu で直列化するため、observer から Progress などを呼んでも止まらない
func (b *Batch) update(fn func() (bool, error)) error {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	emit, err := fn()
	onProgress := b.onProgress
	emit = emit && err == nil && onProgress != nil && !b.cancelled
	var p BatchProgress
	if emit {
		p = b.progressLocked()
	}
	b.mu.Unlock()

	if emit {
		onProgress(p)
	}
	return err
}

// startTask はタスクを開始します。キャンセル済みの場合は false
func (b *Batch) startTask(i int) (bool, error) {
	started := false
	err := b.update(func() (bool, error) {
		if b.cancelled {
			return false, nil
		}
		if err := b.tasks[i].Start(); err != nil {
			return false, err
		}
		b.current = i
		started = true
		return true, nil
	})
	return started, err
}

// advance はトランスポートからの進捗通知を反映します
// キャンセル後や別タスクへの遅延通知は無視する
func (b *Batch) advance(i int, sent int64) {
	_ = b.update(func() (bool, error) {
		if b.cancelled || b.finished || b.current != i {
			return false, nil
		}
		return b.tasks[i].Advance(sent), nil
	})
}

func (b *Batch) concludeTask(i int, transferErr error) error {
	return b.update(func() (bool, error) {
		if b.cancelled {
			return false, nil
		}

		task := b.tasks[i]
		if transferErr == nil {
			if err := task.Succeed(); err != nil {
				return false, err
			}
		} else {
			msg := transferErr.Error()
			var te *TransferError
			if errors.As(transferErr, &te) && te.Err != nil {
				msg = te.Err.Error()
			}
			if err := task.Fail(msg); err != nil {
				return false, err
			}
			b.errors = append(b.errors, FileError{FileName: task.File.Name(), Message: msg})
		}
		b.concludedBytes += task.File.Size()
		return true, nil
	})
}

// cancel は実行中と未着手のタスクを NotAttempted にし、以降の通知を止めます
// 戻った時点で配信中の通知も終わっている
func (b *Batch) cancel() {
	b.mu.Lock()
	if b.cancelled || b.finished {
		b.mu.Unlock()
		return
	}
	b.cancelled = true
	for _, t := range b.tasks {
		t.abandon()
	}
	b.mu.Unlock()

	b.emitMu.Lock()
	b.emitMu.Unlock()
}

func (b *Batch) finish() {
	_ = b.update(func() (bool, error) {
		if b.cancelled || b.finished {
			return false, nil
		}
		b.finished = true
		return true, nil
	})
}

func (b *Batch) progressLocked() BatchProgress {
	p := BatchProgress{
		BatchID:            b.ID,
		FileIndex:          b.current,
		FileCount:          len(b.tasks),
		OverallProgressPct: b.overallLocked(),
		Errors:             slices.Clone(b.errors),
	}
	if b.current >= 0 {
		task := b.tasks[b.current]
		p.FileName = task.File.Name()
		p.FileProgressPct = task.FileProgressPct()
	}
	return p
}

// overallLocked は送信済みバイト数からバッチ全体の進捗率を計算します
// 終了したタスクは成否に関わらず全サイズを処理済みとみなし、値は減少しない
func (b *Batch) overallLocked() int {
	if b.totalBytes <= 0 {
		b.overall = 100
		return b.overall
	}

	processed := b.concludedBytes
	if b.current >= 0 {
		if task := b.tasks[b.current]; task.State == TaskInProgress {
			processed += task.BytesSent
		}
	}

	pct := int(processed * 100 / b.totalBytes)
	if pct > 100 {
		pct = 100
	}
	if pct > b.overall {
		b.overall = pct
	}
	return b.overall
}

func (b *Batch) tasksLocked() []TransferTask {
	out := make([]TransferTask, len(b.tasks))
	for i, t := range b.tasks {
		out[i] = *t
	}
	return out
}
