package upload

import "fmt"

// TaskState は TransferTask の状態
type TaskState string

const (
	TaskPending    TaskState = "pending"
	TaskInProgress TaskState = "in_progress"
	TaskSucceeded  TaskState = "succeeded"
	TaskFailed     TaskState = "failed"
	// TaskNotAttempted はキャンセルにより送信されなかったタスク（終端状態ではない）
	TaskNotAttempted TaskState = "not_attempted"
)

// TransferTask は1ファイル分のアップロード試行
type TransferTask struct {
	File         File
	Index        int
	State        TaskState
	BytesSent    int64
	ErrorMessage string
}

// NewTransferTask は Pending 状態のタスクを作成します
func NewTransferTask(file File, index int) *TransferTask {
	return &TransferTask{
		File:  file,
		Index: index,
		State: TaskPending,
	}
}

// IsTerminal は Succeeded か Failed かを返します
func (t *TransferTask) IsTerminal() bool {
	return t.State == TaskSucceeded || t.State == TaskFailed
}

// Start は Pending -> InProgress に遷移します
func (t *TransferTask) Start() error {
	if t.State != TaskPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State, TaskInProgress)
	}
	t.State = TaskInProgress
	t.BytesSent = 0
	return nil
}

// Advance は送信済みバイト数を更新します
// 値は [BytesSent, size] に丸められ、減少しない。更新された場合 true
func (t *TransferTask) Advance(sent int64) bool {
	if t.State != TaskInProgress {
		return false
	}
	if size := t.File.Size(); sent > size {
		sent = size
	}
	if sent <= t.BytesSent {
		return false
	}
	t.BytesSent = sent
	return true
}

// Succeed は InProgress -> Succeeded に遷移します
func (t *TransferTask) Succeed() error {
	if t.State != TaskInProgress {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State, TaskSucceeded)
	}
	t.State = TaskSucceeded
	t.BytesSent = t.File.Size()
	return nil
}

// Fail は InProgress -> Failed に遷移します
func (t *TransferTask) Fail(message string) error {
	if t.State != TaskInProgress {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State, TaskFailed)
	}
	t.State = TaskFailed
	t.ErrorMessage = message
	return nil
}

// abandon はキャンセル時に未完了のタスクを NotAttempted にします
func (t *TransferTask) abandon() {
	if t.IsTerminal() {
		return
	}
	t.State = TaskNotAttempted
	t.BytesSent = 0
}

// FileProgressPct は現在のファイルの進捗率（0-100）
func (t *TransferTask) FileProgressPct() int {
	size := t.File.Size()
	if size <= 0 {
		if t.State == TaskPending || t.State == TaskNotAttempted {
			return 0
		}
		return 100
	}
	return int(t.BytesSent * 100 / size)
}
