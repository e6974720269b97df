package jobstatus

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning はポーリングループが既に動作している場合のエラー
	ErrAlreadyRunning = errors.New("status poller is already running")

	// ErrJobNotFound は指定したプロセスがレジストリに存在しない
	ErrJobNotFound = errors.New("job not found")

	// ErrEmptyProcessID はプロセスIDが指定されていない
	ErrEmptyProcessID = errors.New("process id is required")
)

// PollError はポーリング中のジョブ一覧取得の失敗
type PollError struct {
	Cycle int
	Err   error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("failed to fetch jobs (cycle %d): %v", e.Cycle, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// CommandError は再実行コマンドの失敗
type CommandError struct {
	ProcessID string
	Err       error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("failed to restart process %q: %v", e.ProcessID, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
