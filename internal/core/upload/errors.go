package upload

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyBatch はファイルが1つも指定されていない場合のエラー
	ErrEmptyBatch = errors.New("batch must contain at least one file")

	// ErrInvalidTransition は TransferTask の不正な状態遷移
	ErrInvalidTransition = errors.New("invalid transfer task transition")
)

// ValidationError は送信前に検出された拡張子違反
// バッチ全体が拒否される
type ValidationError struct {
	FileName  string
	Extension string
	Allowed   []string
}

func (e *ValidationError) Error() string {
	ext := e.Extension
	if ext == "" {
		ext = "(none)"
	}
	return fmt.Sprintf("invalid file type %q for %s (allowed: %s)", ext, e.FileName, strings.Join(e.Allowed, ", "))
}

// TransferError は1ファイル分の転送失敗
type TransferError struct {
	FileName string
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("failed to upload %s: %v", e.FileName, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
