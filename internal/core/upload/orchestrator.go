package upload

import (
	"context"
	"fmt"
	"log/slog"
)

// Orchestrator はバッチ内のファイルを1件ずつ順番に Uploader へ送信します
type Orchestrator struct {
	uploader Uploader
	logger   *slog.Logger
}

// Option は Orchestrator のオプション
type Option func(*Orchestrator)

// WithLogger はロガーを設定します
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator は新しいOrchestratorを作成します
func NewOrchestrator(uploader Uploader, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		uploader: uploader,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle は実行中のバッチを操作するハンドル
type Handle struct {
	batch  *Batch
	cancel context.CancelFunc
	done   chan struct{}
	result BatchResult
}

// Cancel は実行中の転送を中断し、残りのファイルを送信せずに終了させます
func (h *Handle) Cancel() {
	h.cancel()
}

// Done はバッチ終了時に close されるチャネルを返します
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait はバッチの終了を待って結果を返します
func (h *Handle) Wait() BatchResult {
	<-h.done
	return h.result
}

// Progress は現在の進捗を返します
func (h *Handle) Progress() BatchProgress {
	return h.batch.Progress()
}

// Submit はファイルを検証し、バックグラウンドでバッチを実行します
// 検証エラーのみ同期的に返し、転送エラーは onComplete の結果で通知する
func (o *Orchestrator) Submit(
	ctx context.Context,
	sub Submission,
	onProgress func(BatchProgress),
	onComplete func(BatchResult),
) (*Handle, error) {
	batch, err := NewBatch(sub)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		batch:  batch,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer cancel()

		result, err := o.Run(runCtx, batch, onProgress)
		if err != nil {
			o.logger.Error("バッチの実行に失敗", "batch_id", batch.ID, "error", err)
			result = batch.Result()
		}
		h.result = result
		if onComplete != nil {
			onComplete(result)
		}
	}()

	return h, nil
}

// Run は Batch を同期的に実行します
// ファイルの転送失敗ではバッチを中断せず、結果の Errors に記録する
func (o *Orchestrator) Run(ctx context.Context, b *Batch, onProgress func(BatchProgress)) (BatchResult, error) {
	if err := b.begin(onProgress); err != nil {
		return BatchResult{}, err
	}

	// キャンセルされた時点で以降の進捗通知を止める
	stop := context.AfterFunc(ctx, b.cancel)
	defer stop()

	o.logger.Info("バッチアップロードを開始",
		"batch_id", b.ID,
		"files", b.Len(),
		"total_bytes", b.TotalBytes(),
	)

	for i := range b.tasks {
		if ctx.Err() != nil {
			return o.cancelled(b), nil
		}

		started, err := b.startTask(i)
		if err != nil {
			return BatchResult{}, fmt.Errorf("failed to start task %d: %w", i, err)
		}
		if !started {
			return o.cancelled(b), nil
		}

		transferErr := o.transfer(ctx, b, i)

		// キャンセル後に届いた応答は成否に関わらず捨てる
		if ctx.Err() != nil {
			return o.cancelled(b), nil
		}

		if err := b.concludeTask(i, transferErr); err != nil {
			return BatchResult{}, fmt.Errorf("failed to conclude task %d: %w", i, err)
		}

		name := b.tasks[i].File.Name()
		if transferErr != nil {
			o.logger.Warn("ファイルのアップロードに失敗",
				"batch_id", b.ID,
				"index", i,
				"file", name,
				"error", transferErr,
			)
		} else {
			o.logger.Debug("ファイルのアップロード完了", "batch_id", b.ID, "index", i, "file", name)
		}
	}

	b.finish()
	result := b.Result()

	o.logger.Info("バッチアップロード完了",
		"batch_id", b.ID,
		"succeeded", result.SucceededCount(),
		"failed", result.FailedCount(),
	)
	return result, nil
}

func (o *Orchestrator) transfer(ctx context.Context, b *Batch, i int) error {
	file := b.tasks[i].File
	name := file.Name()

	body, err := file.Open()
	if err != nil {
		return &TransferError{FileName: name, Err: fmt.Errorf("failed to open file: %w", err)}
	}
	defer body.Close()

	req := SendRequest{
		JobName:  JobName(name),
		FileName: name,
		Size:     file.Size(),
		Body:     body,
		Headers:  b.headers(name),
	}

	onProgress := func(sent, _ int64) {
		if ctx.Err() != nil {
			return
		}
		b.advance(i, sent)
	}

	if err := o.uploader.Send(ctx, req, onProgress); err != nil {
		return &TransferError{FileName: name, Err: err}
	}
	return nil
}

func (o *Orchestrator) cancelled(b *Batch) BatchResult {
	b.cancel()
	result := b.Result()
	o.logger.Info("バッチアップロードをキャンセル",
		"batch_id", b.ID,
		"succeeded", result.SucceededCount(),
		"failed", result.FailedCount(),
	)
	return result
}
