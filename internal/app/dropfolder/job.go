package dropfolder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/jinford/op-import/internal/core/upload"
	"github.com/jinford/op-import/internal/infra/localfs"
)

// ErrRunInProgress は前回の取り込みがまだ終わっていないことを示します
var ErrRunInProgress = errors.New("drop folder import is already running")

// Config はドロップフォルダジョブの設定です
type Config struct {
	Dir               string   // 監視対象ディレクトリ
	Schedule          string   // Cron形式のスケジュール（例: "@every 1m"）
	AllowedExtensions []string // 取り込む拡張子。空なら全て
	AnatomyPreset     string
}

// RunSummary は1回の取り込み結果です
type RunSummary struct {
	Collected int // ディレクトリから見つかったファイル数
	Skipped   int // 取り込み済みまたは拡張子が対象外のファイル数
	Result    *upload.BatchResult
}

// Job はドロップフォルダに置かれたファイルを定期的にアップロードします
type Job struct {
	config       Config
	collector    *localfs.Collector
	orchestrator *upload.Orchestrator
	cron         *cron.Cron
	logger       *slog.Logger

	runMu sync.Mutex
	seen  map[string]bool
}

// NewJob は新しいJobを作成します
func NewJob(
	config Config,
	collector *localfs.Collector,
	orchestrator *upload.Orchestrator,
	logger *slog.Logger,
) *Job {
	if logger == nil {
		logger = slog.Default()
	}

	return &Job{
		config:       config,
		collector:    collector,
		orchestrator: orchestrator,
		cron:         cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:       logger,
		seen:         make(map[string]bool),
	}
}

// Start はスケジューラーを起動します
func (j *Job) Start(ctx context.Context) error {
	_, err := j.cron.AddFunc(j.config.Schedule, func() {
		if _, err := j.RunOnce(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
			j.logger.Error("ドロップフォルダの取り込みに失敗しました", "dir", j.config.Dir, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register cron job: %w", err)
	}

	j.cron.Start()
	j.logger.Info("ドロップフォルダの監視を開始しました", "dir", j.config.Dir, "schedule", j.config.Schedule)

	return nil
}

// Stop はスケジューラーを停止し、実行中の取り込みの終了を待ちます
func (j *Job) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("ドロップフォルダの監視を停止しました")
}

// RunOnce はディレクトリを1回走査して未取り込みのファイルをアップロードします
// 成功したファイルだけを取り込み済みとして記録し、失敗したファイルは次回再送する
func (j *Job) RunOnce(ctx context.Context) (RunSummary, error) {
	if !j.runMu.TryLock() {
		return RunSummary{}, ErrRunInProgress
	}
	defer j.runMu.Unlock()

	files, err := j.collector.Collect([]string{j.config.Dir})
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to collect files: %w", err)
	}

	summary := RunSummary{Collected: len(files)}

	var pending []*localfs.LocalFile
	for _, f := range files {
		if j.seen[f.Fingerprint()] || !upload.ExtensionAllowed(f.Name(), j.config.AllowedExtensions) {
			summary.Skipped++
			continue
		}
		pending = append(pending, f)
	}

	if len(pending) == 0 {
		j.logger.Debug("取り込み対象のファイルはありません", "dir", j.config.Dir, "skipped", summary.Skipped)
		return summary, nil
	}

	batch, err := upload.NewBatch(upload.Submission{
		Files:             localfs.UploadFiles(pending),
		AllowedExtensions: j.config.AllowedExtensions,
		AnatomyPreset:     j.config.AnatomyPreset,
	})
	if err != nil {
		return summary, fmt.Errorf("failed to create batch: %w", err)
	}

	result, err := j.orchestrator.Run(ctx, batch, nil)
	if err != nil {
		return summary, fmt.Errorf("failed to run batch: %w", err)
	}
	summary.Result = &result

	for _, task := range result.Tasks {
		if task.State == upload.TaskSucceeded {
			j.seen[pending[task.Index].Fingerprint()] = true
		}
	}

	j.logger.Info("ドロップフォルダの取り込みが完了しました",
		"dir", j.config.Dir,
		"batch_id", result.BatchID,
		"succeeded", result.SucceededCount(),
		"failed", result.FailedCount(),
		"cancelled", result.Cancelled,
	)

	return summary, nil
}
