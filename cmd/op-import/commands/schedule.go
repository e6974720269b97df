package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/jinford/op-import/internal/app/dropfolder"
	"github.com/jinford/op-import/internal/core/upload"
	"github.com/jinford/op-import/internal/infra/localfs"
)

// ScheduleAction はドロップフォルダを定期的に取り込むコマンドのアクション
func ScheduleAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	cfg := appCtx.Config
	if dir := cmd.String("dir"); dir != "" {
		cfg.DropFolder.Dir = dir
	}
	if schedule := cmd.String("schedule"); schedule != "" {
		cfg.DropFolder.Schedule = schedule
	}
	if err := cfg.ValidateDropFolder(); err != nil {
		return err
	}

	ignoreFile := cfg.DropFolder.IgnoreFile
	if ignoreFile != "" && !filepath.IsAbs(ignoreFile) {
		ignoreFile = filepath.Join(cfg.DropFolder.Dir, ignoreFile)
	}
	filter, err := localfs.NewIgnoreFilter(ignoreFile)
	if err != nil {
		return fmt.Errorf("除外パターンの読み込みに失敗: %w", err)
	}

	// 未登録のプリセットで毎回全件失敗しないよう、起動時に1回だけ確認する
	presetName, err := appCtx.ResolvePreset(ctx, cfg.Import.DefaultPreset)
	if err != nil {
		return err
	}

	uploader, err := appCtx.Uploader(cmd.String("target"))
	if err != nil {
		return err
	}

	job := dropfolder.NewJob(
		dropfolder.Config{
			Dir:               cfg.DropFolder.Dir,
			Schedule:          cfg.DropFolder.Schedule,
			AllowedExtensions: cfg.Import.AllowedExtensions,
			AnatomyPreset:     presetName,
		},
		localfs.NewCollector(filter),
		upload.NewOrchestrator(uploader, upload.WithLogger(appCtx.Logger)),
		appCtx.Logger,
	)

	if cmd.Bool("once") {
		summary, err := job.RunOnce(ctx)
		if err != nil {
			return err
		}
		out := stdout(cmd)
		if summary.Result == nil {
			fmt.Fprintf(out, "取り込み対象のファイルはありません (検出: %d, スキップ: %d)\n", summary.Collected, summary.Skipped)
			return nil
		}
		renderBatchResult(out, *summary.Result)
		if n := summary.Result.FailedCount(); n > 0 {
			return fmt.Errorf("%d 件のアップロードに失敗しました", n)
		}
		return nil
	}

	if err := job.Start(ctx); err != nil {
		return err
	}
	defer job.Stop()

	<-ctx.Done()
	return nil
}
