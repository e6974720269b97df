package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/op-import/internal/core/jobstatus"
	"github.com/jinford/op-import/internal/core/upload"
	"github.com/jinford/op-import/internal/infra/localfs"
)

// UploadAction はファイルをバッチでアップロードするコマンドのアクション
func UploadAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("アップロードするファイルまたはディレクトリを指定してください")
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	out := stdout(cmd)

	allowed := cmd.StringSlice("allow-ext")
	if len(allowed) == 0 {
		allowed = appCtx.Config.Import.AllowedExtensions
	}

	filter, err := localfs.NewIgnoreFilter("", cmd.StringSlice("exclude")...)
	if err != nil {
		return fmt.Errorf("除外パターンの読み込みに失敗: %w", err)
	}
	files, err := localfs.NewCollector(filter).Collect(paths)
	if err != nil {
		return fmt.Errorf("ファイルの収集に失敗: %w", err)
	}

	presetName := cmd.String("preset")
	if presetName == "" {
		presetName = appCtx.Config.Import.DefaultPreset
	}
	presetName, err = appCtx.ResolvePreset(ctx, presetName)
	if err != nil {
		return err
	}

	uploader, err := appCtx.Uploader(cmd.String("target"))
	if err != nil {
		return err
	}

	orchestrator := upload.NewOrchestrator(uploader, upload.WithLogger(appCtx.Logger))

	var bar *ProgressBar
	if !cmd.Bool("quiet") {
		bar = NewProgressBar(out, 40)
	}
	onProgress := func(p upload.BatchProgress) {
		if bar != nil {
			bar.Update(p)
		}
	}

	handle, err := orchestrator.Submit(ctx, upload.Submission{
		Files:             localfs.UploadFiles(files),
		AllowedExtensions: allowed,
		AnatomyPreset:     presetName,
	}, onProgress, nil)
	if err != nil {
		var vErr *upload.ValidationError
		if errors.As(err, &vErr) {
			return fmt.Errorf("アップロードできないファイルがあります: %w", err)
		}
		return err
	}

	result := handle.Wait()
	if bar != nil {
		bar.Finish()
	}

	renderBatchResult(out, result)

	if cmd.Bool("show-status") && !result.Cancelled {
		registry, err := appCtx.Registry(ctx)
		if err != nil {
			return err
		}
		poller := jobstatus.NewPoller(registry, jobstatus.WithPollerLogger(appCtx.Logger))
		fmt.Fprintln(out)
		renderSnapshot(out, poller.Refresh(ctx))
	}

	if result.Cancelled {
		return fmt.Errorf("アップロードが中断されました: %w", context.Cause(ctx))
	}
	if n := result.FailedCount(); n > 0 {
		return fmt.Errorf("%d 件のアップロードに失敗しました", n)
	}
	return nil
}
