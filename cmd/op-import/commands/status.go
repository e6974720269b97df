package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/jinford/op-import/internal/core/jobstatus"
	"github.com/jinford/op-import/internal/infra/redisstatus"
)

// StatusListAction はジョブ一覧を1回取得して表示するコマンドのアクション
func StatusListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	registry, err := appCtx.Registry(ctx)
	if err != nil {
		return err
	}

	poller := jobstatus.NewPoller(registry, jobstatus.WithPollerLogger(appCtx.Logger))
	snap := poller.Refresh(ctx)
	if snap.Stale {
		return fmt.Errorf("ジョブ一覧の取得に失敗: %s", snap.LastError)
	}

	if cmd.Bool("restartable") {
		snap.Jobs = snap.Restartable()
	}

	renderSnapshot(stdout(cmd), snap)
	return nil
}

// StatusWatchAction はジョブ一覧を定期的に取得して表示するコマンドのアクション
func StatusWatchAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	registry, err := appCtx.Registry(ctx)
	if err != nil {
		return err
	}

	interval := cmd.Duration("interval")
	if interval <= 0 {
		interval = appCtx.Config.Status.PollInterval
	}
	maxCycles := int(cmd.Int("count"))
	out := stdout(cmd)

	var publish func(jobstatus.Snapshot)
	if cmd.Bool("publish") {
		redisCfg := appCtx.Config.Redis
		publisher, closeRedis, err := redisstatus.Connect(ctx, redisstatus.Config{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
			Key:      redisCfg.Key,
			Channel:  redisCfg.Channel,
			TTL:      redisCfg.TTL,
		}, appCtx.Logger)
		if err != nil {
			return fmt.Errorf("Redisへの接続に失敗: %w", err)
		}
		defer closeRedis()
		publish = publisher.PublishFunc(ctx, 5*time.Second)
	}

	// 公開関数の中では Stop を呼べないため、上限到達はチャネルで知らせる
	reached := make(chan struct{})
	cycles := 0
	onSnapshot := func(snap jobstatus.Snapshot) {
		renderWatchCycle(out, snap)
		if publish != nil {
			publish(snap)
		}
		cycles++
		if maxCycles > 0 && cycles == maxCycles {
			close(reached)
		}
	}

	poller := jobstatus.NewPoller(registry,
		jobstatus.WithPollerLogger(appCtx.Logger),
		jobstatus.WithPublisher(onSnapshot),
	)

	handle, err := poller.Start(ctx, interval)
	if err != nil {
		return fmt.Errorf("ポーリングの開始に失敗: %w", err)
	}
	defer handle.Stop()

	appCtx.Logger.Info("ジョブの監視を開始しました", "interval", interval.String())

	select {
	case <-ctx.Done():
	case <-reached:
	case <-handle.Done():
	}
	return nil
}

func renderWatchCycle(w io.Writer, snap jobstatus.Snapshot) {
	fmt.Fprintf(w, "\n=== %s (cycle %d) ===\n", formatTimestamp(snap.FetchedAt), snap.Cycle)
	renderSnapshot(w, snap)
}

// StatusRestartAction はジョブの再実行を要求するコマンドのアクション
func StatusRestartAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	registry, err := appCtx.Registry(ctx)
	if err != nil {
		return err
	}
	poller := jobstatus.NewPoller(registry, jobstatus.WithPollerLogger(appCtx.Logger))

	processID := cmd.String("process-id")
	if cmd.Bool("interactive") {
		processID, err = selectRestartableJob(ctx, poller)
		if err != nil {
			return err
		}
	}
	if processID == "" {
		return fmt.Errorf("--process-id または --interactive を指定してください")
	}

	// 一覧にあるジョブは再実行できる状態か確認する
	snap := poller.Refresh(ctx)
	for _, job := range snap.Jobs {
		if job.ProcessID.OrEmpty() == processID && !job.Restartable {
			return fmt.Errorf("ジョブ %s は再実行できません (status: %s)", job.Project, job.Status)
		}
	}

	if err := poller.Restart(ctx, processID); err != nil {
		if errors.Is(err, jobstatus.ErrJobNotFound) {
			return fmt.Errorf("ジョブが見つかりません: %s", processID)
		}
		return fmt.Errorf("再実行の要求に失敗: %w", err)
	}

	fmt.Fprintf(stdout(cmd), "再実行を要求しました: %s\n", processID)
	return nil
}

// selectRestartableJob は再実行可能なジョブを選択させてプロセスIDを返す
func selectRestartableJob(ctx context.Context, poller *jobstatus.Poller) (string, error) {
	snap := poller.Refresh(ctx)
	if snap.Stale {
		return "", fmt.Errorf("ジョブ一覧の取得に失敗: %s", snap.LastError)
	}

	jobs := snap.Restartable()
	if len(jobs) == 0 {
		return "", fmt.Errorf("再実行できるジョブはありません")
	}

	items := make([]string, len(jobs))
	for i, job := range jobs {
		items[i] = fmt.Sprintf("%s [%s] %s", job.Project, job.Status, formatTimestamp(job.UpdatedAt))
	}

	prompt := promptui.Select{
		Label: "再実行するジョブ",
		Items: items,
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return jobs[idx].ProcessID.OrEmpty(), nil
}
