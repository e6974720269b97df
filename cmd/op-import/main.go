package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/op-import/cmd/op-import/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "op-import",
		Usage: "制作パイプラインへのアーカイブ一括アップロードとインポートジョブの監視",
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "ファイルを順番にアップロード",
				ArgsUsage: "<file|dir>...",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringSliceFlag{
						Name:  "allow-ext",
						Usage: "許可する拡張子（省略時は IMPORT_ALLOWED_EXTENSIONS）",
					},
					&cli.StringFlag{
						Name:  "preset",
						Usage: "アナトミープリセット名（_ はサーバーのデフォルト）",
					},
					&cli.StringFlag{
						Name:  "target",
						Usage: "アップロード先 (http|s3)。省略時は IMPORT_TARGET",
					},
					&cli.StringSliceFlag{
						Name:  "exclude",
						Usage: "ディレクトリ展開時に除外する gitignore 形式のパターン",
					},
					&cli.BoolFlag{
						Name:  "show-status",
						Usage: "完了後にジョブ一覧を表示",
					},
					&cli.BoolFlag{
						Name:  "quiet",
						Usage: "プログレスバーを表示しない",
					},
				},
				Action: commands.UploadAction,
			},
			{
				Name:  "status",
				Usage: "インポートジョブのステータス",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "ジョブ一覧を表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.BoolFlag{
								Name:  "restartable",
								Usage: "再実行可能なジョブのみ表示",
							},
						},
						Action: commands.StatusListAction,
					},
					{
						Name:  "watch",
						Usage: "ジョブ一覧を定期的に取得して表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.DurationFlag{
								Name:  "interval",
								Usage: "取得間隔（省略時は STATUS_POLL_INTERVAL）",
							},
							&cli.IntFlag{
								Name:  "count",
								Usage: "指定回数取得したら終了（0 は無制限）",
							},
							&cli.BoolFlag{
								Name:  "publish",
								Usage: "取得結果を Redis に配信",
							},
						},
						Action: commands.StatusWatchAction,
					},
					{
						Name:  "restart",
						Usage: "ジョブの再実行を要求",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:  "process-id",
								Usage: "再実行するジョブのプロセスID",
							},
							&cli.BoolFlag{
								Name:  "interactive",
								Usage: "再実行可能なジョブから選択",
							},
						},
						Action: commands.StatusRestartAction,
					},
				},
			},
			{
				Name:  "presets",
				Usage: "アナトミープリセット",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "プリセットの選択肢を表示",
						Flags:  []cli.Flag{envFlag()},
						Action: commands.PresetsListAction,
					},
				},
			},
			{
				Name:  "schedule",
				Usage: "ドロップフォルダを定期的に取り込む",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "dir",
						Usage: "ドロップフォルダ（省略時は DROP_FOLDER_DIR）",
					},
					&cli.StringFlag{
						Name:  "schedule",
						Usage: "Cron形式のスケジュール（省略時は DROP_FOLDER_SCHEDULE）",
					},
					&cli.StringFlag{
						Name:  "target",
						Usage: "アップロード先 (http|s3)。省略時は IMPORT_TARGET",
					},
					&cli.BoolFlag{
						Name:  "once",
						Usage: "1回だけ取り込んで終了",
					},
				},
				Action: commands.ScheduleAction,
			},
		},
	}
}
