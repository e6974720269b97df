package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jinford/op-import/internal/core/jobstatus"
	"github.com/jinford/op-import/internal/core/preset"
	"github.com/jinford/op-import/internal/core/upload"
	"github.com/jinford/op-import/internal/infra/ayon"
	"github.com/jinford/op-import/internal/infra/objectstore"
	"github.com/jinford/op-import/internal/infra/postgres"
	"github.com/jinford/op-import/internal/platform/config"
	"github.com/jinford/op-import/internal/platform/logger"
)

const (
	targetHTTP = "http"
	targetS3   = "s3"

	registryHTTP     = "http"
	registryPostgres = "postgres"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
// バックエンドへの接続は必要になった時点で作成する
type AppContext struct {
	Config *config.Config
	Logger *slog.Logger

	client   *ayon.Client
	database *postgres.DB
}

// NewAppContext は設定ファイルを読み込み、ロガーを初期化して AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})

	return &AppContext{
		Config: cfg,
		Logger: appLogger,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.database != nil {
		ac.database.Close()
		ac.database = nil
	}
}

// Client はバックエンドAPIクライアントを返す
func (ac *AppContext) Client() (*ayon.Client, error) {
	if ac.client != nil {
		return ac.client, nil
	}
	if err := ac.Config.ValidateServer(); err != nil {
		return nil, err
	}

	client, err := ayon.NewClient(ayon.Config{
		ServerURL:    ac.Config.Server.URL,
		APIKey:       ac.Config.Server.APIKey,
		AccessToken:  ac.Config.Server.AccessToken,
		AddonName:    ac.Config.Server.AddonName,
		AddonVersion: ac.Config.Server.AddonVersion,
		Timeout:      ac.Config.Server.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("APIクライアントの作成に失敗: %w", err)
	}
	ac.client = client
	return client, nil
}

// Database はレジストリのデータベースへ接続する
func (ac *AppContext) Database(ctx context.Context) (*postgres.DB, error) {
	if ac.database != nil {
		return ac.database, nil
	}

	db, err := postgres.New(ctx, postgres.ConnectionParams{
		Host:     ac.Config.Database.Host,
		Port:     ac.Config.Database.Port,
		User:     ac.Config.Database.User,
		Password: ac.Config.Database.Password,
		DBName:   ac.Config.Database.DBName,
		SSLMode:  ac.Config.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("データベースへの接続に失敗: %w", err)
	}
	ac.database = db
	return db, nil
}

// Registry は STATUS_REGISTRY に応じたジョブレジストリを返す
func (ac *AppContext) Registry(ctx context.Context) (jobstatus.Registry, error) {
	switch ac.Config.Status.Registry {
	case registryPostgres:
		db, err := ac.Database(ctx)
		if err != nil {
			return nil, err
		}
		return postgres.NewRegistry(db.Pool, ac.Config.Status.ListLimit), nil
	case registryHTTP, "":
		return ac.Client()
	default:
		return nil, fmt.Errorf("unknown status registry %q", ac.Config.Status.Registry)
	}
}

// PresetSource はプリセット一覧の取得元を返す
func (ac *AppContext) PresetSource(ctx context.Context) (preset.Source, error) {
	switch ac.Config.Status.Registry {
	case registryPostgres:
		db, err := ac.Database(ctx)
		if err != nil {
			return nil, err
		}
		return postgres.NewRegistry(db.Pool, ac.Config.Status.ListLimit), nil
	case registryHTTP, "":
		return ac.Client()
	default:
		return nil, fmt.Errorf("unknown status registry %q", ac.Config.Status.Registry)
	}
}

// ResolvePreset はプリセット名が登録済みか確認して返す
// 空と "_" はサーバーのデフォルトとしてそのまま返す
func (ac *AppContext) ResolvePreset(ctx context.Context, name string) (string, error) {
	if name == "" || name == preset.DefaultName {
		return name, nil
	}

	source, err := ac.PresetSource(ctx)
	if err != nil {
		return "", err
	}
	resolved, err := preset.NewCatalog(source, ac.Logger).Resolve(ctx, name)
	if err != nil {
		return "", fmt.Errorf("プリセットの確認に失敗: %w", err)
	}
	return resolved, nil
}

// Uploader はアップロード先に応じた Uploader を返す
func (ac *AppContext) Uploader(target string) (upload.Uploader, error) {
	if target == "" {
		target = ac.Config.Import.Target
	}

	switch target {
	case targetS3:
		if err := ac.Config.ValidateObjectStore(); err != nil {
			return nil, err
		}
		u, err := objectstore.New(objectstore.Config{
			Endpoint:  ac.Config.ObjectStore.Endpoint,
			AccessKey: ac.Config.ObjectStore.AccessKey,
			SecretKey: ac.Config.ObjectStore.SecretKey,
			Bucket:    ac.Config.ObjectStore.Bucket,
			Prefix:    ac.Config.ObjectStore.Prefix,
			UseSSL:    ac.Config.ObjectStore.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("オブジェクトストレージの初期化に失敗: %w", err)
		}
		return u, nil
	case targetHTTP, "":
		return ac.Client()
	default:
		return nil, fmt.Errorf("unknown upload target %q", target)
	}
}

// stdout はコマンドの出力先を返す
func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
