package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// バックエンドAPI設定
	Server ServerConfig

	// アップロード設定
	Import ImportConfig

	// ステータス監視設定
	Status StatusConfig

	// Database設定（レジストリを直接参照する場合）
	Database DatabaseConfig

	// オブジェクトストレージ設定（アップロード先を S3 にする場合）
	ObjectStore ObjectStoreConfig

	// Redis設定（ステータスの配信用）
	Redis RedisConfig

	// ドロップフォルダ設定
	DropFolder DropFolderConfig

	// ログ設定
	LogLevel  string
	LogFormat string
}

// ServerConfig はバックエンドAPIの接続設定
type ServerConfig struct {
	URL          string
	APIKey       string
	AccessToken  string
	AddonName    string
	AddonVersion string
	Timeout      time.Duration
}

// ImportConfig はアップロードの設定
type ImportConfig struct {
	AllowedExtensions []string
	DefaultPreset     string
	Target            string // "http" or "s3"
}

// StatusConfig はステータス監視の設定
type StatusConfig struct {
	PollInterval time.Duration
	Registry     string // "http" or "postgres"
	ListLimit    int
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ObjectStoreConfig はS3互換ストレージの設定
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// RedisConfig はRedis接続設定
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Channel  string
	TTL      time.Duration
}

// DropFolderConfig はドロップフォルダ取り込みの設定
type DropFolderConfig struct {
	Dir        string
	Schedule   string
	IgnoreFile string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			URL:          getEnv("AYON_SERVER_URL", "http://localhost:5000"),
			APIKey:       getEnv("AYON_API_KEY", ""),
			AccessToken:  getEnv("AYON_ACCESS_TOKEN", ""),
			AddonName:    getEnv("AYON_ADDON_NAME", "openpype_import"),
			AddonVersion: getEnv("AYON_ADDON_VERSION", ""),
			Timeout:      getEnvAsDuration("HTTP_TIMEOUT", 0),
		},
		Import: ImportConfig{
			AllowedExtensions: getEnvAsList("IMPORT_ALLOWED_EXTENSIONS", []string{"zip"}),
			DefaultPreset:     getEnv("IMPORT_DEFAULT_PRESET", "_"),
			Target:            getEnv("IMPORT_TARGET", "http"),
		},
		Status: StatusConfig{
			PollInterval: getEnvAsDuration("STATUS_POLL_INTERVAL", 2*time.Second),
			Registry:     getEnv("STATUS_REGISTRY", "http"),
			ListLimit:    getEnvAsInt("STATUS_LIST_LIMIT", 100),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "ayon"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "ayon"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", ""),
			Prefix:    getEnv("S3_PREFIX", "imports"),
			UseSSL:    getEnvAsBool("S3_USE_SSL", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Key:      getEnv("REDIS_STATUS_KEY", "op-import:status"),
			Channel:  getEnv("REDIS_STATUS_CHANNEL", "op-import:status:updates"),
			TTL:      getEnvAsDuration("REDIS_STATUS_TTL", time.Minute),
		},
		DropFolder: DropFolderConfig{
			Dir:        getEnv("DROP_FOLDER_DIR", ""),
			Schedule:   getEnv("DROP_FOLDER_SCHEDULE", "@every 1m"),
			IgnoreFile: getEnv("DROP_FOLDER_IGNORE_FILE", ".importignore"),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	return cfg, nil
}

// ValidateServer はバックエンドAPIの利用に必要な設定を検証します
func (c *Config) ValidateServer() error {
	if c.Server.URL == "" {
		return errors.New("AYON_SERVER_URL is required")
	}
	if c.Server.AddonName == "" {
		return errors.New("AYON_ADDON_NAME is required")
	}
	if c.Server.AddonVersion == "" {
		return errors.New("AYON_ADDON_VERSION is required")
	}
	return nil
}

// ValidateObjectStore はオブジェクトストレージの設定を検証します
func (c *Config) ValidateObjectStore() error {
	if c.ObjectStore.Endpoint == "" || c.ObjectStore.Bucket == "" {
		return errors.New("S3_ENDPOINT and S3_BUCKET are required")
	}
	return nil
}

// ValidateDropFolder はドロップフォルダの設定を検証します
func (c *Config) ValidateDropFolder() error {
	if c.DropFolder.Dir == "" {
		return errors.New("DROP_FOLDER_DIR is required")
	}
	info, err := os.Stat(c.DropFolder.Dir)
	if err != nil {
		return fmt.Errorf("failed to stat drop folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("drop folder %s is not a directory", c.DropFolder.Dir)
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します
// 単位のない数値は秒として扱う
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList はカンマ区切りの環境変数をスライスとして取得します
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
