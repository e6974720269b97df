package redisstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jinford/op-import/internal/core/jobstatus"
)

// Config はRedisへの配信設定
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Channel  string
	TTL      time.Duration
}

type statusClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher はジョブ一覧のスナップショットを Redis に保存し、チャネルへ配信します
// 他のダッシュボードはキーを読むか、チャネルを購読する
type Publisher struct {
	client  statusClient
	key     string
	channel string
	ttl     time.Duration
	logger  *slog.Logger
}

// Connect は Redis に接続して Publisher を作成します
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Publisher, func() error, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewPublisher(client, cfg, logger), client.Close, nil
}

// NewPublisher は新しいPublisherを作成します
func NewPublisher(client statusClient, cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:  client,
		key:     cfg.Key,
		channel: cfg.Channel,
		ttl:     cfg.TTL,
		logger:  logger,
	}
}

type jobPayload struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Category    string    `json:"category"`
	Icon        string    `json:"icon"`
	Project     string    `json:"project"`
	User        string    `json:"user"`
	Description string    `json:"description"`
	ProcessID   string    `json:"processId,omitempty"`
	Restartable bool      `json:"restartable"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type snapshotPayload struct {
	Jobs      []jobPayload `json:"jobs"`
	FetchedAt time.Time    `json:"fetchedAt"`
	Stale     bool         `json:"stale"`
	LastError string       `json:"lastError,omitempty"`
	Cycle     int          `json:"cycle"`
}

// Encode はスナップショットをJSONに変換します
func Encode(snap jobstatus.Snapshot) ([]byte, error) {
	payload := snapshotPayload{
		Jobs:      make([]jobPayload, 0, len(snap.Jobs)),
		FetchedAt: snap.FetchedAt,
		Stale:     snap.Stale,
		LastError: snap.LastError,
		Cycle:     snap.Cycle,
	}
	for _, j := range snap.Jobs {
		payload.Jobs = append(payload.Jobs, jobPayload{
			ID:          j.ID,
			Status:      j.Status,
			Category:    string(j.Category),
			Icon:        j.Icon,
			Project:     j.Project,
			User:        j.User,
			Description: j.Description,
			ProcessID:   j.ProcessID.OrEmpty(),
			Restartable: j.Restartable,
			CreatedAt:   j.CreatedAt,
			UpdatedAt:   j.UpdatedAt,
		})
	}
	return json.Marshal(payload)
}

// Publish はスナップショットを保存して配信します
func (p *Publisher) Publish(ctx context.Context, snap jobstatus.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := p.client.Set(ctx, p.key, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	if p.channel != "" {
		if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
			return fmt.Errorf("failed to publish snapshot: %w", err)
		}
	}
	return nil
}

// PublishFunc は Poller に登録できる公開関数を返します
// 配信の失敗はログに記録するだけでポーリングには影響させない
func (p *Publisher) PublishFunc(ctx context.Context, timeout time.Duration) jobstatus.PublishFunc {
	return func(snap jobstatus.Snapshot) {
		pubCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := p.Publish(pubCtx, snap); err != nil {
			p.logger.Warn("ステータスの配信に失敗", "key", p.key, "error", err)
		}
	}
}
