package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/op-import/internal/core/jobstatus"
	"github.com/jinford/op-import/internal/core/preset"
)

// UploadTopic はアップロードイベントのトピック
const UploadTopic = "openpype_import.upload"

const defaultListLimit = 30

// Registry はイベントテーブルを直接参照するジョブレジストリ
// jobstatus.Registry と preset.Source を実装する
type Registry struct {
	pool  *pgxpool.Pool
	sq    sq.StatementBuilderType
	limit uint64
}

// NewRegistry は新しいRegistryを作成します
func NewRegistry(pool *pgxpool.Pool, limit int) *Registry {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return &Registry{
		pool:  pool,
		sq:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		limit: uint64(limit),
	}
}

// jobRow はアップロードイベントと後続の処理イベントを結合した行
type jobRow struct {
	UploadID           string
	ProcessID          pgtype.Text
	UploadDescription  pgtype.Text
	ProcessDescription pgtype.Text
	UploadStatus       string
	ProcessStatus      pgtype.Text
	User               pgtype.Text
	Project            pgtype.Text
	UploadCreatedAt    time.Time
	UploadUpdatedAt    time.Time
	ProcessUpdatedAt   pgtype.Timestamptz
}

// toRecord は行をジョブに変換します
// 処理イベントがまだない場合、アップロードが失敗していれば failed、それ以外は in_progress とする
func (r jobRow) toRecord() jobstatus.JobRecord {
	status := PgtextToString(r.ProcessStatus)
	if status == "" {
		if r.UploadStatus == "failed" {
			status = "failed"
		} else {
			status = "in_progress"
		}
	}

	description := PgtextToString(r.ProcessDescription)
	if description == "" {
		description = PgtextToString(r.UploadDescription)
	}

	return jobstatus.JobRecord{
		ID:          r.UploadID,
		Status:      status,
		Project:     PgtextToString(r.Project),
		User:        PgtextToString(r.User),
		Description: description,
		CreatedAt:   r.UploadCreatedAt,
		UpdatedAt:   PgtimestamptzOr(r.ProcessUpdatedAt, r.UploadUpdatedAt),
		ProcessID:   PgtextToOption(r.ProcessID),
	}
}

func (r *Registry) listJobsQuery() (string, []any, error) {
	return r.sq.
		Select(
			"u.id::text",
			"p.id::text",
			"u.description",
			"p.description",
			"u.status",
			"p.status",
			"u.user_name",
			"u.project_name",
			"u.created_at",
			"u.updated_at",
			"p.updated_at",
		).
		From("events AS u").
		LeftJoin("events AS p ON u.id = p.depends_on").
		Where(sq.Eq{"u.topic": UploadTopic}).
		OrderBy("u.creation_order DESC").
		Limit(r.limit).
		ToSql()
}

// ListJobs は新しい順にジョブを取得します
func (r *Registry) ListJobs(ctx context.Context) ([]jobstatus.JobRecord, error) {
	query, args, err := r.listJobsQuery()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}

	jobRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (jobRow, error) {
		var j jobRow
		err := row.Scan(
			&j.UploadID,
			&j.ProcessID,
			&j.UploadDescription,
			&j.ProcessDescription,
			&j.UploadStatus,
			&j.ProcessStatus,
			&j.User,
			&j.Project,
			&j.UploadCreatedAt,
			&j.UploadUpdatedAt,
			&j.ProcessUpdatedAt,
		)
		return j, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan jobs: %w", err)
	}

	records := make([]jobstatus.JobRecord, 0, len(jobRows))
	for _, j := range jobRows {
		records = append(records, j.toRecord())
	}
	return records, nil
}

// SetStatus は処理イベントのステータスを更新します
// 同じイベントへの更新はアドバイザリロックで直列化する
func (r *Registry) SetStatus(ctx context.Context, processID, status string) error {
	query, args, err := r.sq.
		Update("events").
		Set("status", status).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id::text": processID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	_, err = transact(ctx, r.pool, func(tx pgx.Tx) (struct{}, error) {
		if err := acquireLock(ctx, tx, lockID("events", processID)); err != nil {
			return struct{}{}, err
		}

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to update event status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return struct{}{}, fmt.Errorf("%w: %s", jobstatus.ErrJobNotFound, processID)
		}
		return struct{}{}, nil
	})
	return err
}

// ListAnatomyPresets はアナトミープリセットを名前順に取得します
func (r *Registry) ListAnatomyPresets(ctx context.Context) ([]preset.Preset, error) {
	query, args, err := r.sq.
		Select("name", "is_primary").
		From("anatomy_presets").
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build presets query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query anatomy presets: %w", err)
	}

	presets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (preset.Preset, error) {
		var p preset.Preset
		err := row.Scan(&p.Name, &p.Primary)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan anatomy presets: %w", err)
	}
	return presets, nil
}
