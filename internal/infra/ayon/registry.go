package ayon

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/samber/mo"

	"github.com/jinford/op-import/internal/core/jobstatus"
)

// jobSummary は一覧エンドポイントのレスポンス要素
type jobSummary struct {
	Project     string     `json:"project"`
	User        string     `json:"user"`
	UploadID    string     `json:"uploadId"`
	ProcessID   *string    `json:"processId"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	CreatedAt   *time.Time `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (s jobSummary) toRecord() jobstatus.JobRecord {
	rec := jobstatus.JobRecord{
		ID:          s.UploadID,
		Status:      s.Status,
		Project:     s.Project,
		User:        s.User,
		Description: s.Description,
		CreatedAt:   s.UpdatedAt,
		UpdatedAt:   s.UpdatedAt,
		ProcessID:   mo.PointerToOption(s.ProcessID),
	}
	if s.CreatedAt != nil {
		rec.CreatedAt = *s.CreatedAt
	}
	return rec
}

// ListJobs はアップロード済みジョブの一覧を取得します
func (c *Client) ListJobs(ctx context.Context) ([]jobstatus.JobRecord, error) {
	var summaries []jobSummary

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&summaries).
		Get(c.addonPath("list"))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, responseError("list request failed", resp)
	}

	records := make([]jobstatus.JobRecord, 0, len(summaries))
	for _, s := range summaries {
		records = append(records, s.toRecord())
	}
	return records, nil
}

// SetStatus はプロセスイベントのステータスを更新します
func (c *Client) SetStatus(ctx context.Context, processID, status string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"status": status}).
		Patch("/api/events/" + url.PathEscape(processID))
	if err != nil {
		return err
	}
	if resp.StatusCode() == 404 {
		return fmt.Errorf("%w: %s", jobstatus.ErrJobNotFound, processID)
	}
	if resp.IsError() {
		return responseError("update event request failed", resp)
	}
	return nil
}
