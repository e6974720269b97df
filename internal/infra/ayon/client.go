package ayon

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config はバックエンドAPIへの接続設定
type Config struct {
	ServerURL    string
	APIKey       string
	AccessToken  string
	AddonName    string
	AddonVersion string
	Timeout      time.Duration
}

// Client はインポートアドオンのHTTP APIクライアント
// upload.Uploader, jobstatus.Registry, preset.Source を実装する
type Client struct {
	cfg  Config
	http *resty.Client
}

// NewClient は新しいClientを作成します
func NewClient(cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server url is required")
	}
	if cfg.AddonName == "" || cfg.AddonVersion == "" {
		return nil, fmt.Errorf("addon name and version are required")
	}

	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.ServerURL, "/")).
		SetTimeout(cfg.Timeout)

	switch {
	case cfg.APIKey != "":
		c.SetHeader("X-Api-Key", cfg.APIKey)
	case cfg.AccessToken != "":
		c.SetAuthToken(cfg.AccessToken)
	}

	return &Client{cfg: cfg, http: c}, nil
}

// addonPath はアドオンのエンドポイントパスを返します
func (c *Client) addonPath(endpoint string) string {
	return fmt.Sprintf("/api/addons/%s/%s/%s",
		url.PathEscape(c.cfg.AddonName),
		url.PathEscape(c.cfg.AddonVersion),
		endpoint,
	)
}

func responseError(op string, resp *resty.Response) error {
	body := strings.TrimSpace(resp.String())
	if body == "" {
		return fmt.Errorf("%s: %s", op, resp.Status())
	}
	return fmt.Errorf("%s: %s; body: %s", op, resp.Status(), body)
}
