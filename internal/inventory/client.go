// Package inventory 提供库存服务的 HTTP 状态写入客户端。
//
// Client 实现 convergence.StatusWriter：PUT /api/v1/servers/{id}/status，
// 原样返回响应状态码，由轮询器决定 401/403 与其他非 2xx 的处理方式。
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/internal/ctxkeys"
	"github.com/BaSui01/migrationflow/internal/tlsutil"
)

// Name 库存服务在错误与指标中的名称
const Name = "inventory"

// Recorder 记录外部请求指标
type Recorder interface {
	RecordUpstreamRequest(upstream, operation string, status int, duration time.Duration)
}

// Client 库存服务客户端，每个实例绑定一个状态字段
type Client struct {
	baseURL  string
	apiKey   string
	field    string
	http     *http.Client
	logger   *zap.Logger
	recorder Recorder
}

// Option 配置 Client
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(cl *Client) { cl.recorder = r }
}

// NewClient 创建写入 field 字段的客户端
func NewClient(baseURL, apiKey, field string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		field:   field,
		http:    tlsutil.SecureHTTPClient(timeout),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.With(zap.String("component", Name), zap.String("field", field))
	return c
}

type statusBody struct {
	Field  string `json:"field"`
	Status string `json:"status"`
}

// WriteStatus 写入目标状态并返回响应状态码；传输失败时返回错误
func (c *Client) WriteStatus(ctx context.Context, targetID, status string) (int, error) {
	body, err := json.Marshal(statusBody{Field: c.field, Status: status})
	if err != nil {
		return 0, err
	}

	endpoint := fmt.Sprintf("%s/api/v1/servers/%s/status", c.baseURL, url.PathEscape(targetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build inventory request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if id, ok := ctxkeys.RequestID(ctx); ok {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.record(0, start)
		return 0, fmt.Errorf("write status for %s: %w", targetID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	c.record(resp.StatusCode, start)

	if resp.StatusCode >= 300 {
		c.logger.Warn("status write rejected",
			zap.String("target_id", targetID),
			zap.Int("status", resp.StatusCode),
		)
	}
	return resp.StatusCode, nil
}

func (c *Client) record(status int, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordUpstreamRequest(Name, "write_status", status, time.Since(start))
	}
}
