package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/migrationflow/internal/ctxkeys"
	"github.com/BaSui01/migrationflow/internal/tlsutil"
	"github.com/BaSui01/migrationflow/types"
)

// maxResponseBytes 单个响应体上限
const maxResponseBytes = 16 << 20

// Recorder 记录外部请求指标
type Recorder interface {
	RecordUpstreamRequest(upstream, operation string, status int, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordUpstreamRequest(string, string, int, time.Duration) {}

// Option 配置 Gateway 与 Broker
type Option func(*client)

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *client) { cl.http = c }
}

// WithRateLimit 设置每秒请求数与突发量；rps <= 0 表示不限速
func WithRateLimit(rps float64, burst int) Option {
	return func(cl *client) { cl.limiter = newLimiter(rps, burst) }
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(cl *client) { cl.logger = l }
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(cl *client) { cl.recorder = r }
}

// client 共享的 JSON over HTTP 调用
type client struct {
	name     string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
	recorder Recorder
}

func newClient(name, baseURL string, timeout time.Duration, opts []Option) *client {
	c := &client{
		name:     name,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     tlsutil.SecureHTTPClient(timeout),
		limiter:  newLimiter(0, 0),
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.With(zap.String("component", name))
	return c
}

func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// postJSON 发送 JSON 请求并解码 2xx 响应到 out
func (c *client) postJSON(ctx context.Context, operation, path string, header http.Header, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return types.WrapError(err, types.ErrRateLimited, "rate limiter wait").WithProvider(c.name).WithRetryable(ctx.Err() == nil)
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s %s: encode request: %w", c.name, operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", c.name, operation, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id, ok := ctxkeys.RequestID(ctx); ok {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.recorder.RecordUpstreamRequest(c.name, operation, 0, time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) {
			return types.NewError(types.ErrUpstreamTimeout, operation+" timed out").
				WithCause(err).WithProvider(c.name).WithRetryable(true)
		}
		return types.NewError(types.ErrProviderUnavailable, operation+" request failed").
			WithCause(err).WithProvider(c.name).WithRetryable(true)
	}
	defer resp.Body.Close()
	c.recorder.RecordUpstreamRequest(c.name, operation, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := readErrorMessage(io.LimitReader(resp.Body, 64<<10))
		c.logger.Warn("upstream request failed",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg),
		)
		return MapHTTPError(resp.StatusCode, msg, c.name)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return types.WrapError(err, types.ErrUpstreamError, operation+": decode response").WithProvider(c.name)
	}
	return nil
}

// MapHTTPError 将 HTTP 状态码映射为带重试标记的 types.Error
func MapHTTPError(status int, msg, provider string) *types.Error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	var e *types.Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = types.NewError(types.ErrAccessDenied, msg)
	case status == http.StatusTooManyRequests:
		e = types.NewError(types.ErrRateLimited, msg).WithRetryable(true)
	case status == http.StatusNotFound:
		e = types.NewError(types.ErrNotFound, msg)
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		e = types.NewError(types.ErrUpstreamTimeout, msg).WithRetryable(true)
	case status >= 500:
		e = types.NewError(types.ErrUpstreamError, msg).WithRetryable(true)
	default:
		e = types.NewError(types.ErrInvalidRequest, msg)
	}
	return e.WithHTTPStatus(status).WithProvider(provider)
}

// readErrorMessage 优先解析 {"error":{"message"}} 或 {"message"}，否则返回原文
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "failed to read error response"
	}
	var resp struct {
		Message string `json:"message"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &resp); err == nil {
		if resp.Error != nil && resp.Error.Message != "" {
			return resp.Error.Message
		}
		if resp.Message != "" {
			return resp.Message
		}
	}
	return strings.TrimSpace(string(data))
}
