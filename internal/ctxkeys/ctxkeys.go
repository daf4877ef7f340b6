package ctxkeys

import (
	"context"

	"go.uber.org/zap"
)

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	traceIDKey   contextKey = "trace_id"
	runIDKey     contextKey = "run_id"
	requestIDKey contextKey = "request_id"
	waveIDKey    contextKey = "wave_id"
)

// WithTraceID 设置 TraceID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID 获取 TraceID
func TraceID(ctx context.Context) (string, bool) {
	return stringValue(ctx, traceIDKey)
}

// WithRunID 设置轮询运行 ID
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID 获取轮询运行 ID
func RunID(ctx context.Context) (string, bool) {
	return stringValue(ctx, runIDKey)
}

// WithRequestID 设置 HTTP 请求 ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID 获取 HTTP 请求 ID
func RequestID(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey)
}

// WithWaveID 设置迁移批次 ID
func WithWaveID(ctx context.Context, waveID string) context.Context {
	return context.WithValue(ctx, waveIDKey, waveID)
}

// WaveID 获取迁移批次 ID
func WaveID(ctx context.Context) (string, bool) {
	return stringValue(ctx, waveIDKey)
}

// LogFields 将 context 中已设置的 ID 转为日志字段
func LogFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	for _, k := range []contextKey{runIDKey, waveIDKey, requestIDKey, traceIDKey} {
		if v, ok := stringValue(ctx, k); ok {
			fields = append(fields, zap.String(string(k), v))
		}
	}
	return fields
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
