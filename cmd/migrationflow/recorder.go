package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/internal/metrics"
	"github.com/BaSui01/migrationflow/internal/telemetry"
)

// runRecorder 把轮询与导入指标同时上报给 Prometheus 拉取端和 OTLP 推送管道
type runRecorder struct {
	prom *metrics.Collector
	otel *telemetry.Metrics
}

// newRunRecorder OTel 仪表创建失败时只保留 Prometheus
func newRunRecorder(collector *metrics.Collector, logger *zap.Logger) *runRecorder {
	m, err := telemetry.NewMetrics(nil)
	if err != nil {
		logger.Warn("failed to create otel instruments", zap.Error(err))
	}
	return &runRecorder{prom: collector, otel: m}
}

func (r *runRecorder) RecordPollRound(poller string, duration time.Duration, converging int) {
	r.prom.RecordPollRound(poller, duration, converging)
	r.otel.RecordPollRound(poller, duration, converging)
}

func (r *runRecorder) RecordStatusWrite(poller, result string) {
	r.prom.RecordStatusWrite(poller, result)
	r.otel.RecordStatusWrite(poller, result)
}

func (r *runRecorder) RecordPollOutcome(poller, outcome string) {
	r.prom.RecordPollOutcome(poller, outcome)
	r.otel.RecordPollOutcome(poller, outcome)
}

func (r *runRecorder) RecordTemplateImport(result string) {
	r.prom.RecordTemplateImport(result)
	r.otel.RecordTemplateImport(result)
}
