package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics 收敛轮询与模板导入的 OTel 仪表，经由 OTLP 推送。
// 方法签名与 convergence.Recorder、transfer.Recorder 一致；nil *Metrics 上的调用为空操作。
type Metrics struct {
	// 计数器
	pollRounds     metric.Int64Counter
	statusWrites   metric.Int64Counter
	pollOutcomes   metric.Int64Counter
	templateImport metric.Int64Counter
	// 直方图
	roundDuration metric.Float64Histogram
	converging    metric.Int64Histogram
}

// NewMetrics 在 mp 上创建仪表；mp 为 nil 时使用全局 MeterProvider
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(InstrumentationName)

	m := &Metrics{}
	var err error

	m.pollRounds, err = meter.Int64Counter("migrationflow.poll.rounds",
		metric.WithDescription("Completed polling rounds"),
		metric.WithUnit("{round}"))
	if err != nil {
		return nil, err
	}

	m.statusWrites, err = meter.Int64Counter("migrationflow.poll.status_writes",
		metric.WithDescription("Status writes by result"),
		metric.WithUnit("{write}"))
	if err != nil {
		return nil, err
	}

	m.pollOutcomes, err = meter.Int64Counter("migrationflow.poll.outcomes",
		metric.WithDescription("Polling runs by outcome"),
		metric.WithUnit("{run}"))
	if err != nil {
		return nil, err
	}

	m.templateImport, err = meter.Int64Counter("migrationflow.template.imports",
		metric.WithDescription("Template imports by result"),
		metric.WithUnit("{template}"))
	if err != nil {
		return nil, err
	}

	m.roundDuration, err = meter.Float64Histogram("migrationflow.poll.round.duration",
		metric.WithDescription("Polling round duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60))
	if err != nil {
		return nil, err
	}

	// 每轮结束时仍在收敛的目标数
	m.converging, err = meter.Int64Histogram("migrationflow.poll.converging",
		metric.WithDescription("Targets still converging at the end of a round"),
		metric.WithUnit("{target}"),
		metric.WithExplicitBucketBoundaries(0, 1, 5, 10, 25, 50, 100, 250))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordPollRound 记录一轮轮询
func (m *Metrics) RecordPollRound(poller string, duration time.Duration, converging int) {
	if m == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("poller", poller))
	m.pollRounds.Add(ctx, 1, attrs)
	m.roundDuration.Record(ctx, duration.Seconds(), attrs)
	m.converging.Record(ctx, int64(converging), attrs)
}

// RecordStatusWrite 记录一次状态写入
func (m *Metrics) RecordStatusWrite(poller, result string) {
	if m == nil {
		return
	}
	m.statusWrites.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("poller", poller),
		attribute.String("result", result)))
}

// RecordPollOutcome 记录一次轮询运行的结局
func (m *Metrics) RecordPollOutcome(poller, outcome string) {
	if m == nil {
		return
	}
	m.pollOutcomes.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("poller", poller),
		attribute.String("outcome", outcome)))
}

// RecordTemplateImport 记录一个模板的导入结果
func (m *Metrics) RecordTemplateImport(result string) {
	if m == nil {
		return
	}
	m.templateImport.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", result)))
}
