// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 流水线指标
	diagramCompilesTotal *prometheus.CounterVec
	templateImportsTotal *prometheus.CounterVec

	// 收敛轮询指标
	pollRoundsTotal   *prometheus.CounterVec
	pollRoundDuration *prometheus.HistogramVec
	pollConverging    *prometheus.GaugeVec
	statusWritesTotal *prometheus.CounterVec
	pollOutcomesTotal *prometheus.CounterVec

	// 外部调用指标
	upstreamRequestsTotal   *prometheus.CounterVec
	upstreamRequestDuration *prometheus.HistogramVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 流水线指标
	c.diagramCompilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagram_compiles_total",
			Help:      "Total number of diagram uploads compiled, by result",
		},
		[]string{"result"},
	)

	c.templateImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_imports_total",
			Help:      "Total number of pipeline templates imported, by result",
		},
		[]string{"result"},
	)

	// 收敛轮询指标
	c.pollRoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_rounds_total",
			Help:      "Total number of convergence polling rounds",
		},
		[]string{"poller"},
	)

	c.pollRoundDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_round_duration_seconds",
			Help:      "Convergence polling round duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"poller"},
	)

	c.pollConverging = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_targets_converging",
			Help:      "Targets still converging after the latest round",
		},
		[]string{"poller"},
	)

	c.statusWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_writes_total",
			Help:      "Total number of target status writes, by result",
		},
		[]string{"poller", "result"},
	)

	c.pollOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_outcomes_total",
			Help:      "Total number of finished polling runs, by outcome",
		},
		[]string{"poller", "outcome"},
	)

	// 外部调用指标
	c.upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of requests to gateway, broker and inventory",
		},
		[]string{"upstream", "operation", "status"},
	)

	c.upstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"upstream", "operation"},
	)

	// 数据库指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🧩 流水线指标记录
// =============================================================================

// RecordDiagramCompile 记录流程图编译
func (c *Collector) RecordDiagramCompile(result string) {
	c.diagramCompilesTotal.WithLabelValues(result).Inc()
}

// RecordTemplateImport 记录模板导入
func (c *Collector) RecordTemplateImport(result string) {
	c.templateImportsTotal.WithLabelValues(result).Inc()
}

// =============================================================================
// 🔁 收敛轮询指标记录
// =============================================================================

// RecordPollRound 记录一轮轮询
func (c *Collector) RecordPollRound(poller string, duration time.Duration, converging int) {
	c.pollRoundsTotal.WithLabelValues(poller).Inc()
	c.pollRoundDuration.WithLabelValues(poller).Observe(duration.Seconds())
	c.pollConverging.WithLabelValues(poller).Set(float64(converging))
}

// RecordStatusWrite 记录状态写入
func (c *Collector) RecordStatusWrite(poller, result string) {
	c.statusWritesTotal.WithLabelValues(poller, result).Inc()
}

// RecordPollOutcome 记录轮询结束方式
func (c *Collector) RecordPollOutcome(poller, outcome string) {
	c.pollOutcomesTotal.WithLabelValues(poller, outcome).Inc()
}

// =============================================================================
// 🌐 外部调用指标记录
// =============================================================================

// RecordUpstreamRequest 记录对外部协作者的请求
func (c *Collector) RecordUpstreamRequest(upstream, operation string, status int, duration time.Duration) {
	c.upstreamRequestsTotal.WithLabelValues(upstream, operation, statusCode(status)).Inc()
	c.upstreamRequestDuration.WithLabelValues(upstream, operation).Observe(duration.Seconds())
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
