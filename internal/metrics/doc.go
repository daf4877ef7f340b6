// 版权所有 2024 MigrationFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
HTTP、流水线、收敛轮询、外部调用与数据库五个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离。

# 核心类型

  - Collector：指标收集器，同时满足 convergence.Recorder、
    transfer.Recorder 与 database.StatsReporter 接口。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 流水线指标：流程图编译次数、模板导入结果计数。
  - 轮询指标：轮次计数、轮次耗时、仍在收敛的目标数、状态写入结果与最终结果。
  - 外部调用指标：网关、凭据代理与库存服务的请求计数与耗时。
  - 数据库指标：打开/空闲连接数 Gauge。
*/
package metrics
