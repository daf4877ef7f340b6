// Copyright (c) MigrationFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 MigrationFlow 服务端与命令行入口。

# 概述

cmd/migrationflow 是迁移批次跟踪后端的可执行入口，提供 HTTP API 服务、
流程图编译、模板导出、复制与实例收敛轮询、数据库迁移、健康检查和版本查询等子命令。
程序支持 YAML 配置文件与环境变量加载、结构化日志（zap）、Prometheus 指标采集
以及 OpenTelemetry 链路追踪。

# 核心类型

  - Server          ：主服务器，管理 API、Metrics 双端口及优雅关闭
  - Middleware      ：HTTP 中间件函数签名 func(http.Handler) http.Handler
  - verifyKind      ：一种收敛检查（复制或实例）及其写回字段

# 主要能力

  - 子命令：serve、compile、export、verify-replication、verify-instances、
    migrate、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、OTelTracing、RequestLogger、
    MetricsMiddleware、CORS、RateLimiter（基于 IP）
  - 收敛轮询：按 (account, region) 分组，配置 Redis 时以运行锁防止同一批次并发轮询
  - 退出码：0 全部收敛，1 存在失败或运行中止，2 超时
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
