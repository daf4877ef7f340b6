// Copyright (c) MigrationFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 MigrationFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现流程图上传、模板导入导出、服务器状态写入与健康检查端点，
所有 Handler 均遵循标准 net/http 接口，路由由 cmd/migrationflow 注册。

# 核心类型

  - PipelineHandler ：流程图编译（可 dry_run）、模板 JSON/YAML 导入与导出
  - ServerHandler   ：服务器复制/实例状态写入，按批次列出服务器
  - HealthHandler   ：存活与就绪检查（/health, /healthz, /ready, /readyz）
  - Response        ：统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo       ：结构化错误信息，含 code、message、details 与 retryable 标记
  - ResponseWriter  ：包装 http.ResponseWriter 以捕获状态码与字节数

# 错误映射

WriteErr 将校验错误映射为 400 并列出明细，types.Error 按错误码映射状态码，
其余错误统一返回 500 且不暴露内部信息。
*/
package handlers
