// Copyright (c) MigrationFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 MigrationFlow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 pipeline、convergence、
api 与 internal 各模块提供统一的错误契约，避免循环依赖。

# 核心类型

  - Error / ErrorCode：结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记

# 主要能力

  - 错误工具链：WrapError / AsError / IsErrorCode / IsRetryable / GetErrorCode
  - 常用错误构造：NewAccessDeniedError / NewTimeoutError
*/
package types
