// 版权所有 2024 MigrationFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库连接池管理，支持健康检查、
统计信息采集与事务重试。

# 概述

PoolManager 封装 GORM 与 database/sql 的连接池配置，
为条目存储（internal/store）提供事务边界。后台健康检查
定时探活，并可通过 StatsReporter 将连接数上报到 Prometheus。

# 核心类型

  - PoolManager：连接池管理器，提供 DB()、Ping()、Stats()、Close()。
  - PoolConfig：连接池配置，可由 config.DatabaseConfig 经 PoolConfigFrom 构建。
  - PoolStats：友好格式的连接池统计信息。
  - TransactionFunc：事务回调函数类型。

# 主要能力

  - 事务管理：WithTransaction 单次执行，WithTransactionRetry 对死锁、
    序列化失败、sqlite 写锁等错误做指数退避重试。
  - 健康检查：Close 后后台循环随之退出。
*/
package database
