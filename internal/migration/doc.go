// 版权所有 2024 MigrationFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理条目表（items）的 Schema 迁移，支持 PostgreSQL、
MySQL 与 SQLite，基于 golang-migrate 实现。

# 概述

各方言的 SQL 迁移文件通过 embed.FS 内嵌在 migrations/<方言>/ 下。
SQLite 使用纯 Go 驱动，无需 cgo。

# 核心类型

  - Migrator：Up/Down/DownAll/Steps/Goto/Force/Version/Status/Info/Close。
  - DefaultMigrator：基于 golang-migrate 的默认实现。
  - CLI：面向终端的格式化输出，Run 按子命令名分发。

# 工厂函数

NewMigratorFromConfig / NewMigratorFromDatabaseConfig / NewMigratorFromURL
从不同配置源创建迁移器。
*/
package migration
