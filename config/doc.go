// Package config 提供 MigrationFlow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序叠加，
// 覆盖 HTTP 服务、数据库、运行锁、日志、遥测、收敛轮询、
// 云厂商网关与库存 API 等各部分。
package config
