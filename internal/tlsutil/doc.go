// Package tlsutil 提供集中式 TLS 配置，
// 为网关、凭据代理、库存服务客户端和 Redis 连接提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
