// Package provider 提供云提供商侧协作者的 HTTP 客户端：
// Gateway 查询复制与实例状态，Broker 按账号与区域换取短期凭据。
//
// 两者共享限速（golang.org/x/time/rate）、TLS 加固传输与状态码到
// types.Error 的映射：401/403 为 ACCESS_DENIED，429 为 RATE_LIMITED，
// 5xx 为可重试的 UPSTREAM_ERROR。
package provider
