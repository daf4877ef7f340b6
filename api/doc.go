// Package api groups the HTTP surface of MigrationFlow.
//
// # API Overview
//
// The service exposes a small JSON API:
//   - POST /api/v1/pipelines/diagrams compiles a diagram file into pipeline templates
//     and imports them (add ?dry_run=true to only compile)
//   - POST /api/v1/pipelines/templates/import imports JSON or YAML template documents
//   - GET  /api/v1/pipelines/templates/export returns every template (?format=yaml for a file)
//   - PUT  /api/v1/servers/{id}/status writes replication_status or instance_status
//   - GET  /api/v1/waves/{wave}/servers lists the servers of a wave
//   - GET  /health, /ready and /version for liveness and readiness checks
//
// Prometheus metrics are served on a separate port at /metrics.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api
