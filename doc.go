// Package pgstatsexporter is a Prometheus exporter for statistics
// collected by the pg_statsinfo PostgreSQL extension.
//
// The exporter serves a single /metrics endpoint. Each scrape opens a
// short-lived connection to the monitored server, runs the statsinfo
// statistics functions, converts the rows into Prometheus gauges and
// streams the text exposition to the client in fixed-size chunks. The
// exporter's own request and gather metrics ride along in the same
// response.
//
// Layout:
//
//   - cmd/pg-stats-exporter: CLI entry point, flags and logging setup
//   - config: YAML configuration with defaults and validation
//   - server: HTTP server, request span middleware, streaming handler
//   - statsinfo: gathers cpustats and tablespaces into metric families
//   - pgclient: PostgreSQL connection management and startup readiness
//   - metric: exporter self-metrics registry
//   - errors: API error taxonomy mapped to HTTP statuses
//   - pkg/chanwriter: io.Writer producing chunks over a channel
//   - pkg/worker: bounded worker pool for blocking request work
//   - pkg/retry: backoff retry used while waiting for postgres
package pgstatsexporter
