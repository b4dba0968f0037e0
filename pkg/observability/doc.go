// Package observability provides the operational surface of the
// authorization service: structured JSON logging over slog, Prometheus
// metrics for HTTP traffic and permission checks, health probes, panic
// recovery, and graceful shutdown coordination.
//
// The pieces are independent; a host embedding only pkg/authz can wire
// just the Logger, while the standalone server uses all of them:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	checker := observability.NewHealthChecker(db)
//
// Permission check outcomes are recorded through Metrics.ObserveCheck so
// that allow/deny ratios and check latency are visible per scrape without
// the resolver depending on Prometheus.
package observability
