// Package observability provides structured logging, Prometheus metrics, and
// health checks.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("port", 8080).Info("Server started")
//
// Context-aware logging:
//
//	logger.WithError(err).Error("Request failed")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordCheck(true, "cache", elapsed)
//
// All Record* helpers are safe to call on a nil *Metrics, so components can
// run without metrics wired.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, cacheStore)
//	status := checker.Check(ctx)
package observability
