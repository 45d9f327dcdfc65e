// Package observability provides structured logging, Prometheus metrics,
// health checks and OpenTelemetry tracing for softwarehub.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("actor_id", id).Info("user created")
//
// Request-scoped loggers carry the request and user IDs:
//
//	observability.FromContext(r.Context(), logger).Warn("lookup failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	observability.RegisterMetricsEndpoint(router, registry)
//
// The audit writer reports through AuditWritesTotal and AuditWriteFailures,
// and a cron job refreshes AuditEventsTotal and AuditEventsToday.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(router, checker)
//
// A database failure makes the service unhealthy (503). Redis failures only
// degrade it.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "softwarehub",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
