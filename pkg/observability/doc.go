// Package observability provides the logrus logger, Prometheus metrics,
// OpenTelemetry setup, health checks and graceful shutdown for warden.
//
// # Logging
//
//	logger := observability.NewLogger("info", observability.FormatJSON, os.Stdout)
//	logger.WithField("organization_id", orgID).Info("Organization deleted")
//
// # Metrics
//
// Services accept a *Metrics and tolerate nil:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordDecision("organization_user", "delete", false)
//	metrics.RecordBulkResults("confirm", 3, 1)
//
// HTTPMetricsMiddleware labels requests by mux route template.
//
// # Tracing
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "warden",
//		Insecure:    true,
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Health
//
//	observability.RegisterHealthRoutes(router, observability.NewHealthChecker(db, rdb, version))
package observability
