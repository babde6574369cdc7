// Package observability provides structured logging, Prometheus metrics,
// health probes and OpenTelemetry tracing.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("kind", "Vehicle").Info("record created")
//
// Request-scoped loggers come from the context:
//
//	observability.FromContext(r.Context()).WithError(err).Error("store failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//
// Metrics also receives authorization decisions (rbac.DecisionRecorder)
// and store timings.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(opsMux, checker)
//
// # OpenTelemetry
//
//	tp, err := observability.InitTracing(ctx, cfg, logger)
//	defer observability.ShutdownTracing(ctx, tp, logger)
//
// With OTel enabled, metrics can also be pushed over OTLP:
//
//	mp, err := observability.InitMetrics(ctx, cfg, logger)
//	mirror, err := observability.NewOTelMetrics()
//	metrics.MirrorTo(mirror)
package observability
