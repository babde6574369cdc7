package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/miamirp/cityrecords"

// OTelMetrics mirrors the Prometheus instruments onto an OpenTelemetry
// meter so they can be pushed to an OTLP collector.
type OTelMetrics struct {
	httpRequests   metric.Int64Counter
	httpDuration   metric.Float64Histogram
	authzDecisions metric.Int64Counter
	loginAttempts  metric.Int64Counter
	storeOps       metric.Int64Counter
	storeDuration  metric.Float64Histogram
}

// NewOTelMetrics creates the instruments on the global meter provider.
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter(meterName)
	m := &OTelMetrics{}
	var err error

	if m.httpRequests, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http.server.requests counter: %w", err)
	}
	if m.httpDuration, err = meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http.server.duration histogram: %w", err)
	}
	if m.authzDecisions, err = meter.Int64Counter("authz.decisions",
		metric.WithDescription("Authorization decisions by kind, operation and outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create authz.decisions counter: %w", err)
	}
	if m.loginAttempts, err = meter.Int64Counter("auth.login.attempts",
		metric.WithDescription("Login attempts by result"),
	); err != nil {
		return nil, fmt.Errorf("failed to create auth.login.attempts counter: %w", err)
	}
	if m.storeOps, err = meter.Int64Counter("store.operations",
		metric.WithDescription("Total number of store operations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create store.operations counter: %w", err)
	}
	if m.storeDuration, err = meter.Float64Histogram("store.operation.duration",
		metric.WithDescription("Store operation duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create store.operation.duration histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records one served request
func (m *OTelMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *OTelMetrics) recordAuthzDecision(kind, operation, outcome string) {
	m.authzDecisions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("record.kind", kind),
		attribute.String("rbac.operation", operation),
		attribute.String("rbac.outcome", outcome),
	))
}

func (m *OTelMetrics) recordLogin(result string) {
	m.loginAttempts.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("auth.result", result),
	))
}

func (m *OTelMetrics) recordStoreOperation(kind, operation, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("record.kind", kind),
		attribute.String("store.operation", operation),
		attribute.String("store.status", status),
	)
	m.storeOps.Add(context.Background(), 1, attrs)
	m.storeDuration.Record(context.Background(), duration.Seconds(), attrs)
}

// InitMetrics installs a global meter provider that pushes to the OTLP
// endpoint every ten seconds. It returns nil when OTel is disabled.
func InitMetrics(ctx context.Context, cfg OTelConfig, logger *Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exportCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exporter, err := otlpmetricgrpc.New(exportCtx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithDialOption(dialOptions(cfg)...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(10*time.Second),
		)),
	)
	otel.SetMeterProvider(mp)

	logger.Info("OpenTelemetry meter provider initialized")
	return mp, nil
}

// ShutdownMetrics flushes pending measurements and stops the meter provider
func ShutdownMetrics(ctx context.Context, mp *sdkmetric.MeterProvider, logger *Logger) error {
	if mp == nil {
		return nil
	}
	if err := mp.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Failed to shutdown meter provider")
		return fmt.Errorf("meter provider shutdown: %w", err)
	}
	return nil
}
