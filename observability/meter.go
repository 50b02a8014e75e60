// Package observability provides OpenTelemetry metrics and tracing plus
// health aggregation for the resilience layer.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kyraven-io/marketguard/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (development, staging, production).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g. "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Collector records resilience events on OpenTelemetry instruments and keeps
// local counters so the admin surface can serve a snapshot without a metrics
// backend. It implements guard.MetricsSink.
type Collector struct {
	operationTotal    metric.Int64Counter
	operationDuration metric.Float64Histogram
	rejectionTotal    metric.Int64Counter

	counters *counterSet
}

// NewCollector creates metric instruments on the given meter.
func NewCollector(meter metric.Meter) (*Collector, error) {
	operationTotal, err := meter.Int64Counter("guard.operation.total",
		metric.WithDescription("Total guarded operation invocations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating guard.operation.total counter: %w", err)
	}

	operationDuration, err := meter.Float64Histogram("guard.operation.duration",
		metric.WithDescription("Duration of guarded operation invocations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating guard.operation.duration histogram: %w", err)
	}

	rejectionTotal, err := meter.Int64Counter("guard.rejection.total",
		metric.WithDescription("Fast-fail rejections by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating guard.rejection.total counter: %w", err)
	}

	return &Collector{
		operationTotal:    operationTotal,
		operationDuration: operationDuration,
		rejectionTotal:    rejectionTotal,
		counters:          newCounterSet(),
	}, nil
}

// NewLocalCollector creates a Collector on no-op instruments. Only the local
// counters are populated; used when OTLP export is disabled.
func NewLocalCollector() (*Collector, error) {
	return NewCollector(noop.NewMeterProvider().Meter("marketguard/guard"))
}

// RecordCall reports one underlying invocation of a guarded operation.
func (c *Collector) RecordCall(ctx context.Context, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.operationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
	c.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
	))
	c.counters.recordCall(operation, success, duration)
}

// RecordRejection reports a fast-fail rejection that never reached the
// operation.
func (c *Collector) RecordRejection(ctx context.Context, operation string, kind string) {
	c.rejectionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("kind", kind),
	))
	c.counters.recordRejection(operation, kind)
}

// Snapshot returns the locally aggregated per-operation counters.
func (c *Collector) Snapshot() map[string]OperationStats {
	return c.counters.snapshot()
}

// Reset zeroes the locally aggregated counters. The OpenTelemetry
// instruments are cumulative and unaffected.
func (c *Collector) Reset() {
	c.counters.reset()
}
