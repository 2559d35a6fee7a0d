package observability

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Recorder receives one observation per store operation.
type Recorder interface {
	RecordOperation(ctx context.Context, resource, operation, status string, duration time.Duration)
}

type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	opCounter     otelmetric.Int64Counter
	opDuration    otelmetric.Float64Histogram
}

// New wires an OpenTelemetry meter provider to a Prometheus exporter.
// reg may be nil to use the default registerer. On exporter failure the
// returned value records nothing.
func New(serviceName string, reg promclient.Registerer) *Observability {
	opts := []prometheus.Option{}
	if reg != nil {
		opts = append(opts, prometheus.WithRegisterer(reg))
	}

	exporter, err := prometheus.New(opts...)
	if err != nil {
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	opCounter, _ := meter.Int64Counter(
		"store.operations",
		otelmetric.WithDescription("Number of store operations"),
	)

	opDuration, _ := meter.Float64Histogram(
		"store.operation.duration",
		otelmetric.WithDescription("Store operation duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		opCounter:     opCounter,
		opDuration:    opDuration,
	}
}

func (o *Observability) RecordOperation(ctx context.Context, resource, operation, status string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("resource", resource),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	if o.opCounter != nil {
		o.opCounter.Add(ctx, 1, attrs)
	}
	if o.opDuration != nil {
		o.opDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}

// Nop discards observations.
type Nop struct{}

func (Nop) RecordOperation(context.Context, string, string, string, time.Duration) {}
