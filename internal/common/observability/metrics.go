package observability

import (
	"context"
	"time"

	"catalog-gateway/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability records query and pipeline instruments through OpenTelemetry.
// The Prometheus exporter registers with the default registry, so the values
// are served by the same /metrics handler as the promauto collectors.
type Observability struct {
	meterProvider    *metric.MeterProvider
	queryCounter     otelmetric.Int64Counter
	queryDuration    otelmetric.Float64Histogram
	pipelineDuration otelmetric.Float64Histogram

	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
}

func New(serviceName, version string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("failed to create prometheus exporter, otel metrics disabled", map[string]interface{}{"error": err.Error()})
		return &Observability{}
	}

	res := resource.NewWithAttributes("",
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)
	provider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	queryCounter, _ := meter.Int64Counter(
		"catalog.queries",
		otelmetric.WithDescription("Catalog queries executed"),
	)
	queryDuration, _ := meter.Float64Histogram(
		"catalog.query.duration",
		otelmetric.WithDescription("Catalog query duration"),
		otelmetric.WithUnit("ms"),
	)
	pipelineDuration, _ := meter.Float64Histogram(
		"notification.pipeline.duration",
		otelmetric.WithDescription("Notification pipeline run duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:    provider,
		queryCounter:     queryCounter,
		queryDuration:    queryDuration,
		pipelineDuration: pipelineDuration,
	}
}

// NewNoop returns an Observability that records nothing.
func NewNoop() *Observability {
	return &Observability{}
}

func (o *Observability) RecordQuery(ctx context.Context, endpoint, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	)
	if o.queryCounter != nil {
		o.queryCounter.Add(ctx, 1, attrs)
	}
	if o.queryDuration != nil {
		o.queryDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordPipeline(ctx context.Context, decision string, duration time.Duration) {
	if o == nil || o.pipelineDuration == nil {
		return
	}
	o.pipelineDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("decision", decision),
	))
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
