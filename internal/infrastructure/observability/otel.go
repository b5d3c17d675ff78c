package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/storepulse/analytics-backend"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount     metric.Int64Counter
	RequestDuration  metric.Float64Histogram
	EventsIngested   metric.Int64Counter
	EventsRejected   metric.Int64Counter
	StreamClients    metric.Int64UpDownCounter
	SnapshotDuration metric.Float64Histogram
}

// Setup initializes OpenTelemetry
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tracerProvider.Shutdown, nil
}

// InitMetrics initializes application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(scopeName)

	requestCount, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	eventsIngested, err := meter.Int64Counter(
		"live.events.ingested",
		metric.WithDescription("Number of visitor events accepted"),
	)
	if err != nil {
		return nil, err
	}

	eventsRejected, err := meter.Int64Counter(
		"live.events.rejected",
		metric.WithDescription("Number of visitor events rejected as malformed"),
	)
	if err != nil {
		return nil, err
	}

	streamClients, err := meter.Int64UpDownCounter(
		"live.stream.clients",
		metric.WithDescription("Number of connected dashboard stream clients"),
	)
	if err != nil {
		return nil, err
	}

	snapshotDuration, err := meter.Float64Histogram(
		"live.snapshot.duration",
		metric.WithDescription("Snapshot aggregation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCount:     requestCount,
		RequestDuration:  requestDuration,
		EventsIngested:   eventsIngested,
		EventsRejected:   eventsRejected,
		StreamClients:    streamClients,
		SnapshotDuration: snapshotDuration,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(scopeName)
	return tracer.Start(ctx, spanName)
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordRequestMetric records a metric for one HTTP request
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	metrics.RequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordIngestMetric counts one ingested or rejected visitor event
func RecordIngestMetric(ctx context.Context, metrics *Metrics, eventType string, accepted bool) {
	attrs := metric.WithAttributes(attribute.String("event.type", eventType))
	if accepted {
		metrics.EventsIngested.Add(ctx, 1, attrs)
	} else {
		metrics.EventsRejected.Add(ctx, 1, attrs)
	}
}

// RecordSnapshotMetric records one snapshot aggregation pass
func RecordSnapshotMetric(ctx context.Context, metrics *Metrics, duration time.Duration) {
	metrics.SnapshotDuration.Record(ctx, float64(duration.Milliseconds()))
}
