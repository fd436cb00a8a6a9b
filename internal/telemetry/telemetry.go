// Package telemetry configures the OpenTelemetry tracer provider and offers
// StartStage for opening one span per pipeline stage. No pipeline stage
// calls StartStage, so stage timings are recorded only in HRAP's internal
// Trace (internal/types).
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "hrap/pipeline"

// Init configures the global tracer provider. When otlpEndpoint is empty it
// falls back to a stdout exporter, useful for local development without a
// collector running.
func Init(ctx context.Context, serviceName, otlpEndpoint string) (func(context.Context) error, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, err
	}

	var exporter sdktrace.SpanExporter
	if otlpEndpoint != "" {
		client := otlptracegrpc.NewClient(otlptracegrpc.WithEndpoint(otlpEndpoint), otlptracegrpc.WithInsecure())
		exporter, err = otlptrace.New(ctx, client)
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// StartStage opens a span for one pipeline stage, named consistently with
// the internal Trace's stage names so the two can be correlated by name.
func StartStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, stage)
}
