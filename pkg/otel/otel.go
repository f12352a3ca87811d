// Package otel wires OpenTelemetry tracing for the API: provider setup,
// per-request tracer injection, and span helpers for handlers.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds tracing settings.
type Config struct {
	ServiceName string
	Host        string
	Probability float64
}

type ctxKey int

const tracerKey ctxKey = 1

// InitTracing sets up the OTLP gRPC exporter and registers the global tracer
// provider. The returned shutdown func flushes pending spans.
func InitTracing(cfg Config) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(cfg.Host),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.Probability)),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, tp.Shutdown, nil
}

// InjectTracing stores the tracer in the context so handlers can start child
// spans without a package-level tracer.
func InjectTracing(ctx context.Context, tracer trace.Tracer) context.Context {
	return context.WithValue(ctx, tracerKey, tracer)
}

// AddSpan starts a span named after the calling handler. Without an injected
// tracer it is a no-op span.
func AddSpan(ctx context.Context, name string, kv ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer, ok := ctx.Value(tracerKey).(trace.Tracer)
	if !ok || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(kv...)
	return ctx, span
}

// GetTraceID returns the current trace ID, or "" when the context carries no
// recorded span.
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
