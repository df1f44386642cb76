// Package telemetry sets up OpenTelemetry tracing of HTTP requests
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Settings says whether (and where) to export traces
type Settings struct {
	Enabled     bool
	Endpoint    string // OTLP/HTTP collector host:port (the exporter default if empty)
	ServiceName string
}

// Tracing holds the tracer provider.  When tracing is disabled it uses a no-op provider.
type Tracing struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
}

// Setup creates the tracer provider and registers it (and the W3C propagators) globally
func Setup(ctx context.Context, s Settings) (*Tracing, error) {
	if !s.Enabled {
		return &Tracing{provider: noop.NewTracerProvider(), shutdown: func(context.Context) error { return nil }}, nil
	}
	var opts []otlptracehttp.Option
	if s.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(s.Endpoint), otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w creating trace exporter", err)
	}
	return newTracing(sdktrace.NewBatchSpanProcessor(exporter), s.ServiceName), nil
}

// newTracing creates an SDK provider that sends spans to the processor
func newTracing(processor sdktrace.SpanProcessor, serviceName string) *Tracing {
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return &Tracing{provider: provider, shutdown: provider.Shutdown}
}

// Wrap returns a handler that records a span for each request
func (t *Tracing) Wrap(h http.Handler, operation string) http.Handler {
	return otelhttp.NewHandler(h, operation, otelhttp.WithTracerProvider(t.provider))
}

// Shutdown flushes any pending spans
func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}
