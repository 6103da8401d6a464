// Package telemetry sets up OpenTelemetry tracing.
//
// Without an endpoint, Setup returns a no-op provider so instrumented code
// never needs to check whether tracing is enabled.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/waftester/greenapi/pkg/defaults"
	"github.com/waftester/greenapi/pkg/duration"
)

// TracerName is the instrumentation scope used by greenapi packages.
const TracerName = "github.com/waftester/greenapi"

// Config configures trace export.
type Config struct {
	// Endpoint is the OTLP/gRPC collector address, e.g. "localhost:4317".
	// Empty disables tracing.
	Endpoint string

	// Insecure disables TLS to the collector.
	Insecure bool

	// Headers are sent with every export request.
	Headers map[string]string

	// ServiceName defaults to the tool name.
	ServiceName string

	// SampleRatio is the fraction of runs traced. Zero traces all.
	SampleRatio float64
}

// Provider owns a tracer provider and its shutdown.
type Provider struct {
	tp       trace.TracerProvider
	shutdown func(context.Context) error
}

// Setup builds a Provider for cfg and installs it as the global provider
// when tracing is enabled.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Endpoint == "" {
		return Noop(), nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaults.ToolName
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "engine"),
	)

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp, shutdown: tp.Shutdown}, nil
}

// Noop returns a provider that records nothing.
func Noop() *Provider {
	return &Provider{
		tp:       noop.NewTracerProvider(),
		shutdown: func(context.Context) error { return nil },
	}
}

// FromTracerProvider wraps an existing provider, e.g. one from tests.
func FromTracerProvider(tp trace.TracerProvider) *Provider {
	return &Provider{tp: tp, shutdown: func(context.Context) error { return nil }}
}

// Tracer returns the greenapi tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	return p.tp.Tracer(TracerName, trace.WithInstrumentationVersion(defaults.Version))
}

// Shutdown flushes pending spans. It waits at most duration.ExportTimeout.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, duration.ExportTimeout)
	defer cancel()
	return p.shutdown(ctx)
}

// Elapsed is a span attribute holding a duration in milliseconds.
func Elapsed(key string, d time.Duration) attribute.KeyValue {
	return attribute.Int64(key, d.Milliseconds())
}
