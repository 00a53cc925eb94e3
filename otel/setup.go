package otel

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// shutdownTimeout bounds how long a shutdown waits for the exporter to
// flush buffered spans.
const shutdownTimeout = 5 * time.Second

// SetupConfig holds the exporter settings for Setup.
type SetupConfig struct {
	// Endpoint is the OTLP/HTTP collector address as host:port.
	Endpoint string

	// Insecure disables TLS on the exporter connection.
	Insecure bool

	// SampleRatio is the fraction of passes to sample. Values outside
	// (0, 1) select the always-on sampler.
	SampleRatio float64
}

// Setup configures the global OpenTelemetry tracer provider with an
// OTLP/HTTP span exporter. It returns a shutdown function that flushes
// buffered spans; callers must invoke it before exiting.
func Setup(ctx context.Context, cfg SetupConfig) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("otel setup: endpoint is required")
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("toolstats")))
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return provider.Shutdown(ctx)
	}, nil
}
