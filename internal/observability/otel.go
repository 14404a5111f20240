// Package observability wires OpenTelemetry tracing for inbound dashboard
// requests and outbound statistics fetches.
package observability

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"google.golang.org/grpc/credentials"

	"github.com/tbourn/go-bot-dashboard/internal/config"
)

// newExporter builds the span exporter. Tests replace it with an in-memory
// exporter.
var newExporter = func(ctx context.Context, cfg config.OTELConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	// The gRPC connection is established lazily; a dead collector does not
	// fail startup.
	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}

// newResource describes this process. Tests replace it to force failures.
var newResource = func(ctx context.Context, cfg config.OTELConfig, version string) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
		),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironment(cfg.Environment)))
	}
	return resource.New(ctx, attrs...)
}

// otelErrorHandler routes exporter failures into the application log instead
// of the OTel default stderr logger.
type otelErrorHandler struct{}

func (otelErrorHandler) Handle(err error) {
	log.Warn().Err(err).Str("component", "otel").Msg("telemetry export error")
}

// sampler honours the caller's sampling decision and otherwise samples
// ratio of new traces.
func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// SetupOTel configures OpenTelemetry tracing and returns a shutdown function
// that flushes pending spans.
//
// With tracing disabled the global no-op provider is left in place, so the
// spans opened by otelgin and the statistics client cost nothing. On error
// the globals are not touched.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, version string) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("otel exporter: %w", err)
	}
	res, err := newResource(ctx, cfg, version)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
		sdktrace.WithResource(res),
	)

	otel.SetErrorHandler(otelErrorHandler{})
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Bool("insecure", cfg.Insecure).
		Float64("sample_ratio", cfg.SampleRatio).
		Str("service", cfg.ServiceName).
		Msg("tracing enabled")

	return tp.Shutdown, nil
}
