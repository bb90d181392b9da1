package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"

	"github.com/medeiros-dev/reservation-notifier/configs"
	"github.com/medeiros-dev/reservation-notifier/pkg/logger"
	"go.uber.org/zap"
)

const defaultTracerName = "reservation-notifier"

var (
	shutdownFunc func(context.Context) error = func(ctx context.Context) error { return nil }

	// Tracer delegates to the global provider, which is a no-op until InitTracer
	// installs an exporting one.
	Tracer trace.Tracer = otel.Tracer(defaultTracerName)

	// newExporterFunc allows overriding the exporter creation for testing
	newExporterFunc = func(ctx context.Context, cfg *configs.Config) (tracesdk.SpanExporter, error) {
		if cfg.OtelInsecure {
			return otlptracegrpc.New(ctx,
				otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
				otlptracegrpc.WithInsecure(),
			)
		}
		creds := credentials.NewClientTLSFromCert(nil, "")
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
			otlptracegrpc.WithTLSCredentials(creds),
		)
	}
)

// InitTracer installs the global tracer provider and W3C propagator. With no
// OTLP endpoint configured spans are not exported.
func InitTracer(cfg *configs.Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	if cfg.OtelEndpoint == "" {
		logger.L().Info("OTLP endpoint not set, tracing spans will not be exported")
		Tracer = otel.Tracer(serviceName(cfg))
		shutdownFunc = func(ctx context.Context) error { return nil }
		return shutdownFunc, nil
	}

	ctx := context.Background()
	exporter, err := newExporterFunc(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName(cfg)),
		),
	)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	Tracer = otel.Tracer(serviceName(cfg))

	shutdownFunc = tp.Shutdown
	return shutdownFunc, nil
}

func GetTracer() trace.Tracer {
	return Tracer
}

func ShutdownTracer(ctx context.Context) {
	if err := shutdownFunc(ctx); err != nil {
		logger.L().Error("Error shutting down tracer provider", zap.Error(err))
	}
}

func serviceName(cfg *configs.Config) string {
	if cfg.OtelServiceName == "" {
		return defaultTracerName
	}
	return cfg.OtelServiceName
}
