package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
)

// InitTracing sets up the OpenTelemetry tracer provider. With an OTLP
// endpoint configured spans are exported over gRPC; without one the provider
// is local-only. Returns a shutdown func to flush spans.
func InitTracing(service, endpoint string, logger *zap.Logger) func(context.Context) error {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
	)
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if endpoint != "" {
		exporter, err := otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			if logger != nil {
				logger.Warn("otlp exporter init failed, tracing stays local", zap.Error(err))
			}
		} else {
			opts = append(opts, sdktrace.WithBatcher(exporter))
		}
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	if logger != nil {
		logger.Info("tracing initialized", zap.String("service", service), zap.Bool("otlp", endpoint != ""))
	}
	return tp.Shutdown
}
