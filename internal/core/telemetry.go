package core

import (
	"context"

	"helpdesk/internal/configuration"
	"helpdesk/internal/models"

	"github.com/grafana/pyroscope-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// StartTelemetry wires the OTLP trace exporter and, when configured, the
// pyroscope continuous profiler. The returned function flushes pending spans
// on shutdown.
func StartTelemetry(config models.TelemetryConfiguration) func(context.Context) error {
	if !config.Enabled {
		return func(context.Context) error { return nil }
	}

	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpointURL(config.OTLPEndpoint),
	)
	if err != nil {
		zap.L().Fatal("Failed to initialize trace exporter", zap.Error(err))
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(configuration.AppName),
		)),
	)
	otel.SetTracerProvider(provider)
	zap.L().Info("Telemetry enabled", zap.String("endpoint", config.OTLPEndpoint))

	if config.PyroscopeEndpoint != "" {
		_, err = pyroscope.Start(pyroscope.Config{
			ApplicationName: configuration.AppName,
			ServerAddress:   config.PyroscopeEndpoint,
			Logger:          nil,
		})
		if err != nil {
			zap.L().Error("Failed to start profiler", zap.Error(err))
		}
	}

	return provider.Shutdown
}
