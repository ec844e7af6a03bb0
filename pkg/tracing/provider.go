package tracing

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

const (
	ExporterNone    = "none"
	ExporterConsole = "console"
	ExporterOTLP    = "otlp"
)

// ProviderConfig selects and configures the span exporter
type ProviderConfig struct {
	ServiceName string
	Version     string
	Exporter    string
	OTLP        exporters.OTLPConfig
}

// ShutdownFunc flushes and stops the tracer provider
type ShutdownFunc func(ctx context.Context) error

// Setup installs a global tracer provider and the package tracer.
// With the "none" exporter tracing stays disabled and StartSpan returns no-op spans.
func Setup(ctx context.Context, cfg ProviderConfig, logger ectologger.Logger) (ShutdownFunc, error) {
	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "", ExporterNone:
		return func(context.Context) error { return nil }, nil
	case ExporterConsole:
		exporter = exporters.NewConsoleExporter(logger)
	case ExporterOTLP:
		otlpExporter, err := exporters.NewOTLPExporter(ctx, cfg.OTLP)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporter = otlpExporter
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.Version),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	SetTracer(provider.Tracer(cfg.ServiceName))

	logger.WithFields(map[string]any{
		"exporter": cfg.Exporter,
		"service":  cfg.ServiceName,
	}).Info("Tracing enabled")

	return provider.Shutdown, nil
}
