package exporters

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

// OTLPConfig describes the collector spans are shipped to.
// Endpoint is host:port, 4317 for gRPC and 4318 for HTTP by convention.
type OTLPConfig struct {
	Endpoint string
	Protocol string
	Insecure bool
	Headers  map[string]string
	Timeout  time.Duration
}

func (c OTLPConfig) normalized() OTLPConfig {
	if c.Protocol == "" {
		c.Protocol = ProtocolGRPC
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
		if c.Protocol == ProtocolHTTP {
			c.Endpoint = "localhost:4318"
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// NewOTLPExporter builds a gRPC or HTTP OTLP exporter from cfg
func NewOTLPExporter(ctx context.Context, cfg OTLPConfig) (*otlptrace.Exporter, error) {
	cfg = cfg.normalized()

	var client otlptrace.Client
	switch cfg.Protocol {
	case ProtocolGRPC:
		client = grpcClient(cfg)
	case ProtocolHTTP:
		client = httpClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", cfg.Protocol)
	}

	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to start OTLP %s exporter for %s: %w", cfg.Protocol, cfg.Endpoint, err)
	}
	return exporter, nil
}

func grpcClient(cfg OTLPConfig) otlptrace.Client {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
		otlptracegrpc.WithHeaders(cfg.Headers),
	}
	if cfg.Insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	return otlptracegrpc.NewClient(opts...)
}

func httpClient(cfg OTLPConfig) otlptrace.Client {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithTimeout(cfg.Timeout),
		otlptracehttp.WithHeaders(cfg.Headers),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.NewClient(opts...)
}
