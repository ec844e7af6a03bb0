package exporters

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOTLPConfig_Normalized(t *testing.T) {
	tests := []struct {
		name string
		in   OTLPConfig
		want OTLPConfig
	}{
		{
			name: "empty uses grpc",
			in:   OTLPConfig{},
			want: OTLPConfig{Endpoint: "localhost:4317", Protocol: ProtocolGRPC, Timeout: 10 * time.Second},
		},
		{
			name: "http picks http port",
			in:   OTLPConfig{Protocol: ProtocolHTTP},
			want: OTLPConfig{Endpoint: "localhost:4318", Protocol: ProtocolHTTP, Timeout: 10 * time.Second},
		},
		{
			name: "explicit values kept",
			in:   OTLPConfig{Endpoint: "collector:4317", Protocol: ProtocolGRPC, Timeout: time.Second, Insecure: true},
			want: OTLPConfig{Endpoint: "collector:4317", Protocol: ProtocolGRPC, Timeout: time.Second, Insecure: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.normalized())
		})
	}
}

func TestNewOTLPExporter_UnknownProtocol(t *testing.T) {
	_, err := NewOTLPExporter(context.Background(), OTLPConfig{Protocol: "udp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "udp")
}

func TestConsoleExporter_LogsSpans(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	stub := tracetest.SpanStub{Name: "identify"}
	exporter := NewConsoleExporter(logger)
	require.NoError(t, exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()}))
	require.NoError(t, exporter.Shutdown(context.Background()))
}
