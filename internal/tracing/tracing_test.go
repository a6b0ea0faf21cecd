package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nextlevelbuilder/unlost/internal/config"
)

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{}, "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown: %v", err)
	}
}

func TestSetupRejectsUnknownProtocol(t *testing.T) {
	_, err := Setup(context.Background(), config.TelemetryConfig{Endpoint: "localhost:4317", Protocol: "udp"}, "test")
	if err == nil {
		t.Fatal("expected error for unknown protocol")
	}
}

func TestProviderExportsOnFlush(t *testing.T) {
	ctx := context.Background()
	exp := tracetest.NewInMemoryExporter()
	tp := newProvider(exp, resource.Empty())
	defer tp.Shutdown(ctx)

	_, span := tp.Tracer("test").Start(ctx, "ingest.pass")
	span.End()

	if err := tp.ForceFlush(ctx); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "ingest.pass" {
		t.Errorf("exported spans = %v", spans)
	}
}
