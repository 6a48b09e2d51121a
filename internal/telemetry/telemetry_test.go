package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/s1natex/tasks-file-api/internal/config"
)

func TestSetup_None(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{Exporter: config.ExporterNone}, nil)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetup_Stdout(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{
		Exporter:    config.ExporterStdout,
		ServiceName: "tasks-test",
	}, &buf)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "unit-span")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "unit-span") {
		t.Fatalf("expected exported span in output, got %q", buf.String())
	}
}

func TestSetup_Unknown(t *testing.T) {
	if _, err := Setup(context.Background(), config.TelemetryConfig{Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}
