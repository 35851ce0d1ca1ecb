// Package tracing wires the OpenTelemetry tracer provider used around
// the scan orchestrator (C6), the embeddings client (C1), and the
// hybrid search service (C8). It writes spans to stdout rather than a
// collector endpoint, matching a local-first deployment with no
// external tracing backend assumed.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/gatereg/registry/internal/config"
)

// Tracer is the package-level tracer used by instrumented components.
// It is a no-op until Init runs, so packages may call Tracer() at
// construction time before tracing is configured.
var tracer trace.Tracer = otel.Tracer("gatereg")

// Tracer returns the tracer instrumented components should use.
func Tracer() trace.Tracer { return tracer }

// Init configures the global tracer provider per cfg. When cfg.Enabled
// is false, the global no-op provider is left in place and the
// returned shutdown function does nothing.
func Init(ctx context.Context, cfg config.TracingConfig) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("build stdout trace exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "gatereg"
	}
	resource := sdkresource.NewWithAttributes(
		"",
		attribute.String("service.name", serviceName),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
	)
	otel.SetTracerProvider(provider)
	tracer = provider.Tracer(serviceName)

	return func() {
		shutdownCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}, nil
}
