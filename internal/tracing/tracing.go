// Package tracing configures the OpenTelemetry tracer provider used to span
// batch runs and estimation.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/stwalsh4118/atlas/reconciler/internal/logger"
)

// ServiceName identifies this process in exported spans.
const ServiceName = "atlas-reconciler"

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Options configures Init.
type Options struct {
	Enabled     bool
	Environment string
	// Writer receives exported spans; defaults to stdout.
	Writer io.Writer
}

// Init installs a global tracer provider that exports spans through the
// stdout exporter. When tracing is disabled the global no-op provider is left
// in place and the returned shutdown does nothing.
func Init(ctx context.Context, log *logger.Logger, opts Options) (ShutdownFunc, error) {
	if !opts.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", ServiceName),
			attribute.String("deployment.environment", opts.Environment),
		),
	)
	if err != nil {
		log.Warn("Trace resource init failed (continuing)", map[string]interface{}{
			"error": err.Error(),
		})
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("Tracing initialized", map[string]interface{}{
		"service": ServiceName,
	})

	return tp.Shutdown, nil
}
