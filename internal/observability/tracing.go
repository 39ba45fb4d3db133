package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TraceEnv enables span export to stderr when set to "1".
const TraceEnv = "SATFUSION_TRACE"

const instrumentationName = "satfusion-desktop"

// Tracer returns the tracer used by the core packages. Until InitTracing
// installs a provider it is the global no-op tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// InitTracing installs a tracer provider exporting to w. When w is nil the
// exporter writes to stderr, and only if TraceEnv is set; otherwise the
// global no-op provider stays in place and the returned shutdown does nothing.
func InitTracing(w io.Writer) (func(context.Context) error, error) {
	if w == nil {
		if os.Getenv(TraceEnv) != "1" {
			return func(context.Context) error { return nil }, nil
		}
		w = os.Stderr
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
