// Package telemetry configures OpenTelemetry tracing for the process.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

// Exporter names accepted by Options.Exporter.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Options selects the trace exporter.
type Options struct {
	// Exporter is none (default), stdout or otlp.
	Exporter    string
	Endpoint    string
	Insecure    bool
	ServiceName string
	Version     string
	// Writer receives stdout exporter output (default os.Stderr).
	Writer io.Writer
}

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

// Setup installs a global tracer provider. With the none exporter the global
// no-op provider is left in place.
func Setup(ctx context.Context, opts Options, log zerolog.Logger) (*sdktrace.TracerProvider, Shutdown, error) {
	kind := strings.ToLower(strings.TrimSpace(opts.Exporter))
	if kind == "" || kind == ExporterNone {
		return nil, func(context.Context) error { return nil }, nil
	}
	name := opts.ServiceName
	if name == "" {
		name = "poemd"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(name),
		attribute.String("service.version", opts.Version),
	))
	if err != nil {
		return nil, nil, err
	}

	var exp sdktrace.SpanExporter
	switch kind {
	case ExporterOTLP:
		endpoint := strings.TrimSpace(opts.Endpoint)
		if endpoint == "" {
			return nil, nil, fmt.Errorf("telemetry: otlp exporter requires an endpoint")
		}
		gopts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if opts.Insecure {
			gopts = append(gopts, otlptracegrpc.WithInsecure())
		}
		exp, err = otlptracegrpc.New(ctx, gopts...)
	case ExporterStdout:
		w := opts.Writer
		if w == nil {
			w = os.Stderr
		}
		exp, err = stdouttrace.New(stdouttrace.WithWriter(w))
	default:
		return nil, nil, fmt.Errorf("telemetry: unknown exporter %q", opts.Exporter)
	}
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	log.Info().Str("exporter", kind).Str("endpoint", opts.Endpoint).Msg("telemetry initialized")
	return tp, tp.Shutdown, nil
}
