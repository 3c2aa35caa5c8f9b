// Package tracing installs the OpenTelemetry tracer provider used around allocation runs.
package tracing

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"markalloc/internal/bootstrap/config"
	"markalloc/internal/errs"
)

// Provider owns the exporter resources. Shutdown flushes pending spans.
type Provider struct {
	tracerProvider trace.TracerProvider
	shutdown       func(context.Context) error
}

func (p *Provider) TracerProvider() trace.TracerProvider { return p.tracerProvider }

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// New returns a no-op provider when tracing is disabled. When enabled, spans are
// written as JSON to cfg.Output (stdout when empty) and the provider is installed globally.
func New(appName string, cfg config.TracingConfig) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracerProvider: noop.NewTracerProvider()}, nil
	}

	var w io.Writer = os.Stdout
	var closeOutput func() error
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return nil, errs.Wrapf(err, "create trace output %q", cfg.Output)
		}
		w = f
		closeOutput = f.Close
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, errs.Wrap(err, "create stdout trace exporter")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", appName))),
	)
	otel.SetTracerProvider(tp)

	return &Provider{
		tracerProvider: tp,
		shutdown: func(ctx context.Context) error {
			err := tp.Shutdown(ctx)
			if closeOutput != nil {
				if cerr := closeOutput(); err == nil {
					err = cerr
				}
			}
			return err
		},
	}, nil
}
