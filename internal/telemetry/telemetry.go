// Package telemetry wires the OpenTelemetry SDK used by the CLI and the HTTP
// service: spans go to a stdout exporter, metrics to a Prometheus registry.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names accepted in Config.
const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"
)

var (
	// ErrNilContext is returned when Init is called without a context.
	ErrNilContext = errors.New("telemetry: nil context")
	// ErrUnknownExporter is returned for an unsupported exporter name.
	ErrUnknownExporter = errors.New("telemetry: unknown exporter")
)

// Config selects exporters.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// TraceExporter is "stdout" or "none"
	TraceExporter string
	// MetricExporter is "prometheus" or "none"
	MetricExporter string
	// TraceOutput receives stdout spans; nil means os.Stderr
	TraceOutput io.Writer
}

// DefaultConfig keeps metrics and disables tracing.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "redos",
		ServiceVersion: "dev",
		TraceExporter:  ExporterNone,
		MetricExporter: ExporterPrometheus,
	}
}

// Provider owns the installed SDK providers.
type Provider struct {
	registry *prometheus.Registry
	shutdown []func(context.Context) error
}

// Init installs global tracer and meter providers. Each call gets its own
// Prometheus registry, so Init can run more than once in a process.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	p := &Provider{registry: prometheus.NewRegistry()}
	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	switch cfg.TraceExporter {
	case "", ExporterNone:
	case ExporterStdout:
		out := cfg.TraceOutput
		if out == nil {
			out = os.Stderr
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		otel.SetTracerProvider(tp)
		p.shutdown = append(p.shutdown, tp.Shutdown)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}

	switch cfg.MetricExporter {
	case "", ExporterNone:
	case ExporterPrometheus:
		exporter, err := promexporter.New(promexporter.WithRegisterer(p.registry))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		otel.SetMeterProvider(mp)
		p.shutdown = append(p.shutdown, mp.Shutdown)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}

	return p, nil
}

// Registerer is where service-level collectors belong.
func (p *Provider) Registerer() prometheus.Registerer {
	return p.registry
}

// MetricsHandler serves the registry in the Prometheus text format.
func (p *Provider) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Shutdown flushes and stops every provider Init installed.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.shutdown = nil
	return errors.Join(errs...)
}
