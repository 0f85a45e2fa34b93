package analysis

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for analysis runs.
var (
	tracer = otel.Tracer("redos.analysis")
	meter  = otel.Meter("redos.analysis")
)

// Metrics for analysis runs.
var (
	runLatency   metric.Float64Histogram
	runTotal     metric.Int64Counter
	productNodes metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"redos_analysis_duration_seconds",
			metric.WithDescription("Duration of ambiguity analyses"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"redos_analysis_total",
			metric.WithDescription("Total number of ambiguity analyses by result"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		productNodes, err = meter.Int64Histogram(
			"redos_analysis_product_nodes",
			metric.WithDescription("Product graph nodes expanded per analysis"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startRunSpan creates a span for one analysis run.
func startRunSpan(ctx context.Context, s Settings, testIDA bool) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Analyser.Run",
		trace.WithAttributes(
			attribute.String("redos.loop_strategy", s.LoopStrategy.String()),
			attribute.String("redos.priority_strategy", s.PriorityStrategy.String()),
			attribute.Bool("redos.test_ida", testIDA),
		),
	)
}

// startPhaseSpan creates a child span for one detector.
func startPhaseSpan(ctx context.Context, phase Phase) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Analyser."+phase.String())
}

// setRunSpanResult sets the result attributes on a run span.
func setRunSpanResult(span trace.Span, out Outcome) {
	span.SetAttributes(
		attribute.String("redos.result", out.Kind.String()),
		attribute.Int("redos.states", out.Stats.States),
		attribute.Int("redos.positions", out.Stats.Positions),
		attribute.Int("redos.product_nodes", out.Stats.ProductNodes),
	)
	if out.Degree > 0 {
		span.SetAttributes(attribute.Int("redos.degree", out.Degree))
	}
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
	}
}

// recordRunMetrics records metrics for one analysis run.
func recordRunMetrics(ctx context.Context, s Settings, out Outcome, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("result", out.Kind.String()),
		attribute.String("loop_strategy", s.LoopStrategy.String()),
		attribute.String("priority_strategy", s.PriorityStrategy.String()),
	)
	runLatency.Record(ctx, duration.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)
	productNodes.Record(ctx, int64(out.Stats.ProductNodes), metric.WithAttributes(
		attribute.String("result", out.Kind.String()),
	))
}
