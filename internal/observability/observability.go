// Package observability configures tracing and metrics for ranking runs.
// Traces export over OTLP; metrics accumulate in a Prometheus registry that
// is pushed to a Pushgateway when the run shuts down, since a short-lived
// batch process has nothing for a scraper to reach.
package observability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls observability initialisation.
type Config struct {
	Enabled        bool
	ServiceName    string
	Environment    string
	OTLPEndpoint   string
	OTLPHeaders    map[string]string
	OTLPInsecure   bool
	PushgatewayURL string
}

// Providers exposes configured telemetry providers.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Propagator     propagation.TextMapPropagator
	Shutdown       func(ctx context.Context) error
	Config         Config
}

var (
	initOnce sync.Once

	pipelineTracer trace.Tracer

	runDuration   metric.Float64Histogram
	runTotal      metric.Int64Counter
	listRowsTotal metric.Int64Counter
	listTotal     metric.Int64Counter
)

// Init configures tracing and metrics exporters. When cfg.Enabled is false
// the function is a no-op.
func Init(ctx context.Context, cfg Config) (*Providers, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "apptrack"
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	var spanExporter sdktrace.SpanExporter
	if cfg.OTLPEndpoint != "" {
		clientOpts := []otlptracehttp.Option{
			getOTLPEndpointOption(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}
		if len(cfg.OTLPHeaders) > 0 {
			clientOpts = append(clientOpts, otlptracehttp.WithHeaders(cfg.OTLPHeaders))
		}

		exp, err := otlptracehttp.New(ctx, clientOpts...)
		if err != nil {
			// Observability is optional: run without traces rather than fail.
			log.Warn().
				Err(err).
				Str("endpoint", cfg.OTLPEndpoint).
				Msg("Failed to create OTLP trace exporter, traces disabled")
		} else {
			spanExporter = exp
			log.Info().
				Str("endpoint", cfg.OTLPEndpoint).
				Msg("OTLP trace exporter initialised")
		}
	}

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}
	if spanExporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spanExporter))
	}

	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tracerProvider)

	prop := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(prop)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	promExporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx) // best-effort cleanup
		return nil, fmt.Errorf("create Prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	otel.SetMeterProvider(meterProvider)

	initOnce.Do(func() {
		pipelineTracer = tracerProvider.Tracer("apptrack/pipeline")
		_ = initRunInstruments(meterProvider)
	})

	var pusher *push.Pusher
	if cfg.PushgatewayURL != "" {
		pusher = push.New(cfg.PushgatewayURL, cfg.ServiceName).Gatherer(registry)
	}

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		var allErr error
		// Push before the meter provider shuts down, while the exporter can
		// still gather.
		if pusher != nil {
			if err := pusher.PushContext(ctx); err != nil {
				allErr = errors.Join(allErr, fmt.Errorf("metrics push: %w", err))
			}
		}
		if err := meterProvider.Shutdown(ctx); err != nil {
			allErr = errors.Join(allErr, fmt.Errorf("metric provider shutdown: %w", err))
		}
		if err := tracerProvider.Shutdown(ctx); err != nil {
			allErr = errors.Join(allErr, fmt.Errorf("trace provider shutdown: %w", err))
		}
		return allErr
	}

	return &Providers{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Propagator:     prop,
		Shutdown:       shutdown,
		Config:         cfg,
	}, nil
}

func getOTLPEndpointOption(endpoint string) otlptracehttp.Option {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return otlptracehttp.WithEndpointURL(endpoint)
	}
	return otlptracehttp.WithEndpoint(endpoint)
}

func initRunInstruments(meterProvider *sdkmetric.MeterProvider) error {
	if meterProvider == nil {
		return nil
	}

	meter := meterProvider.Meter("apptrack/pipeline")

	var err error
	runDuration, err = meter.Float64Histogram(
		"apptrack.run.duration_ms",
		metric.WithUnit("ms"),
		metric.WithDescription("Time taken to complete one ranking run"),
	)
	if err != nil {
		return err
	}

	runTotal, err = meter.Int64Counter(
		"apptrack.run.total",
		metric.WithDescription("Counts ranking run outcomes"),
	)
	if err != nil {
		return err
	}

	listRowsTotal, err = meter.Int64Counter(
		"apptrack.list.rows.total",
		metric.WithDescription("Rows persisted per ranking list"),
	)
	if err != nil {
		return err
	}

	listTotal, err = meter.Int64Counter(
		"apptrack.list.total",
		metric.WithDescription("Counts per-list outcomes"),
	)
	return err
}

// PhaseSpanInfo describes the attributes used when starting a pipeline
// phase span.
type PhaseSpanInfo struct {
	RunID string
	Phase string // run, fetch, resolve, summarize, persist
	List  string // list name when the phase is per-list, else empty
}

// ListMetrics describes one list outcome for metric recording.
type ListMetrics struct {
	List   string
	Status string // ok, skipped, failed
	Rows   int
}

// RunMetrics describes one completed run for metric recording.
type RunMetrics struct {
	Status   string // ok, partial, failed
	Duration time.Duration
}

// StartPhaseSpan starts a span for one pipeline phase.
func StartPhaseSpan(ctx context.Context, info PhaseSpanInfo) (context.Context, trace.Span) {
	t := pipelineTracer
	if t == nil {
		t = otel.Tracer("apptrack/pipeline")
	}

	attrs := []attribute.KeyValue{
		attribute.String("run.phase", info.Phase),
	}
	if info.RunID != "" {
		attrs = append(attrs, attribute.String("run.id", info.RunID))
	}
	if info.List != "" {
		attrs = append(attrs, attribute.String("run.list", info.List))
	}

	return t.Start(ctx, "pipeline."+info.Phase, trace.WithAttributes(attrs...))
}

// RecordList emits per-list metrics when instrumentation is initialised.
func RecordList(ctx context.Context, metrics ListMetrics) {
	attrs := metric.WithAttributes(
		attribute.String("list", metrics.List),
		attribute.String("status", metrics.Status),
	)

	if listTotal != nil {
		listTotal.Add(ctx, 1, attrs)
	}
	if listRowsTotal != nil && metrics.Rows > 0 {
		listRowsTotal.Add(ctx, int64(metrics.Rows), attrs)
	}
}

// RecordRun emits run-level metrics when instrumentation is initialised.
func RecordRun(ctx context.Context, metrics RunMetrics) {
	attrs := metric.WithAttributes(attribute.String("status", metrics.Status))

	if runDuration != nil {
		runDuration.Record(ctx, float64(metrics.Duration.Milliseconds()), attrs)
	}
	if runTotal != nil {
		runTotal.Add(ctx, 1, attrs)
	}
}
