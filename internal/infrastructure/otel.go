package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"energypulse/internal/config"
	"energypulse/pkg/contracts/domain"
)

// MeterName is the instrumentation scope for application metrics
const MeterName = "energypulse"

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel sets up tracing and metrics according to cfg. Disabled
// signals fall back to the global no-op providers.
func InitializeOTel(cfg config.TelemetryConfig, logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = GetLogger()
	}
	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.TracingEnabled),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled))

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	providers := &OTelProviders{Logger: logger}

	if cfg.TracingEnabled {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		providers.TracerProvider = tp
		otel.SetTracerProvider(tp)
	}
	providers.Tracer = otel.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))

	if cfg.MetricsEnabled {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.PrometheusHTTP = promhttp.Handler()
		otel.SetMeterProvider(mp)
	}
	providers.Meter = otel.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return providers, nil
}

// Shutdown flushes and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// Metrics holds the application instruments
type Metrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	ImportsTotal        metric.Int64Counter
	ImportDuration      metric.Float64Histogram
	ImportRowsProcessed metric.Int64Counter
	ImportRowsSkipped   metric.Int64Counter
	ImportFallbacks     metric.Int64Counter

	JobsQueued metric.Int64UpDownCounter
}

// NewMetrics creates the application instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.ImportsTotal, err = meter.Int64Counter(
		"imports_total",
		metric.WithDescription("Total number of dataset imports"),
	); err != nil {
		return nil, err
	}
	if m.ImportDuration, err = meter.Float64Histogram(
		"import_duration_seconds",
		metric.WithDescription("Import duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.ImportRowsProcessed, err = meter.Int64Counter(
		"import_rows_processed_total",
		metric.WithDescription("Rows turned into data points"),
	); err != nil {
		return nil, err
	}
	if m.ImportRowsSkipped, err = meter.Int64Counter(
		"import_rows_skipped_total",
		metric.WithDescription("Blank rows skipped during import"),
	); err != nil {
		return nil, err
	}
	if m.ImportFallbacks, err = meter.Int64Counter(
		"import_fallbacks_total",
		metric.WithDescription("Values replaced by a lenient fallback"),
	); err != nil {
		return nil, err
	}
	if m.JobsQueued, err = meter.Int64UpDownCounter(
		"import_jobs_queued",
		metric.WithDescription("Import jobs waiting for a worker"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordImport records one finished import
func (m *Metrics) RecordImport(ctx context.Context, datasetType domain.DatasetType, summary domain.ImportSummary, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	typeAttr := attribute.String("dataset_type", string(datasetType))

	m.ImportsTotal.Add(ctx, 1, metric.WithAttributes(typeAttr, attribute.String("status", status)))
	m.ImportDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(typeAttr))
	if err != nil {
		return
	}

	m.ImportRowsProcessed.Add(ctx, int64(summary.ProcessedRows), metric.WithAttributes(typeAttr))
	m.ImportRowsSkipped.Add(ctx, int64(summary.SkippedRows), metric.WithAttributes(typeAttr))
	if summary.InvalidValues > 0 {
		m.ImportFallbacks.Add(ctx, int64(summary.InvalidValues),
			metric.WithAttributes(typeAttr, attribute.String("kind", "value")))
	}
	if summary.InvalidTimestamps > 0 {
		m.ImportFallbacks.Add(ctx, int64(summary.InvalidTimestamps),
			metric.WithAttributes(typeAttr, attribute.String("kind", "timestamp")))
	}
}

// RecordRequest records one served HTTP request
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// SpanTraceID returns the OpenTelemetry trace ID of the span in ctx
func SpanTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}
