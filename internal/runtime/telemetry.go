package runtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"

	"github.com/mixctl/mixctl-core/internal/config"
)

// setupTelemetry builds the trace and metric providers and returns a combined
// shutdown plus the handler mounted at /metrics. Trace export is picked from
// config: an OTLP endpoint when one is set, pretty stdout spans in
// development, nothing otherwise. Metrics always go through the prometheus
// reader so the scrape endpoint works regardless of trace export.
func setupTelemetry(cfg config.Config, logger *slog.Logger) (func(context.Context) error, http.Handler, error) {
	ctx := context.Background()
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.RuntimeName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	exporter, exporterName, err := traceExporter(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	}
	traces := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(traces)
	logger.Info("telemetry initialized", slog.String("traces", exporterName))

	meters, metricsHandler := meterProvider(res, logger)
	otel.SetMeterProvider(meters)

	shutdown := func(ctx context.Context) error {
		return errors.Join(meters.Shutdown(ctx), traces.Shutdown(ctx))
	}
	return shutdown, metricsHandler, nil
}

func traceExporter(ctx context.Context, cfg config.Config) (sdktrace.SpanExporter, string, error) {
	if endpoint := strings.TrimSpace(cfg.Telemetry.OTLPEndpoint); endpoint != "" {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.Telemetry.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, "", err
		}
		return exp, "otlp:" + endpoint, nil
	}
	if cfg.Environment == "development" {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, "", err
		}
		return exp, "stdout", nil
	}
	return nil, "none", nil
}

func meterProvider(res *resource.Resource, logger *slog.Logger) (*sdkmetric.MeterProvider, http.Handler) {
	exp, err := prometheus.New()
	if err != nil {
		logger.Warn("prometheus exporter unavailable, metrics endpoint disabled",
			slog.String("error", err.Error()))
		return sdkmetric.NewMeterProvider(sdkmetric.WithResource(res)), nil
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exp),
		sdkmetric.WithResource(res),
	)
	return provider, promhttp.Handler()
}
