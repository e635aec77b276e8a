// Package telemetry настраивает OpenTelemetry-трассировку сервиса.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const exportTimeout = 5 * time.Second

// Config описывает параметры экспорта трасс.
type Config struct {
	ServiceName string
	Version     string
	// Endpoint — адрес OTLP gRPC коллектора. Пустой адрес отключает экспорт.
	Endpoint string
	Insecure bool
	// SampleRatio — доля сэмплируемых корневых трасс (0..1).
	SampleRatio float64
}

// ShutdownFunc сбрасывает буферы и останавливает экспорт.
type ShutdownFunc func(ctx context.Context) error

// ErrServiceNameRequired — не задано имя сервиса.
var ErrServiceNameRequired = errors.New("telemetry: service name is required")

// InitTracing устанавливает глобальный TracerProvider.
// Без Endpoint ставится noop-провайдер: спаны создаются, но никуда не уходят.
func InitTracing(ctx context.Context, cfg Config, logger *log.Entry) (trace.TracerProvider, ShutdownFunc, error) {
	if logger == nil {
		logger = log.WithField("component", "telemetry")
	}
	if cfg.ServiceName == "" {
		return nil, nil, ErrServiceNameRequired
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Endpoint == "" {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		logger.Info("tracing disabled: otlp endpoint is not set")
		return tp, func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRatio)))),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.Version),
		)),
	)
	otel.SetTracerProvider(tp)

	logger.WithFields(log.Fields{
		"endpoint":     cfg.Endpoint,
		"sample_ratio": clampRatio(cfg.SampleRatio),
	}).Info("tracing enabled")

	return tp, tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg Config) (*otlptrace.Exporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(exportTimeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func clampRatio(r float64) float64 {
	switch {
	case r <= 0:
		return 1
	case r > 1:
		return 1
	default:
		return r
	}
}
