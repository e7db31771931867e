package tracing

import (
	"context"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Kargones/errwatch/internal/pkg/logging"
)

// Shutdown завершает TracerProvider, выгружая накопленные span-ы.
type Shutdown func(context.Context) error

// NopShutdown используется при выключенном трейсинге.
func NopShutdown(context.Context) error { return nil }

// NewTracerProvider регистрирует глобальный TracerProvider с OTLP HTTP экспортом
// и возвращает функцию его остановки. При Enabled == false возвращает NopShutdown.
func NewTracerProvider(cfg Config, logger logging.Logger) (Shutdown, error) {
	if !cfg.Enabled {
		logger.Debug("трейсинг выключен")
		return NopShutdown, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	// otlptracehttp ожидает host:port без схемы.
	host := cfg.Endpoint
	if u, perr := url.Parse(cfg.Endpoint); perr == nil && u.Host != "" {
		host = u.Host
	}
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(host),
		otlptracehttp.WithTimeout(cfg.Timeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	)
	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry трейсинг инициализирован",
		"endpoint", cfg.Endpoint,
		"service_name", cfg.ServiceName,
		"sampling_rate", cfg.SamplingRate,
	)
	return tp.Shutdown, nil
}

// Tracer возвращает tracer глобального провайдера для компонента errwatch.
func Tracer(component string) trace.Tracer {
	return otel.Tracer("github.com/Kargones/errwatch/" + component)
}

// Start открывает span и кладёт в контекст trace_id для логов.
// Если span не записывается (nop провайдер), trace_id генерируется локально.
func Start(ctx context.Context, component, name string) (context.Context, trace.Span) {
	ctx, span := Tracer(component).Start(ctx, name)
	id := GenerateTraceID()
	if sc := span.SpanContext(); sc.HasTraceID() {
		id = sc.TraceID().String()
	}
	return WithTraceID(ctx, id), span
}
