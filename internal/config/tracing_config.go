package config

import (
	"time"

	"github.com/Kargones/errwatch/internal/pkg/tracing"
)

// TracingConfig содержит настройки OpenTelemetry трейсинга.
type TracingConfig struct {
	// Enabled включает отправку трейсов в OTLP бэкенд.
	Enabled bool `yaml:"enabled" env:"ERRWATCH_TRACING_ENABLED"`

	// Endpoint — URL OTLP HTTP endpoint (например, http://jaeger:4318).
	Endpoint string `yaml:"endpoint" env:"ERRWATCH_TRACING_ENDPOINT"`

	ServiceName string `yaml:"serviceName" env:"ERRWATCH_TRACING_SERVICE_NAME"`
	Environment string `yaml:"environment" env:"ERRWATCH_TRACING_ENVIRONMENT"`

	// Insecure — HTTP вместо HTTPS. Для публичных сетей выключить.
	Insecure bool `yaml:"insecure" env:"ERRWATCH_TRACING_INSECURE"`

	Timeout time.Duration `yaml:"timeout" env:"ERRWATCH_TRACING_TIMEOUT"`

	// SamplingRate — доля сэмплируемых трейсов от 0.0 до 1.0.
	SamplingRate float64 `yaml:"samplingRate" env:"ERRWATCH_TRACING_SAMPLING_RATE"`
}

func defaultTracingConfig() TracingConfig {
	d := tracing.DefaultConfig()
	return TracingConfig{
		ServiceName:  d.ServiceName,
		Environment:  d.Environment,
		Insecure:     true,
		Timeout:      d.Timeout,
		SamplingRate: d.SamplingRate,
	}
}

// ToTracing переводит раздел в конфигурацию провайдера трейсов.
func (t *TracingConfig) ToTracing() tracing.Config {
	return tracing.Config{
		Enabled:      t.Enabled,
		Endpoint:     t.Endpoint,
		ServiceName:  t.ServiceName,
		Environment:  t.Environment,
		Insecure:     t.Insecure,
		Timeout:      t.Timeout,
		SamplingRate: t.SamplingRate,
	}
}
