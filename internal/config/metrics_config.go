package config

import (
	"time"

	"github.com/Kargones/errwatch/internal/pkg/metrics"
)

// MetricsConfig содержит настройки Prometheus метрик.
type MetricsConfig struct {
	// Enabled — без него /metrics отвечает 404.
	Enabled bool `yaml:"enabled" env:"ERRWATCH_METRICS_ENABLED" env-description:"включить Prometheus метрики"`

	// PushgatewayURL необязателен, например "http://pushgateway:9091".
	PushgatewayURL string `yaml:"pushgatewayUrl" env:"ERRWATCH_METRICS_PUSHGATEWAY_URL"`

	JobName string `yaml:"jobName" env:"ERRWATCH_METRICS_JOB_NAME"`

	// Timeout — таймаут HTTP запросов к Pushgateway.
	Timeout      time.Duration `yaml:"timeout" env:"ERRWATCH_METRICS_TIMEOUT"`
	PushInterval time.Duration `yaml:"pushInterval" env:"ERRWATCH_METRICS_PUSH_INTERVAL"`

	// InstanceLabel — если пусто, используется hostname.
	InstanceLabel string `yaml:"instanceLabel" env:"ERRWATCH_METRICS_INSTANCE"`
}

func defaultMetricsConfig() MetricsConfig {
	d := metrics.DefaultConfig()
	return MetricsConfig{
		Enabled:      d.Enabled,
		JobName:      d.JobName,
		Timeout:      d.Timeout,
		PushInterval: d.PushInterval,
	}
}

// ToMetrics переводит раздел в конфигурацию коллектора.
func (m *MetricsConfig) ToMetrics() metrics.Config {
	return metrics.Config{
		Enabled:        m.Enabled,
		PushgatewayURL: m.PushgatewayURL,
		JobName:        m.JobName,
		Timeout:        m.Timeout,
		PushInterval:   m.PushInterval,
		InstanceLabel:  m.InstanceLabel,
	}
}
