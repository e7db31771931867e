package metrics

import (
	"net/url"
	"time"
)

// Config — параметры сбора метрик.
type Config struct {
	Enabled bool
	// PushgatewayURL необязателен: без него метрики доступны только через /metrics.
	PushgatewayURL string
	JobName        string
	Timeout        time.Duration
	// PushInterval — период отправки в Pushgateway.
	PushInterval time.Duration
	// InstanceLabel переопределяет label instance, по умолчанию hostname.
	InstanceLabel string
}

// Validate проверяет конфигурацию включённых метрик.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.JobName == "" {
		return ErrJobNameRequired
	}
	if c.PushgatewayURL == "" {
		return nil
	}
	u, err := url.Parse(c.PushgatewayURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrPushgatewayURLInvalid
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.PushInterval <= 0 {
		return ErrInvalidPushInterval
	}
	return nil
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		JobName:      "errwatch",
		Timeout:      10 * time.Second,
		PushInterval: time.Minute,
	}
}
