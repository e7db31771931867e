package tracing

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	ErrEndpointRequired      = errors.New("tracing: endpoint обязателен при включённом трейсинге")
	ErrEndpointInvalidFormat = errors.New("tracing: endpoint должен быть URL с host, например http://otel-collector:4318")
	ErrServiceNameRequired   = errors.New("tracing: service name обязателен")
	ErrTimeoutInvalid        = errors.New("tracing: timeout должен быть положительным")
	ErrSamplingRateInvalid   = errors.New("tracing: sampling rate должен быть от 0.0 до 1.0")
)

// Config — параметры OTLP экспорта.
type Config struct {
	Enabled      bool
	Endpoint     string
	ServiceName  string
	Version      string
	Environment  string
	Insecure     bool
	Timeout      time.Duration
	SamplingRate float64
}

// Validate проверяет конфигурацию включённого трейсинга.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return ErrEndpointRequired
	}
	if u, err := url.Parse(c.Endpoint); err != nil || u.Host == "" {
		return ErrEndpointInvalidFormat
	}
	if c.ServiceName == "" {
		return ErrServiceNameRequired
	}
	if c.Timeout <= 0 {
		return ErrTimeoutInvalid
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("%w, получено: %g", ErrSamplingRateInvalid, c.SamplingRate)
	}
	return nil
}

// DefaultConfig возвращает конфигурацию с выключенным трейсингом.
func DefaultConfig() Config {
	return Config{
		ServiceName:  "errwatch",
		Environment:  "production",
		Timeout:      5 * time.Second,
		SamplingRate: 1.0,
	}
}
