// Package config загружает конфигурацию errwatch: YAML файл (необязательный),
// .env и переменные окружения ERRWATCH_*. Конфигурация читается один раз
// при старте и не перечитывается.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Kargones/errwatch/internal/pkg/apperrors"
	"github.com/Kargones/errwatch/internal/pkg/logging"
)

// EnvConfigPath — переменная с путём к YAML файлу, если он не передан флагом.
const EnvConfigPath = "ERRWATCH_CONFIG"

// Config — полная конфигурация errwatch.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Alerting   AlertingConfig   `yaml:"alerting"`
	Evaluator  EvaluatorConfig  `yaml:"evaluator"`
	TimeSeries TimeSeriesConfig `yaml:"timeSeries"`
	Perf       PerfConfig       `yaml:"performance"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Sink       SinkConfig       `yaml:"sink"`
	Feed       FeedConfig       `yaml:"feed"`

	// Language — язык текстового отчёта (BCP 47).
	Language string `yaml:"language" env:"ERRWATCH_LANGUAGE" env-description:"язык текстового отчёта"`
}

// Default возвращает конфигурацию со значениями по умолчанию.
// Load заполняет её до чтения YAML, поэтому явный ноль в файле сохраняется.
func Default() *Config {
	return &Config{
		Server:     defaultServerConfig(),
		Logging:    defaultLoggingConfig(),
		Metrics:    defaultMetricsConfig(),
		Tracing:    defaultTracingConfig(),
		Alerting:   defaultAlertingConfig(),
		Evaluator:  defaultEvaluatorConfig(),
		TimeSeries: defaultTimeSeriesConfig(),
		Perf:       defaultPerfConfig(),
		Snapshot:   defaultSnapshotConfig(),
		Sink:       defaultSinkConfig(),
		Feed:       defaultFeedConfig(),
		Language:   "ru",
	}
}

// LoadDotEnv загружает .env.local и .env из текущего каталога.
// Уже заданные переменные окружения не перезаписываются.
func LoadDotEnv() []string {
	var loaded []string
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...) //nolint:errcheck // отсутствие .env не ошибка
	}
	return loaded
}

// Load читает конфигурацию. path пустой — берётся ERRWATCH_CONFIG,
// а если и он пуст, используются только переменные окружения.
func Load(path string) (*Config, error) {
	LoadDotEnv()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := Default()
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrConfigLoad, fmt.Sprintf("не удалось загрузить конфигурацию %q", path), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrConfigValidate, "некорректная конфигурация", err)
	}
	return cfg, nil
}

// Validate проверяет все разделы и объединяет их ошибки.
func (c *Config) Validate() error {
	alerts := c.Alerting.ToAlerting()
	metricsCfg := c.Metrics.ToMetrics()
	tracingCfg := c.Tracing.ToTracing()
	return errors.Join(
		c.Server.validate(),
		alerts.Validate(),
		metricsCfg.Validate(),
		tracingCfg.Validate(),
		c.Snapshot.validate(),
		c.Sink.validate(),
		c.Perf.validate(),
	)
}

// Warnings возвращает замечания, не мешающие запуску: выключенные пороги,
// выключенная аутентификация дашборда.
func (c *Config) Warnings() []string {
	var out []string
	for name, v := range map[string]float64{
		"critical":           float64(c.Evaluator.Thresholds.Critical),
		"high":               float64(c.Evaluator.Thresholds.High),
		"medium":             float64(c.Evaluator.Thresholds.Medium),
		"low":                float64(c.Evaluator.Thresholds.Low),
		"errorRatePercent":   c.Evaluator.Thresholds.ErrorRatePercent,
		"responseTimeMs":     c.Evaluator.Thresholds.ResponseTimeMs,
		"memoryUsagePercent": c.Evaluator.Thresholds.MemoryUsagePercent,
	} {
		if v <= 0 {
			out = append(out, fmt.Sprintf("порог %s = %g: проверка отключена", name, v))
		}
	}
	if c.Server.AuthSecret == "" {
		out = append(out, "server.authSecret не задан: API дашборда доступен без токена")
	}
	slices.Sort(out)
	return out
}

// LogWarnings пишет Warnings в лог.
func (c *Config) LogWarnings(logger logging.Logger) {
	for _, w := range c.Warnings() {
		logger.Warn(w)
	}
}

// Usage возвращает описание переменных окружения.
func Usage() (string, error) {
	return cleanenv.GetDescription(Default(), nil)
}
