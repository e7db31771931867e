package config

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/Kargones/errwatch/internal/alerteval"
	"github.com/Kargones/errwatch/internal/alertstate"
	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/perf"
	"github.com/Kargones/errwatch/internal/pipeline"
	"github.com/Kargones/errwatch/internal/timeseries"
)

// ErrBeaconQueue возвращается для неположительной очереди beacon-ов.
var ErrBeaconQueue = errors.New("performance: beaconQueue должен быть положительным")

// EvaluatorConfig — расписание проверок и пороги алертов.
type EvaluatorConfig struct {
	Interval     time.Duration `yaml:"interval" env:"ERRWATCH_EVAL_INTERVAL" env-description:"период проверки порогов"`
	InitialDelay time.Duration `yaml:"initialDelay" env:"ERRWATCH_EVAL_INITIAL_DELAY"`

	// Cooldown — минимальный промежуток между алертами с одним ключом.
	Cooldown        time.Duration `yaml:"cooldown" env:"ERRWATCH_EVAL_COOLDOWN"`
	ErrorRateWindow time.Duration `yaml:"errorRateWindow" env:"ERRWATCH_EVAL_ERROR_RATE_WINDOW"`

	// MinActions — минимум действий пользователей для расчёта доли ошибок.
	MinActions int `yaml:"minActions" env:"ERRWATCH_EVAL_MIN_ACTIONS"`

	// HistoryLimit — сколько алертов хранит история.
	HistoryLimit int `yaml:"historyLimit" env:"ERRWATCH_ALERT_HISTORY_LIMIT"`

	Thresholds ThresholdsConfig `yaml:"thresholds"`
}

// ThresholdsConfig — статические пороги. Ноль или отрицательное значение
// отключает проверку.
type ThresholdsConfig struct {
	Critical           int     `yaml:"critical" env:"ERRWATCH_THRESHOLD_CRITICAL"`
	High               int     `yaml:"high" env:"ERRWATCH_THRESHOLD_HIGH"`
	Medium             int     `yaml:"medium" env:"ERRWATCH_THRESHOLD_MEDIUM"`
	Low                int     `yaml:"low" env:"ERRWATCH_THRESHOLD_LOW"`
	ErrorRatePercent   float64 `yaml:"errorRatePercent" env:"ERRWATCH_THRESHOLD_ERROR_RATE"`
	ResponseTimeMs     float64 `yaml:"responseTimeMs" env:"ERRWATCH_THRESHOLD_RESPONSE_TIME"`
	MemoryUsagePercent float64 `yaml:"memoryUsagePercent" env:"ERRWATCH_THRESHOLD_MEMORY"`
}

// TimeSeriesConfig — ограничения временного ряда.
type TimeSeriesConfig struct {
	Capacity      int           `yaml:"capacity" env:"ERRWATCH_TIMESERIES_CAPACITY"`
	PerfCapacity  int           `yaml:"perfCapacity" env:"ERRWATCH_TIMESERIES_PERF_CAPACITY" env-description:"предел точек производительности"`
	Retention     time.Duration `yaml:"retention" env:"ERRWATCH_TIMESERIES_RETENTION"`
	PruneInterval time.Duration `yaml:"pruneInterval" env:"ERRWATCH_TIMESERIES_PRUNE_INTERVAL"`
}

// PerfConfig — источники метрик производительности.
type PerfConfig struct {
	Interval time.Duration `yaml:"interval" env:"ERRWATCH_PERF_INTERVAL"`

	// HostMemory — память хоста через gopsutil.
	HostMemory bool `yaml:"hostMemory" env:"ERRWATCH_PERF_HOST_MEMORY"`
	// RuntimeMemory — куча Go самого процесса.
	RuntimeMemory bool `yaml:"runtimeMemory" env:"ERRWATCH_PERF_RUNTIME_MEMORY"`

	BeaconQueue     int           `yaml:"beaconQueue" env:"ERRWATCH_PERF_BEACON_QUEUE"`
	SessionRotation time.Duration `yaml:"sessionRotation" env:"ERRWATCH_PERF_SESSION_ROTATION"`
}

func defaultEvaluatorConfig() EvaluatorConfig {
	d := alerteval.DefaultConfig()
	return EvaluatorConfig{
		Interval:        d.Interval,
		InitialDelay:    d.InitialDelay,
		Cooldown:        d.Cooldown,
		ErrorRateWindow: d.ErrorRateWindow,
		MinActions:      d.MinActions,
		HistoryLimit:    alertstate.DefaultHistoryLimit,
		Thresholds: ThresholdsConfig{
			Critical:           d.Thresholds.Critical,
			High:               d.Thresholds.High,
			Medium:             d.Thresholds.Medium,
			Low:                d.Thresholds.Low,
			ErrorRatePercent:   d.Thresholds.ErrorRatePercent,
			ResponseTimeMs:     d.Thresholds.ResponseTimeMs,
			MemoryUsagePercent: d.Thresholds.MemoryUsagePercent,
		},
	}
}

func defaultTimeSeriesConfig() TimeSeriesConfig {
	return TimeSeriesConfig{
		Capacity:      timeseries.DefaultCapacity,
		PerfCapacity:  timeseries.DefaultPerfCapacity,
		Retention:     timeseries.DefaultRetention,
		PruneInterval: pipeline.DefaultPruneInterval,
	}
}

func defaultPerfConfig() PerfConfig {
	return PerfConfig{
		Interval:        perf.DefaultInterval,
		HostMemory:      true,
		RuntimeMemory:   true,
		BeaconQueue:     perf.DefaultBeaconQueue,
		SessionRotation: perf.DefaultSessionRotation,
	}
}

func (p *PerfConfig) validate() error {
	if p.BeaconQueue <= 0 {
		return fmt.Errorf("%w, получено: %d", ErrBeaconQueue, p.BeaconQueue)
	}
	return nil
}

// ToThresholds переводит пороги.
func (t ThresholdsConfig) ToThresholds() monitoring.Thresholds {
	return monitoring.Thresholds{
		Critical:           t.Critical,
		High:               t.High,
		Medium:             t.Medium,
		Low:                t.Low,
		ErrorRatePercent:   t.ErrorRatePercent,
		ResponseTimeMs:     t.ResponseTimeMs,
		MemoryUsagePercent: t.MemoryUsagePercent,
	}
}

// ToPipeline собирает конфигурацию конвейера. Неизвестный язык отчёта
// заменяется русским.
func (c *Config) ToPipeline() pipeline.Config {
	lang, err := language.Parse(c.Language)
	if err != nil {
		lang = language.Russian
	}
	return pipeline.Config{
		Alerting: c.Alerting.ToAlerting(),
		Rules:    c.Alerting.ToRules(),
		Evaluator: alerteval.Config{
			Thresholds:      c.Evaluator.Thresholds.ToThresholds(),
			Cooldown:        c.Evaluator.Cooldown,
			Interval:        c.Evaluator.Interval,
			InitialDelay:    c.Evaluator.InitialDelay,
			ErrorRateWindow: c.Evaluator.ErrorRateWindow,
			MinActions:      c.Evaluator.MinActions,
		},
		TimeSeries: pipeline.TimeSeriesConfig{
			Capacity:      c.TimeSeries.Capacity,
			PerfCapacity:  c.TimeSeries.PerfCapacity,
			Retention:     c.TimeSeries.Retention,
			PruneInterval: c.TimeSeries.PruneInterval,
		},
		Perf: pipeline.PerfConfig{
			Interval:        c.Perf.Interval,
			HostMemory:      c.Perf.HostMemory,
			RuntimeMemory:   c.Perf.RuntimeMemory,
			BeaconQueue:     c.Perf.BeaconQueue,
			SessionRotation: c.Perf.SessionRotation,
		},
		AlertHistoryLimit: c.Evaluator.HistoryLimit,
		SnapshotInterval:  c.Snapshot.MinInterval,
		Language:          lang,
	}
}
