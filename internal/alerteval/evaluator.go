// Package alerteval периодически сравнивает агрегированное состояние с порогами
// и выпускает алерты с учётом cooldown по ключу.
package alerteval

import (
	"context"
	"iter"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/alerting"
	"github.com/Kargones/errwatch/internal/pkg/logging"
	"github.com/Kargones/errwatch/internal/pkg/metrics"
	"github.com/Kargones/errwatch/internal/pkg/tracing"
	"github.com/Kargones/errwatch/internal/timeseries"
)

// Значения по умолчанию.
const (
	DefaultInterval        = 60 * time.Second
	DefaultInitialDelay    = 5 * time.Second
	DefaultCooldown        = 15 * time.Minute
	DefaultErrorRateWindow = time.Hour
	DefaultMinActions      = 10
)

// StatsReader — источник агрегатов по сигнатурам.
type StatsReader interface {
	Stats() []monitoring.ErrorStats
	CategoryTotal(c monitoring.Category) int
}

// PointReader — источник точек временного ряда.
type PointReader interface {
	Latest(category string) (monitoring.TimeSeriesPoint, bool)
	Query(f timeseries.Filter) iter.Seq[monitoring.TimeSeriesPoint]
}

// Recorder сохраняет сработавший алерт.
type Recorder interface {
	Record(alert monitoring.AlertEvent)
}

// Config — параметры оценки.
type Config struct {
	Thresholds      monitoring.Thresholds
	Cooldown        time.Duration
	Interval        time.Duration
	InitialDelay    time.Duration
	ErrorRateWindow time.Duration
	MinActions      int
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		Thresholds:      monitoring.DefaultThresholds(),
		Cooldown:        DefaultCooldown,
		Interval:        DefaultInterval,
		InitialDelay:    DefaultInitialDelay,
		ErrorRateWindow: DefaultErrorRateWindow,
		MinActions:      DefaultMinActions,
	}
}

// Evaluator выполняет проверки по таймеру.
type Evaluator struct {
	cfg      Config
	stats    StatsReader
	points   PointReader
	recorder Recorder
	notifier alerting.Notifier
	metrics  metrics.Collector
	logger   logging.Logger
	ledger   *Ledger
	now      func() time.Time

	// tickMu сериализует тики: базовые уровни всплесков не разделяются между ними.
	tickMu    sync.Mutex
	baselines map[monitoring.Category]int
}

// Option настраивает Evaluator.
type Option func(*Evaluator)

// WithClock подменяет источник времени оценщика и журнала cooldown.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
		e.ledger.SetNowFunc(now)
	}
}

// WithMetrics задаёт коллектор метрик.
func WithMetrics(c metrics.Collector) Option {
	return func(e *Evaluator) {
		if c != nil {
			e.metrics = c
		}
	}
}

// New создаёт Evaluator.
func New(cfg Config, stats StatsReader, points PointReader, recorder Recorder, notifier alerting.Notifier, logger logging.Logger, opts ...Option) *Evaluator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.ErrorRateWindow <= 0 {
		cfg.ErrorRateWindow = DefaultErrorRateWindow
	}
	if cfg.MinActions <= 0 {
		cfg.MinActions = DefaultMinActions
	}
	e := &Evaluator{
		cfg:       cfg,
		stats:     stats,
		points:    points,
		recorder:  recorder,
		notifier:  notifier,
		metrics:   metrics.NewNopCollector(),
		logger:    logger.With("component", "alerteval"),
		ledger:    NewLedger(cfg.Cooldown),
		now:       time.Now,
		baselines: make(map[monitoring.Category]int),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Ledger возвращает журнал cooldown.
func (e *Evaluator) Ledger() *Ledger { return e.ledger }

// Run выполняет первую проверку через InitialDelay, затем каждые Interval, до отмены ctx.
func (e *Evaluator) Run(ctx context.Context) {
	timer := time.NewTimer(e.cfg.InitialDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	e.Tick(ctx)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick выполняет все проверки один раз и возвращает сработавшие алерты.
func (e *Evaluator) Tick(ctx context.Context) []monitoring.AlertEvent {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	ctx, span := tracing.Start(ctx, "alerteval", "tick")
	defer span.End()
	log := e.logger.With("trace_id", tracing.TraceIDFromContext(ctx))

	var fired []monitoring.AlertEvent
	fired = append(fired, e.CheckErrorSpikes(ctx)...)
	fired = append(fired, e.CheckPerformance(ctx)...)
	fired = append(fired, e.CheckMemory(ctx)...)
	fired = append(fired, e.CheckUserImpact(ctx)...)
	fired = append(fired, e.CheckErrorRate(ctx)...)

	span.SetAttributes(attribute.Int("alerts.fired", len(fired)))
	log.Debug("проверка порогов завершена", "fired", len(fired))
	return fired
}

// fire проверяет cooldown ключа и, если он истёк, сохраняет и отправляет алерт.
func (e *Evaluator) fire(ctx context.Context, draft monitoring.AlertEvent) (monitoring.AlertEvent, bool) {
	if !e.ledger.Allow(draft.Key) {
		e.logger.Debug("алерт подавлен cooldown", "key", draft.Key)
		return monitoring.AlertEvent{}, false
	}

	now := e.now()
	alert := draft
	alert.ID = monitoring.AlertID(draft.Key, now)
	alert.Timestamp = now
	alert.Resolved = false
	if len(alert.Channels) == 0 {
		alert.Channels = monitoring.DefaultChannels(alert.Severity)
	}

	e.recorder.Record(alert)
	e.notifier.Dispatch(alert)
	e.metrics.RecordAlert(string(alert.Type), string(alert.Severity))

	e.logger.Warn("алерт сработал",
		"alert_id", alert.ID,
		"type", string(alert.Type),
		"severity", string(alert.Severity),
		"trace_id", tracing.TraceIDFromContext(ctx),
	)
	return alert, true
}
