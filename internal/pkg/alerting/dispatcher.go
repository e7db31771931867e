package alerting

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/logging"
	"github.com/Kargones/errwatch/internal/pkg/metrics"
	"github.com/Kargones/errwatch/internal/pkg/tracing"
)

// Notifier принимает алерт к асинхронной доставке.
type Notifier interface {
	// Dispatch ставит алерт в очередь и сразу возвращает управление.
	// false означает, что алерт отброшен.
	Dispatch(alert monitoring.AlertEvent) bool
}

// DeliveryResult — итог доставки в один канал.
type DeliveryResult struct {
	Channel  monitoring.ChannelType
	Err      error
	Duration time.Duration
}

// Report — итог доставки одного алерта.
type Report struct {
	AlertID string
	Results []DeliveryResult
}

// AllFailed сообщает, что была хотя бы одна попытка и все они неудачны.
func (r Report) AllFailed() bool {
	if len(r.Results) == 0 {
		return false
	}
	for _, res := range r.Results {
		if res.Err == nil {
			return false
		}
	}
	return true
}

// Delivered возвращает каналы, принявшие алерт.
func (r Report) Delivered() []monitoring.ChannelType {
	var out []monitoring.ChannelType
	for _, res := range r.Results {
		if res.Err == nil {
			out = append(out, res.Channel)
		}
	}
	return out
}

// Dispatcher рассылает алерты по каналам. Каждый канал получает алерт в своей
// горутине со своим таймаутом; сбой или паника канала не влияет на остальные.
type Dispatcher struct {
	channels map[monitoring.ChannelType]Channel
	names    []monitoring.ChannelType
	rules    *RulesEngine
	logger   logging.Logger
	metrics  metrics.Collector

	timeout     time.Duration
	workers     int
	queue       chan monitoring.AlertEvent
	onAllFailed func(monitoring.AlertEvent, Report)

	done      chan struct{}
	closeOnce sync.Once
}

// Option настраивает Dispatcher.
type Option func(*Dispatcher)

// WithRules задаёт фильтрацию алертов по каналам.
func WithRules(rules *RulesEngine) Option { return func(d *Dispatcher) { d.rules = rules } }

// WithMetrics задаёт коллектор метрик доставки.
func WithMetrics(c metrics.Collector) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.metrics = c
		}
	}
}

// WithQueueSize задаёт ёмкость очереди.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan monitoring.AlertEvent, n)
		}
	}
}

// WithWorkers задаёт число воркеров доставки.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithDeliveryTimeout задаёт таймаут доставки в один канал.
func WithDeliveryTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithOnAllFailed вызывается, когда алерт не принял ни один канал.
func WithOnAllFailed(fn func(monitoring.AlertEvent, Report)) Option {
	return func(d *Dispatcher) { d.onAllFailed = fn }
}

// NewDispatcher создаёт Dispatcher. При совпадении типов побеждает последний канал.
func NewDispatcher(logger logging.Logger, channels []Channel, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		channels: make(map[monitoring.ChannelType]Channel, len(channels)),
		logger:   logger,
		metrics:  metrics.NewNopCollector(),
		timeout:  DefaultDeliveryTimeout,
		workers:  DefaultWorkers,
		queue:    make(chan monitoring.AlertEvent, DefaultQueueSize),
		done:     make(chan struct{}),
	}
	for _, ch := range channels {
		d.channels[ch.Type()] = ch
	}
	// детерминированный порядок обхода
	d.names = slices.Sorted(maps.Keys(d.channels))
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Channels возвращает типы зарегистрированных каналов.
func (d *Dispatcher) Channels() []monitoring.ChannelType {
	return slices.Clone(d.names)
}

// Dispatch реализует Notifier.
func (d *Dispatcher) Dispatch(alert monitoring.AlertEvent) bool {
	select {
	case <-d.done:
		d.logger.Warn("диспетчер остановлен, алерт отброшен", "alert_id", alert.ID)
		return false
	default:
	}

	select {
	case d.queue <- alert.Clone():
		return true
	default:
		d.logger.Error("очередь алертов переполнена, алерт отброшен",
			"alert_id", alert.ID,
			"queue_size", cap(d.queue),
		)
		return false
	}
}

// Run запускает воркеры и блокируется до отмены ctx.
// Алерты, оставшиеся в очереди после остановки, не доставляются.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for range d.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	<-ctx.Done()
	d.closeOnce.Do(func() { close(d.done) })
	wg.Wait()
	if n := len(d.queue); n > 0 {
		d.logger.Warn("остановка с недоставленными алертами", "pending", n)
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert := <-d.queue:
			d.Deliver(ctx, alert)
		}
	}
}

// Deliver синхронно доставляет алерт во все подходящие каналы.
// Подходящий канал зарегистрирован, указан в alert.Channels и пропущен правилами.
func (d *Dispatcher) Deliver(ctx context.Context, alert monitoring.AlertEvent) Report {
	var targets []Channel
	for _, name := range d.names {
		if !alert.HasChannel(name) {
			continue
		}
		if d.rules != nil && !d.rules.Evaluate(alert, name) {
			d.logger.Debug("алерт отфильтрован правилами канала",
				"channel", string(name),
				"alert_id", alert.ID,
				"severity", string(alert.Severity),
			)
			continue
		}
		targets = append(targets, d.channels[name])
	}

	report := Report{AlertID: alert.ID, Results: make([]DeliveryResult, len(targets))}

	var wg sync.WaitGroup
	for i, ch := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report.Results[i] = d.deliverOne(ctx, ch, alert)
		}()
	}
	wg.Wait()

	if report.AllFailed() {
		d.logger.Error("алерт не доставлен ни в один канал",
			"alert_id", alert.ID,
			"type", string(alert.Type),
			"channels", len(report.Results),
		)
		if d.onAllFailed != nil {
			d.onAllFailed(alert, report)
		}
	}
	return report
}

func (d *Dispatcher) deliverOne(ctx context.Context, ch Channel, alert monitoring.AlertEvent) (res DeliveryResult) {
	res.Channel = ch.Type()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	ctx, span := tracing.Start(ctx, "alerting", "deliver."+string(res.Channel))
	span.SetAttributes(
		attribute.String("alert.id", alert.ID),
		attribute.String("alert.type", string(alert.Type)),
	)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic in %s channel: %v", res.Channel, r)
		}
		res.Duration = time.Since(start)
		d.metrics.RecordDelivery(string(res.Channel), res.Duration, res.Err == nil)
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			d.logger.Warn("ошибка доставки алерта",
				"channel", string(res.Channel),
				"alert_id", alert.ID,
				"error", res.Err.Error(),
			)
		}
		span.End()
	}()

	res.Err = ch.Send(ctx, alert)
	return res
}
