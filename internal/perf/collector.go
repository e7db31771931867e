package perf

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/logging"
	"github.com/Kargones/errwatch/internal/timeseries"
)

// Значения по умолчанию.
const (
	DefaultInterval      = 30 * time.Second
	DefaultSweepInterval = time.Minute
	DefaultSummaryWindow = 24 * time.Hour
	// AdvisoryMs — длительность загрузки страницы или ресурса, после которой
	// сборщик сразу отправляет предупреждение, не дожидаясь оценщика алертов.
	AdvisoryMs = 5000
)

// PointStore — хранилище точек, в которое пишет сборщик.
type PointStore interface {
	AddPoint(p monitoring.TimeSeriesPoint)
	Query(f timeseries.Filter) iter.Seq[monitoring.TimeSeriesPoint]
}

// Advisor получает облегчённые предупреждения о медленных загрузках.
type Advisor interface {
	Advise(ctx context.Context, message string, extra map[string]any)
}

// LogAdvisor пишет предупреждения в лог.
type LogAdvisor struct {
	Logger logging.Logger
}

// Advise пишет предупреждение уровня WARN.
func (a LogAdvisor) Advise(_ context.Context, message string, extra map[string]any) {
	args := make([]any, 0, 2*len(extra))
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		args = append(args, k, extra[k])
	}
	a.Logger.Warn(message, args...)
}

// Collector опрашивает источники по таймеру и по сигналам beacon-ов
// и записывает измерения во временной ряд.
type Collector struct {
	store    PointStore
	sources  []MetricSource
	beacons  *BeaconSource
	sessions *Sessions
	advisor  Advisor
	logger   logging.Logger
	interval time.Duration
	sweep    time.Duration
	now      func() time.Time
	trigger  chan struct{}
	observe  []func(context.Context, Metric)
}

// Option настраивает Collector.
type Option func(*Collector)

// WithSources добавляет платформенные источники метрик.
func WithSources(src ...MetricSource) Option {
	return func(c *Collector) { c.sources = append(c.sources, src...) }
}

// WithBeaconSource задаёт очередь beacon-ов.
func WithBeaconSource(b *BeaconSource) Option {
	return func(c *Collector) {
		if b != nil {
			c.beacons = b
		}
	}
}

// WithSessions задаёт реестр сессий.
func WithSessions(s *Sessions) Option {
	return func(c *Collector) {
		if s != nil {
			c.sessions = s
		}
	}
}

// WithAdvisor задаёт получателя быстрых предупреждений.
func WithAdvisor(a Advisor) Option {
	return func(c *Collector) {
		if a != nil {
			c.advisor = a
		}
	}
}

// WithObserver добавляет функцию, вызываемую после записи каждого измерения.
func WithObserver(fn func(ctx context.Context, m Metric)) Option {
	return func(c *Collector) {
		if fn != nil {
			c.observe = append(c.observe, fn)
		}
	}
}

// WithInterval задаёт период опроса источников.
func WithInterval(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// NewCollector создаёт сборщик. Очередь beacon-ов всегда опрашивается
// последней, после платформенных источников.
func NewCollector(store PointStore, logger logging.Logger, opts ...Option) *Collector {
	log := logger.With("component", "perf")
	c := &Collector{
		store:    store,
		logger:   log,
		advisor:  LogAdvisor{Logger: log},
		interval: DefaultInterval,
		sweep:    DefaultSweepInterval,
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(c)
	}
	if c.beacons == nil {
		c.beacons = NewBeaconSource(DefaultBeaconQueue)
	}
	if c.sessions == nil {
		c.sessions = NewSessions(WithSessionClock(c.now))
	}
	return c
}

// Sessions возвращает реестр сессий.
func (c *Collector) Sessions() *Sessions { return c.sessions }

// SampleNow опрашивает все источники и возвращает число записанных измерений.
// Ошибка одного источника не мешает остальным.
func (c *Collector) SampleNow(ctx context.Context) int {
	n := 0
	for _, src := range c.allSources() {
		metrics, err := src.Sample(ctx)
		if err != nil {
			c.logger.Warn("ошибка опроса источника метрик", "source", src.Name(), "error", err)
		}
		for _, m := range metrics {
			c.record(ctx, m)
			n++
		}
	}
	return n
}

func (c *Collector) allSources() []MetricSource {
	return append(slices.Clone(c.sources), c.beacons)
}

func (c *Collector) record(ctx context.Context, m Metric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = c.now()
	}
	c.store.AddPoint(m.Point())
	c.sessions.ApplyMetric(m)
	c.logger.Debug("метрика производительности", "name", m.Name, "value", m.Value, "unit", m.Unit)

	switch {
	case m.Name == monitoring.MetricLoad && m.Value > AdvisoryMs:
		c.advisor.Advise(ctx,
			fmt.Sprintf("Медленная загрузка страницы: %d мс", int(math.Round(m.Value))),
			map[string]any{"metric": m.Name, "value": m.Value, "url": m.Tags["url"]})
	case m.Name == monitoring.MetricSlowResource && m.Value > AdvisoryMs:
		c.advisor.Advise(ctx,
			fmt.Sprintf("Очень медленный ресурс: %v загружался %d мс", m.Tags["url"], int(math.Round(m.Value))),
			map[string]any{"metric": m.Name, "value": m.Value, "url": m.Tags["url"]})
	}
	for _, fn := range c.observe {
		fn(ctx, m)
	}
}

// Observe принимает beacon браузера: обновляет сессию и ставит измерения
// в очередь. Навигация и смена видимости запускают внеочередной опрос.
// Возвращает серверный идентификатор сессии, если он известен.
func (c *Collector) Observe(b Beacon) (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}
	if b.Timestamp.IsZero() {
		b.Timestamp = c.now()
	}

	if b.SessionID != "" {
		switch {
		case b.Type == BeaconVisibility && b.Hidden:
			c.sessions.End(b.SessionID)
		default:
			b.session = c.sessions.Touch(b.SessionID, b.UserID, b.UserAgent)
			switch b.Type {
			case BeaconNavigation:
				c.sessions.PageView(b.SessionID, b.Path())
			case BeaconInteraction:
				c.sessions.Interaction(b.SessionID)
			}
		}
	}

	if b.Type != BeaconVisibility && b.Type != BeaconInteraction {
		if err := c.beacons.Enqueue(b); err != nil {
			c.logger.Warn("beacon отброшен", "type", string(b.Type), "error", err)
			return b.session, err
		}
	}

	if b.Type == BeaconNavigation || b.Type == BeaconVisibility {
		c.signal()
	}
	return b.session, nil
}

// RecordError учитывает ошибку в сессии браузера client.
func (c *Collector) RecordError(client string) {
	if client != "" {
		c.sessions.RecordError(client)
	}
}

func (c *Collector) signal() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Run опрашивает источники сразу, затем каждые interval и по сигналам
// beacon-ов, до отмены ctx.
func (c *Collector) Run(ctx context.Context) {
	c.SampleNow(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	sweeper := time.NewTicker(c.sweep)
	defer sweeper.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SampleNow(ctx)
		case <-c.trigger:
			c.SampleNow(ctx)
		case <-sweeper.C:
			if n := c.sessions.Sweep(); n > 0 {
				c.logger.Debug("сессии завершены по ротации", "count", n)
			}
		}
	}
}

// Summary возвращает статистику каждой метрики производительности за окно,
// отсортированную по имени.
func (c *Collector) Summary(window time.Duration) []monitoring.MetricSummary {
	if window <= 0 {
		window = DefaultSummaryWindow
	}
	acc := make(map[string]*monitoring.MetricSummary)
	for p := range c.store.Query(timeseries.Filter{Kind: monitoring.KindPerf, Start: c.now().Add(-window)}) {
		s, ok := acc[p.Category]
		if !ok {
			unit, _ := p.Metadata[monitoring.MetaUnit].(string)
			s = &monitoring.MetricSummary{Name: p.Category, Unit: unit, Min: p.Value, Max: p.Value}
			acc[p.Category] = s
		}
		s.Min = min(s.Min, p.Value)
		s.Max = max(s.Max, p.Value)
		s.Avg = (s.Avg*float64(s.Count) + p.Value) / float64(s.Count+1)
		s.Count++
	}

	out := make([]monitoring.MetricSummary, 0, len(acc))
	for _, s := range acc {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b monitoring.MetricSummary) int { return cmp.Compare(a.Name, b.Name) })
	return out
}
