// Package pipeline владеет всем состоянием конвейера ошибок и управляет
// жизненным циклом его фоновых задач.
//
// Pipeline связывает компоненты в порядке движения данных:
// Tracker → Aggregator и временной ряд → Evaluator → Dispatcher → каналы,
// а Analyzer читает то же состояние для отчётов. Состояние сохраняется
// в снапшот при каждом изменении и восстанавливается при старте.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/Kargones/errwatch/internal/aggregator"
	"github.com/Kargones/errwatch/internal/alerteval"
	"github.com/Kargones/errwatch/internal/alertstate"
	"github.com/Kargones/errwatch/internal/analytics"
	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/feed"
	"github.com/Kargones/errwatch/internal/perf"
	"github.com/Kargones/errwatch/internal/pkg/alerting"
	"github.com/Kargones/errwatch/internal/pkg/logging"
	"github.com/Kargones/errwatch/internal/pkg/metrics"
	"github.com/Kargones/errwatch/internal/snapshot"
	"github.com/Kargones/errwatch/internal/timeseries"
	"github.com/Kargones/errwatch/internal/tracker"
)

// DefaultPruneInterval — период удаления точек старше окна хранения.
const DefaultPruneInterval = 10 * time.Minute

// ErrAlreadyStarted возвращается повторным Start.
var ErrAlreadyStarted = errors.New("конвейер уже запущен")

// Config — параметры компонентов конвейера.
type Config struct {
	Alerting  alerting.Config
	Rules     alerting.RulesConfig
	Evaluator alerteval.Config

	TimeSeries TimeSeriesConfig
	Perf       PerfConfig

	AlertHistoryLimit int
	SnapshotInterval  time.Duration
	Language          language.Tag
}

// TimeSeriesConfig — ограничения временного ряда.
type TimeSeriesConfig struct {
	Capacity      int
	PerfCapacity  int
	Retention     time.Duration
	PruneInterval time.Duration
}

// PerfConfig — источники метрик производительности.
type PerfConfig struct {
	Interval        time.Duration
	HostMemory      bool
	RuntimeMemory   bool
	BeaconQueue     int
	SessionRotation time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		Alerting:  alerting.DefaultConfig(),
		Evaluator: alerteval.DefaultConfig(),
		TimeSeries: TimeSeriesConfig{
			Capacity:      timeseries.DefaultCapacity,
			PerfCapacity:  timeseries.DefaultPerfCapacity,
			Retention:     timeseries.DefaultRetention,
			PruneInterval: DefaultPruneInterval,
		},
		Perf: PerfConfig{
			Interval:        perf.DefaultInterval,
			HostMemory:      true,
			RuntimeMemory:   true,
			BeaconQueue:     perf.DefaultBeaconQueue,
			SessionRotation: perf.DefaultSessionRotation,
		},
		AlertHistoryLimit: alertstate.DefaultHistoryLimit,
		SnapshotInterval:  snapshot.DefaultMinInterval,
		Language:          language.Russian,
	}
}

// Deps — внешние зависимости конвейера.
type Deps struct {
	Snapshot snapshot.Store
	Sink     tracker.Sink
	Metrics  metrics.Collector
	Feed     *feed.Hub
	Logger   logging.Logger

	// Sources заменяют платформенные источники из PerfConfig.
	Sources []perf.MetricSource
	// Clock подменяет время всех компонентов.
	Clock func() time.Time
}

// Pipeline — владелец состояния.
type Pipeline struct {
	cfg     Config
	logger  logging.Logger
	metrics metrics.Collector
	now     func() time.Time

	points     *timeseries.Store
	stats      *aggregator.Aggregator
	impact     *aggregator.ImpactTracker
	alerts     *alertstate.Store
	feed       *feed.Hub
	dispatcher *alerting.Dispatcher
	evaluator  *alerteval.Evaluator
	sessions   *perf.Sessions
	collector  *perf.Collector
	tracker    *tracker.Tracker
	analyzer   *analytics.Analyzer
	store      snapshot.Store
	persister  *snapshot.Persister
	sink       tracker.Sink

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New собирает конвейер. Ошибка возвращается только при некорректной
// конфигурации каналов доставки.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &Pipeline{
		cfg:     cfg,
		logger:  logger.With("component", "pipeline"),
		metrics: deps.Metrics,
		now:     deps.Clock,
		feed:    deps.Feed,
		store:   deps.Snapshot,
		sink:    deps.Sink,
	}
	if p.metrics == nil {
		p.metrics = metrics.NewNopCollector()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.feed == nil {
		p.feed = feed.NewHub(logger)
	}
	if p.store == nil {
		p.store = snapshot.NewMemoryStore()
	}
	if p.sink == nil {
		p.sink = tracker.NewLogSink(logger)
	}

	p.points = timeseries.New(
		timeseries.WithCapacity(cfg.TimeSeries.Capacity),
		timeseries.WithKindCapacity(monitoring.KindPerf, cfg.TimeSeries.PerfCapacity),
		timeseries.WithRetention(cfg.TimeSeries.Retention),
		timeseries.WithClock(p.now),
		timeseries.WithOnChange(func(size int) {
			p.metrics.SetTimeSeriesSize(size)
			p.notify()
		}),
	)
	p.stats = aggregator.New(aggregator.WithClock(p.now), aggregator.WithOnChange(p.notify))
	p.impact = aggregator.NewImpactTracker(p.notify)
	p.alerts = alertstate.New(logger,
		alertstate.WithHistoryLimit(cfg.AlertHistoryLimit),
		alertstate.WithClock(p.now),
		alertstate.WithOnChange(p.metrics.SetActiveAlerts),
	)

	dispatcher, err := alerting.New(cfg.Alerting, cfg.Rules, p.feed, p.metrics, logger,
		alerting.WithOnAllFailed(p.deliveryFailed))
	if err != nil {
		return nil, err
	}
	p.dispatcher = dispatcher

	p.evaluator = alerteval.New(cfg.Evaluator, p.stats, p.points, p.alerts, p.dispatcher, logger,
		alerteval.WithClock(p.now), alerteval.WithMetrics(p.metrics))

	p.sessions = perf.NewSessions(perf.WithRotation(cfg.Perf.SessionRotation), perf.WithSessionClock(p.now))
	p.tracker = tracker.New(p.stats, p.impact, p.points, p.sink, logger,
		tracker.WithSessions(p.sessions),
		tracker.WithMetrics(p.metrics),
		tracker.WithThresholds(cfg.Evaluator.Thresholds),
		tracker.WithClock(p.now),
	)

	sources := deps.Sources
	if sources == nil {
		sources = platformSources(cfg.Perf)
	}
	p.collector = perf.NewCollector(p.points, logger,
		perf.WithSources(sources...),
		perf.WithBeaconSource(perf.NewBeaconSource(cfg.Perf.BeaconQueue)),
		perf.WithSessions(p.sessions),
		perf.WithAdvisor(p.tracker),
		perf.WithObserver(p.tracker.ObserveMetric),
		perf.WithInterval(cfg.Perf.Interval),
		perf.WithClock(p.now),
	)

	lang := cfg.Language
	if lang == language.Und {
		lang = language.Russian
	}
	p.analyzer = analytics.New(p.stats, p.impact, p.points, analytics.WithClock(p.now), analytics.WithLanguage(lang))

	p.persister = snapshot.NewPersister(p.store, p.capture, logger,
		snapshot.WithMinInterval(cfg.SnapshotInterval), snapshot.WithClock(p.now))
	return p, nil
}

func platformSources(cfg PerfConfig) []perf.MetricSource {
	var out []perf.MetricSource
	if cfg.HostMemory {
		out = append(out, perf.NewHostMemorySource())
	}
	if cfg.RuntimeMemory {
		out = append(out, perf.NewRuntimeMemorySource())
	}
	return out
}

func (p *Pipeline) notify() {
	if p.persister != nil {
		p.persister.Notify()
	}
}

func (p *Pipeline) deliveryFailed(alert monitoring.AlertEvent, report alerting.Report) {
	failures := make(map[string]string, len(report.Results))
	for _, r := range report.Results {
		if r.Err != nil {
			failures[string(r.Channel)] = r.Err.Error()
		}
	}
	p.feed.Publish(feed.Event{
		Type: feed.EventDeliveryFailed,
		Payload: map[string]any{
			"alertId":  alert.ID,
			"type":     string(alert.Type),
			"severity": string(alert.Severity),
			"title":    alert.Title,
			"failures": failures,
		},
		Timestamp: p.now(),
	})
}

func (p *Pipeline) capture() snapshot.Snapshot {
	return snapshot.Snapshot{
		TimeSeries:      p.points.Snapshot(),
		UserImpact:      p.impact.Records(),
		ResolutionTimes: p.stats.ResolutionSamples(),
	}
}

// Restore загружает сохранённое состояние. Отсутствующий или повреждённый
// снапшот даёт пустое состояние.
func (p *Pipeline) Restore(ctx context.Context) {
	s := snapshot.LoadOrEmpty(ctx, p.store, p.logger)
	p.points.Restore(s.TimeSeries)
	p.impact.Restore(s.UserImpact)
	p.stats.RestoreResolutionSamples(s.ResolutionTimes)
}

// Start восстанавливает состояние и запускает фоновые задачи.
// Задачи работают до Stop или отмены ctx.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}

	p.Restore(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.started = true

	p.spawn(runCtx, p.dispatcher.Run)
	p.spawn(runCtx, p.evaluator.Run)
	p.spawn(runCtx, p.collector.Run)
	p.spawn(runCtx, p.persister.Run)
	p.spawn(runCtx, p.feed.Run)
	p.spawn(runCtx, p.prune)
	if r, ok := p.sink.(interface{ Run(context.Context) }); ok {
		p.spawn(runCtx, r.Run)
	}
	if r, ok := p.metrics.(interface{ RunPusher(context.Context) }); ok {
		p.spawn(runCtx, r.RunPusher)
	}

	p.logger.Info("конвейер запущен",
		"channels", len(p.dispatcher.Channels()),
		"points", p.points.Size(),
	)
	return nil
}

func (p *Pipeline) spawn(ctx context.Context, run func(context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		run(ctx)
	}()
}

func (p *Pipeline) prune(ctx context.Context) {
	interval := p.cfg.TimeSeries.PruneInterval
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	retention := p.cfg.TimeSeries.Retention
	if retention <= 0 {
		retention = timeseries.DefaultRetention
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.points.PruneOlderThan(p.now().Add(-retention)); n > 0 {
				p.logger.Debug("удалены устаревшие точки", "count", n)
			}
		}
	}
}

// Stop останавливает фоновые задачи, сохраняет снапшот и закрывает
// внешнюю систему захвата. Ожидание задач ограничено ctx.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("фоновые задачи не завершились вовремя", "error", ctx.Err())
	}

	var errs []error
	if err := p.persister.Flush(ctx); err != nil {
		p.logger.Error("не удалось сохранить снапшот при остановке", "error", err)
		errs = append(errs, err)
	}
	if err := p.tracker.Close(ctx); err != nil {
		p.logger.Error("не удалось закрыть систему захвата", "error", err)
		errs = append(errs, err)
	}
	if err := p.store.Close(); err != nil {
		errs = append(errs, err)
	}
	p.logger.Info("конвейер остановлен")
	return errors.Join(errs...)
}

// ResolveError помечает сигнатуру устранённой. Первое устранение
// записывает в ряд точку с resolved=true и нулевым значением.
func (p *Pipeline) ResolveError(signature string) (monitoring.ErrorStats, bool) {
	st, first, ok := p.stats.Resolve(signature)
	if !ok {
		return monitoring.ErrorStats{}, false
	}
	if first {
		p.points.AddPoint(monitoring.TimeSeriesPoint{
			Timestamp: p.now(),
			Value:     0,
			Category:  string(st.Category),
			Metadata: map[string]any{
				monitoring.MetaKind:      monitoring.KindError,
				monitoring.MetaSignature: st.Signature,
				monitoring.MetaResolved:  true,
			},
		})
		p.logger.Info("ошибка отмечена устранённой", "signature", st.Signature)
	}
	return st, true
}

// ResolveAlert устраняет активный алерт.
func (p *Pipeline) ResolveAlert(id string) (monitoring.AlertEvent, bool) {
	return p.alerts.Resolve(id)
}

func (p *Pipeline) Tracker() *tracker.Tracker         { return p.tracker }
func (p *Pipeline) Collector() *perf.Collector        { return p.collector }
func (p *Pipeline) Analyzer() *analytics.Analyzer     { return p.analyzer }
func (p *Pipeline) Alerts() *alertstate.Store         { return p.alerts }
func (p *Pipeline) Stats() *aggregator.Aggregator     { return p.stats }
func (p *Pipeline) Impact() *aggregator.ImpactTracker { return p.impact }
func (p *Pipeline) Points() *timeseries.Store         { return p.points }
func (p *Pipeline) Feed() *feed.Hub                   { return p.feed }
func (p *Pipeline) Evaluator() *alerteval.Evaluator   { return p.evaluator }
func (p *Pipeline) Dispatcher() *alerting.Dispatcher  { return p.dispatcher }
func (p *Pipeline) Metrics() metrics.Collector        { return p.metrics }
