// Package tracker — точка захвата ошибок, действий пользователя и проблем
// производительности. Все методы Tracker не возвращают ошибок и не паникуют:
// сбои внешней системы захвата и паники внутри обработки только логируются.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/Kargones/errwatch/internal/classifier"
	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/perf"
	"github.com/Kargones/errwatch/internal/pkg/logging"
	"github.com/Kargones/errwatch/internal/pkg/metrics"
)

// Пороги загрузки памяти, при которых фиксируется ошибка категории memory.
const (
	MemoryCriticalPercent = 90
	MemoryHighPercent     = 70
)

// UnknownErrorMessage подставляется вместо пустого текста ошибки.
const UnknownErrorMessage = "Unknown error"

// maxValidationValue — сколько символов значения поля попадает в событие.
const maxValidationValue = 100

// StatsRecorder учитывает события по сигнатурам.
type StatsRecorder interface {
	RecordEvent(message string, c monitoring.Category, s monitoring.Severity, ctx monitoring.ErrorContext) monitoring.ErrorStats
	CategoryTotal(c monitoring.Category) int
}

// ImpactRecorder учитывает влияние ошибок на пользователей.
type ImpactRecorder interface {
	Update(userID string, affectedCount int, s monitoring.Severity, at time.Time)
}

// PointWriter принимает точки временного ряда.
type PointWriter interface {
	AddPoint(p monitoring.TimeSeriesPoint)
}

// SessionRecorder учитывает ошибку в сессии браузера.
type SessionRecorder interface {
	RecordError(client string)
}

// Tracker принимает события и раскладывает их по агрегатору, временному
// ряду, влиянию на пользователей и внешней системе захвата.
type Tracker struct {
	stats      StatsRecorder
	impact     ImpactRecorder
	points     PointWriter
	sink       Sink
	sessions   SessionRecorder
	metrics    metrics.Collector
	logger     logging.Logger
	thresholds monitoring.Thresholds
	now        func() time.Time
	newID      func() string
}

// Option настраивает Tracker.
type Option func(*Tracker)

// WithSessions подключает реестр сессий браузера.
func WithSessions(s SessionRecorder) Option {
	return func(t *Tracker) { t.sessions = s }
}

// WithMetrics подключает метрики Prometheus.
func WithMetrics(m metrics.Collector) Option {
	return func(t *Tracker) {
		if m != nil {
			t.metrics = m
		}
	}
}

// WithThresholds задаёт пороги быстрой проверки при захвате.
func WithThresholds(th monitoring.Thresholds) Option {
	return func(t *Tracker) { t.thresholds = th }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New создаёт Tracker. При sink == nil события пишутся в лог.
func New(stats StatsRecorder, impact ImpactRecorder, points PointWriter, sink Sink, logger logging.Logger, opts ...Option) *Tracker {
	log := logger.With("component", "tracker")
	if sink == nil {
		sink = NewLogSink(log)
	}
	t := &Tracker{
		stats:      stats,
		impact:     impact,
		points:     points,
		sink:       sink,
		metrics:    metrics.NewNopCollector(),
		logger:     log,
		thresholds: monitoring.DefaultThresholds(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tracker) recoverPanic(op string) {
	if r := recover(); r != nil {
		t.logger.Error("паника при захвате события", "op", op, "panic", fmt.Sprint(r))
	}
}

// TrackError учитывает ошибку err. Пустая ошибка игнорируется.
func (t *Tracker) TrackError(ctx context.Context, err error, ectx monitoring.ErrorContext) {
	defer t.recoverPanic("TrackError")
	if err == nil {
		return
	}
	t.track(ctx, monitoring.ErrorEvent{Message: err.Error(), Stack: stackOf(err), Context: ectx})
}

// TrackEvent учитывает готовое событие, например присланное браузером.
// Возвращает обновлённую статистику сигнатуры.
func (t *Tracker) TrackEvent(ctx context.Context, ev monitoring.ErrorEvent) (stats monitoring.ErrorStats) {
	defer t.recoverPanic("TrackEvent")
	return t.track(ctx, ev)
}

func (t *Tracker) track(ctx context.Context, ev monitoring.ErrorEvent) monitoring.ErrorStats {
	msg := ev.Message
	if msg == "" {
		msg = UnknownErrorMessage
	}
	c, s := classifier.Classify(msg, ev.Context)
	stats := t.stats.RecordEvent(msg, c, s, ev.Context)

	now := t.now()
	t.points.AddPoint(monitoring.TimeSeriesPoint{
		Timestamp: now,
		Value:     1,
		Category:  string(c),
		Metadata: map[string]any{
			monitoring.MetaKind:      monitoring.KindError,
			monitoring.MetaSeverity:  string(s),
			monitoring.MetaSignature: stats.Signature,
		},
	})
	if ev.Context.UserID != "" {
		t.impact.Update(ev.Context.UserID, len(stats.AffectedUsers), s, now)
	}
	if t.sessions != nil && ev.Context.SessionID != "" {
		t.sessions.RecordError(ev.Context.SessionID)
	}
	t.metrics.RecordEvent(string(c), string(s))

	level := LevelFor(s)
	t.sink.AddBreadcrumb(Breadcrumb{
		Message:   msg,
		Category:  "error." + string(c),
		Level:     level,
		Data:      map[string]any{"severity": string(s), "source": ev.Context.Source},
		Timestamp: now,
	})

	at := ev.Timestamp
	if at.IsZero() {
		at = now
	}
	if err := t.sink.CaptureException(ctx, Exception{
		EventID:   t.newID(),
		Message:   msg,
		Stack:     ev.Stack,
		Category:  c,
		Severity:  s,
		Level:     level,
		Context:   ev.Context,
		Timestamp: at,
	}); err != nil {
		t.logger.Warn("не удалось передать ошибку во внешнюю систему", "error", err)
	}

	t.checkThreshold(ctx, c, s)
	return stats
}

// checkThreshold сообщает в систему захвата о достижении порога категории.
// Полноценные алерты строит оценщик, здесь только быстрый сигнал.
func (t *Tracker) checkThreshold(ctx context.Context, c monitoring.Category, s monitoring.Severity) {
	limit := t.thresholds.CountFor(s)
	if limit <= 0 {
		return
	}
	total := t.stats.CategoryTotal(c)
	if total < limit {
		return
	}
	level := LevelError
	if s == monitoring.SeverityCritical {
		level = LevelFatal
	}
	t.message(ctx, fmt.Sprintf("Достигнут порог ошибок категории %s: %d (порог %d)", c, total, limit), level,
		map[string]any{"category": string(c), "severity": string(s), "count": total, "threshold": limit})
}

// TrackMessage передаёт текстовое событие во внешнюю систему.
func (t *Tracker) TrackMessage(ctx context.Context, text string, level Level, extra map[string]any) {
	defer t.recoverPanic("TrackMessage")
	t.message(ctx, text, level, extra)
}

func (t *Tracker) message(ctx context.Context, text string, level Level, extra map[string]any) {
	if err := t.sink.CaptureMessage(ctx, Message{
		EventID:   t.newID(),
		Text:      text,
		Level:     level,
		Extra:     extra,
		Timestamp: t.now(),
	}); err != nil {
		t.logger.Warn("не удалось передать сообщение во внешнюю систему", "error", err)
	}
}

// Advise передаёт предупреждение сборщика производительности как сообщение
// уровня warning.
func (t *Tracker) Advise(ctx context.Context, message string, extra map[string]any) {
	defer t.recoverPanic("Advise")
	t.logger.Warn(message)
	t.message(ctx, message, LevelWarning, extra)
}

// TrackUserAction записывает результат действия пользователя. Неудачи
// учитываются проверкой доли ошибок.
func (t *Tracker) TrackUserAction(ctx context.Context, action string, success bool, extra map[string]any) {
	defer t.recoverPanic("TrackUserAction")
	now := t.now()
	meta := cloneExtra(extra)
	meta[monitoring.MetaKind] = monitoring.KindAction
	meta[monitoring.MetaUnit] = monitoring.UnitCount
	meta[monitoring.MetaName] = action
	meta[monitoring.MetaSuccess] = success
	t.points.AddPoint(monitoring.TimeSeriesPoint{
		Timestamp: now,
		Value:     1,
		Category:  monitoring.MetricUserAction,
		Metadata:  meta,
	})

	level := LevelInfo
	if !success {
		level = LevelWarning
	}
	t.sink.AddBreadcrumb(Breadcrumb{Message: action, Category: "user.action", Level: level,
		Data: map[string]any{"success": success}, Timestamp: now})

	if !success {
		data := cloneExtra(extra)
		data["action"] = action
		t.message(ctx, "Не удалось выполнить действие пользователя: "+action, LevelWarning, data)
	}
}

// TrackPerformanceIssue записывает измерение и сообщает о деградации,
// когда value превышает threshold.
func (t *Tracker) TrackPerformanceIssue(ctx context.Context, metric string, value, threshold float64, extra map[string]any) {
	defer t.recoverPanic("TrackPerformanceIssue")
	tags := cloneExtra(extra)
	tags["metric"] = metric
	tags["threshold"] = threshold
	t.points.AddPoint(perf.Metric{
		Name:      monitoring.MetricPerfIssue,
		Value:     value,
		Unit:      monitoring.UnitMillis,
		Timestamp: t.now(),
		Tags:      tags,
	}.Point())

	if value > threshold {
		t.message(ctx, fmt.Sprintf("Проблема производительности: %s = %g (порог %g)", metric, value, threshold),
			LevelWarning, tags)
	}
}

// TrackAPIError учитывает неудачный вызов API. Категория и серьёзность
// выводятся из HTTP-статуса.
func (t *Tracker) TrackAPIError(ctx context.Context, endpoint, method string, status int, responseTimeMs float64, cause error) {
	defer t.recoverPanic("TrackAPIError")
	c, s := apiClass(status)
	extra := map[string]any{
		"endpoint": endpoint,
		"method":   method,
		"status":   status,
	}
	if responseTimeMs > 0 {
		extra["responseTime"] = responseTimeMs
	}
	if cause != nil {
		extra["cause"] = cause.Error()
	}
	t.track(ctx, monitoring.ErrorEvent{
		Message: fmt.Sprintf("API Error: %s %s - %d", method, endpoint, status),
		Context: monitoring.ErrorContext{Category: c, Severity: s, Source: "api_call", Extra: extra},
	})
}

func apiClass(status int) (monitoring.Category, monitoring.Severity) {
	switch {
	case status >= 500:
		return monitoring.CategoryAPI, monitoring.SeverityHigh
	case status >= 400:
		return monitoring.CategoryValidation, monitoring.SeverityMedium
	default:
		return monitoring.CategoryNetwork, monitoring.SeverityLow
	}
}

// TrackValidationError учитывает ошибку проверки поля формы.
func (t *Tracker) TrackValidationError(ctx context.Context, field string, value any, rule string, extra map[string]any) {
	defer t.recoverPanic("TrackValidationError")
	data := cloneExtra(extra)
	data["field"] = field
	data["rule"] = rule
	data["value"] = truncate(fmt.Sprint(value), maxValidationValue)
	t.track(ctx, monitoring.ErrorEvent{
		Message: fmt.Sprintf("Validation error: %s - %s", field, rule),
		Context: monitoring.ErrorContext{
			Category:   monitoring.CategoryValidation,
			Severity:   monitoring.SeverityLow,
			Source:     monitoring.SourceUserInput,
			UserAction: monitoring.UserActionFormSubmission,
			Extra:      data,
		},
	})
}

// TrackMemoryUsage фиксирует ошибку категории memory, если загрузка памяти
// превысила MemoryHighPercent.
func (t *Tracker) TrackMemoryUsage(ctx context.Context, percent float64, extra map[string]any) {
	defer t.recoverPanic("TrackMemoryUsage")
	var (
		msg string
		sev monitoring.Severity
	)
	switch {
	case percent > MemoryCriticalPercent:
		msg, sev = "Critical memory usage", monitoring.SeverityCritical
	case percent > MemoryHighPercent:
		msg, sev = "High memory usage", monitoring.SeverityHigh
	default:
		return
	}
	data := cloneExtra(extra)
	data["usagePercent"] = percent
	t.track(ctx, monitoring.ErrorEvent{
		Message: msg,
		Context: monitoring.ErrorContext{
			Category: monitoring.CategoryMemory,
			Severity: sev,
			Source:   "system",
			Extra:    data,
		},
	})
}

// ObserveMetric проверяет загрузку памяти из beacon-ов и runtime.
// Загрузка памяти хоста сюда не относится: её проверяет оценщик алертов.
func (t *Tracker) ObserveMetric(ctx context.Context, m perf.Metric) {
	if m.Name != monitoring.MetricMemoryUsage {
		return
	}
	if src, _ := m.Tags["source"].(string); src == perf.SourceHost {
		return
	}
	extra := map[string]any{"source": m.Tags["source"]}
	if m.SessionID != "" {
		extra["sessionId"] = m.SessionID
	}
	t.TrackMemoryUsage(ctx, m.Value, extra)
}

// Close закрывает внешнюю систему захвата.
func (t *Tracker) Close(ctx context.Context) error {
	return t.sink.Close(ctx)
}

// stackOf возвращает подробное представление ошибки, если оно отличается
// от текста, например у ошибок с цепочкой причин.
func stackOf(err error) string {
	var chain []string
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		chain = append(chain, e.Error())
	}
	if len(chain) == 0 {
		return ""
	}
	return fmt.Sprintf("%s\ncaused by: %s", err.Error(), chain[len(chain)-1])
}

func cloneExtra(extra map[string]any) map[string]any {
	out := make(map[string]any, len(extra)+4)
	maps.Copy(out, extra)
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
