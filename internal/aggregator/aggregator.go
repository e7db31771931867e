// Package aggregator ведёт статистику ошибок по сигнатурам и влияние ошибок на пользователей.
package aggregator

import (
	"cmp"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

// increasingAfter — число событий сигнатуры, после которого тренд считается растущим.
const increasingAfter = 10

// MaxResolutionSamples — сколько последних времён устранения хранится для MTTR.
const MaxResolutionSamples = 100

type record struct {
	stats       monitoring.ErrorStats
	users       map[string]struct{}
	sessions    map[string]struct{}
	recoverySum float64
	recoveries  int
}

func (r *record) view() monitoring.ErrorStats {
	s := r.stats
	s.AffectedUsers = slices.Sorted(maps.Keys(r.users))
	s.AffectedSessions = slices.Sorted(maps.Keys(r.sessions))
	return s
}

// Aggregator хранит по одной записи ErrorStats на сигнатуру.
// Все изменения выполняются под одной блокировкой.
type Aggregator struct {
	mu          sync.Mutex
	records     map[string]*record
	resolutions []float64
	now         func() time.Time
	onChange    func()
}

// Option настраивает Aggregator.
type Option func(*Aggregator)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithOnChange вызывается после изменения выборки времён устранения.
func WithOnChange(fn func()) Option {
	return func(a *Aggregator) { a.onChange = fn }
}

// New создаёт пустой Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{records: make(map[string]*record), now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RecordEvent учитывает событие и возвращает обновлённую запись сигнатуры.
func (a *Aggregator) RecordEvent(message string, c monitoring.Category, s monitoring.Severity, ctx monitoring.ErrorContext) monitoring.ErrorStats {
	sig := monitoring.Signature(c, message)

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	r, ok := a.records[sig]
	if !ok {
		r = &record{
			stats: monitoring.ErrorStats{
				Signature:       sig,
				Category:        c,
				Message:         message,
				Severity:        s,
				FirstOccurrence: now,
				Trend:           monitoring.StatsStable,
			},
			users:    make(map[string]struct{}),
			sessions: make(map[string]struct{}),
		}
		a.records[sig] = r
	}

	r.stats.Count++
	if now.After(r.stats.LastOccurrence) {
		r.stats.LastOccurrence = now
	}
	r.stats.Severity = monitoring.MaxSeverity(r.stats.Severity, s)
	// повтор после устранения считается регрессией
	r.stats.Resolved = false
	if ctx.UserID != "" {
		r.users[ctx.UserID] = struct{}{}
	}
	if ctx.SessionID != "" {
		r.sessions[ctx.SessionID] = struct{}{}
	}
	if r.stats.Count > increasingAfter {
		r.stats.Trend = monitoring.StatsIncreasing
	}

	return r.view()
}

// Get возвращает запись сигнатуры.
func (a *Aggregator) Get(signature string) (monitoring.ErrorStats, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.records[signature]
	if !ok {
		return monitoring.ErrorStats{}, false
	}
	return r.view(), true
}

// Resolve помечает сигнатуру устранённой и записывает время устранения
// от первого появления. Запись не удаляется. first истинно только для
// вызова, который снял флаг: повторные и конкурентные вызовы получают false.
func (a *Aggregator) Resolve(signature string) (st monitoring.ErrorStats, first, ok bool) {
	a.mu.Lock()
	r, ok := a.records[signature]
	if !ok {
		a.mu.Unlock()
		return monitoring.ErrorStats{}, false, false
	}
	if r.stats.Resolved {
		view := r.view()
		a.mu.Unlock()
		return view, false, true
	}

	minutes := a.now().Sub(r.stats.FirstOccurrence).Minutes()
	r.stats.Resolved = true
	r.recoverySum += minutes
	r.recoveries++
	r.stats.AverageRecoveryTimeMinutes = r.recoverySum / float64(r.recoveries)

	a.resolutions = append(a.resolutions, minutes)
	if over := len(a.resolutions) - MaxResolutionSamples; over > 0 {
		a.resolutions = slices.Delete(a.resolutions, 0, over)
	}
	view := r.view()
	a.mu.Unlock()

	if a.onChange != nil {
		a.onChange()
	}
	return view, true, true
}

// Stats возвращает все записи, самые частые первыми.
func (a *Aggregator) Stats() []monitoring.ErrorStats {
	return a.filter(func(*record) bool { return true })
}

// ByCategory возвращает записи одной категории.
func (a *Aggregator) ByCategory(c monitoring.Category) []monitoring.ErrorStats {
	return a.filter(func(r *record) bool { return r.stats.Category == c })
}

// Critical возвращает записи с растущим трендом.
func (a *Aggregator) Critical() []monitoring.ErrorStats {
	return a.filter(func(r *record) bool { return r.stats.Trend == monitoring.StatsIncreasing })
}

func (a *Aggregator) filter(keep func(*record) bool) []monitoring.ErrorStats {
	a.mu.Lock()
	out := make([]monitoring.ErrorStats, 0, len(a.records))
	for _, r := range a.records {
		if keep(r) {
			out = append(out, r.view())
		}
	}
	a.mu.Unlock()

	slices.SortFunc(out, func(x, y monitoring.ErrorStats) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return cmp.Compare(x.Signature, y.Signature)
	})
	return out
}

// CategoryTotal суммирует счётчики всех сигнатур категории.
func (a *Aggregator) CategoryTotal(c monitoring.Category) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, r := range a.records {
		if r.stats.Category == c {
			total += r.stats.Count
		}
	}
	return total
}

// ResolutionSamples возвращает последние времена устранения в минутах.
func (a *Aggregator) ResolutionSamples() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.resolutions)
}

// RestoreResolutionSamples загружает сохранённые времена устранения.
func (a *Aggregator) RestoreResolutionSamples(samples []float64) {
	if len(samples) > MaxResolutionSamples {
		samples = samples[len(samples)-MaxResolutionSamples:]
	}
	a.mu.Lock()
	a.resolutions = slices.Clone(samples)
	a.mu.Unlock()
}
