// Package analytics сравнивает окна временного ряда ошибок, строит сводку
// для дашборда и текстовый отчёт.
package analytics

import (
	"cmp"
	"iter"
	"math"
	"slices"
	"time"

	"golang.org/x/text/language"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/timeseries"
)

// Константы анализа.
const (
	// TrendBand — граница изменения в процентах между stable и improving/worsening.
	TrendBand = 10.0

	topCategories    = 5
	topUsers         = 20
	dailyTrendDays   = 7
	errorRateWindow  = 24 * time.Hour
	criticalUsers    = 10
	highImpactUsers  = 20
	mediumImpactUser = 5
)

// StatsSource — агрегаты по сигнатурам и времена устранения.
type StatsSource interface {
	Stats() []monitoring.ErrorStats
	ResolutionSamples() []float64
}

// ImpactSource — записи влияния на пользователей.
type ImpactSource interface {
	Top(n int) []monitoring.UserImpactRecord
}

// PointSource — временной ряд.
type PointSource interface {
	Query(f timeseries.Filter) iter.Seq[monitoring.TimeSeriesPoint]
}

// Analyzer вычисляет тренды и сводку по требованию. Собственного состояния
// не хранит.
type Analyzer struct {
	stats  StatsSource
	impact ImpactSource
	points PointSource
	now    func() time.Time
	lang   language.Tag
}

// Option настраивает Analyzer.
type Option func(*Analyzer)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithLanguage задаёт язык форматирования чисел в отчёте.
func WithLanguage(tag language.Tag) Option {
	return func(a *Analyzer) { a.lang = tag }
}

// New создаёт Analyzer.
func New(stats StatsSource, impact ImpactSource, points PointSource, opts ...Option) *Analyzer {
	a := &Analyzer{stats: stats, impact: impact, points: points, now: time.Now, lang: language.Russian}
	for _, o := range opts {
		o(a)
	}
	return a
}

type window struct {
	total    float64
	critical int
	resolved int
	byCat    map[string]float64
}

func (a *Analyzer) collect(start, end time.Time, endInclusive bool) window {
	w := window{byCat: make(map[string]float64)}
	for p := range a.points.Query(timeseries.Filter{Kind: monitoring.KindError, Start: start, End: end}) {
		if !endInclusive && !p.Timestamp.Before(end) {
			continue
		}
		w.total += p.Value
		w.byCat[p.Category] += p.Value
		if p.Severity() == monitoring.SeverityCritical {
			w.critical++
		}
		if p.Bool(monitoring.MetaResolved) {
			w.resolved++
		}
	}
	return w
}

// Analyze сравнивает окно [now-period, now] с предыдущим окном той же длины.
func (a *Analyzer) Analyze(period monitoring.Period) (monitoring.TrendAnalysis, error) {
	d, err := period.Duration()
	if err != nil {
		return monitoring.TrendAnalysis{}, err
	}
	now := a.now()
	start := now.Add(-d)

	cur := a.collect(start, now, true)
	prev := a.collect(start.Add(-d), start, false)

	change := percentChange(cur.total, prev.total)
	trend := classify(change)

	facts := Facts{Trend: trend, Change: change, CriticalCount: cur.critical}
	facts.TopCategory, facts.TopCategoryTotal = topCategory(cur.byCat)
	insights := Insights(facts)

	texts := make([]string, len(insights))
	for i, in := range insights {
		texts[i] = in.Text
	}

	return monitoring.TrendAnalysis{
		Period:           period,
		StartDate:        start,
		EndDate:          now,
		CurrentTotal:     cur.total,
		PreviousTotal:    prev.total,
		ErrorChange:      math.Round(change*100) / 100,
		CriticalChange:   math.Round(percentChange(float64(cur.critical), float64(prev.critical))),
		ResolutionChange: math.Round(percentChange(float64(cur.resolved), float64(prev.resolved))),
		Trend:            trend,
		Insights:         texts,
		Recommendations:  Recommendations(insights),
	}, nil
}

// percentChange возвращает изменение в процентах; при нулевой базе 100,
// если текущее значение положительно, иначе 0.
func percentChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / previous * 100
}

func classify(change float64) monitoring.TrendDirection {
	switch {
	case change < -TrendBand:
		return monitoring.TrendImproving
	case change > TrendBand:
		return monitoring.TrendWorsening
	default:
		return monitoring.TrendStable
	}
}

func topCategory(byCat map[string]float64) (string, float64) {
	var name string
	var best float64
	for c, v := range byCat {
		if v > best || (v == best && name != "" && c < name) {
			name, best = c, v
		}
	}
	return name, best
}

// Analytics строит сводку для дашборда.
func (a *Analyzer) Analytics() monitoring.ErrorAnalytics {
	now := a.now()
	stats := a.stats.Stats()
	samples := a.stats.ResolutionSamples()

	out := monitoring.ErrorAnalytics{
		GeneratedAt:  now,
		UniqueErrors: len(stats),
		UserImpact:   a.impact.Top(topUsers),
	}

	var totalUsers, critUsers int
	for _, s := range stats {
		out.TotalErrors += s.Count
		if s.Trend == monitoring.StatsIncreasing || len(s.AffectedUsers) > criticalUsers {
			out.CriticalErrors++
		}
		if s.Resolved {
			out.ResolvedErrors++
		}
		totalUsers += len(s.AffectedUsers)
		if s.Trend == monitoring.StatsIncreasing {
			critUsers += len(s.AffectedUsers)
		}
	}

	out.UserImpactScore = math.Min(100, float64(critUsers*10+totalUsers*2))
	out.TopCategories = topCategoryBreakdown(stats, out.TotalErrors)
	out.ErrorRate = a.errorRate(now)
	out.DailyTrend = a.dailyTrend(now)
	out.Resolution = resolutionMetrics(samples, out.TotalErrors)
	out.MeanTimeToResolution = out.Resolution.AverageMinutes
	if out.UserImpact == nil {
		out.UserImpact = []monitoring.UserImpactRecord{}
	}
	return out
}

// errorRate возвращает среднее число ошибок в час за последние сутки.
func (a *Analyzer) errorRate(now time.Time) float64 {
	total := timeseries.Sum(a.points.Query(timeseries.Filter{
		Kind:  monitoring.KindError,
		Start: now.Add(-errorRateWindow),
		End:   now,
	}))
	return math.Round(total/errorRateWindow.Hours()*100) / 100
}

func (a *Analyzer) dailyTrend(now time.Time) []monitoring.DailyPoint {
	today := now.UTC().Truncate(24 * time.Hour)
	first := today.AddDate(0, 0, -(dailyTrendDays - 1))

	days := make([]monitoring.DailyPoint, dailyTrendDays)
	for i := range days {
		days[i].Date = first.AddDate(0, 0, i).Format(time.DateOnly)
	}
	for p := range a.points.Query(timeseries.Filter{Kind: monitoring.KindError, Start: first, End: now}) {
		i := int(p.Timestamp.UTC().Sub(first) / (24 * time.Hour))
		if i < 0 || i >= dailyTrendDays {
			continue
		}
		days[i].Count += int(p.Value)
		if p.Severity() == monitoring.SeverityCritical {
			days[i].Critical += int(p.Value)
		}
		if p.Bool(monitoring.MetaResolved) {
			days[i].Resolved++
		}
	}
	return days
}

func topCategoryBreakdown(stats []monitoring.ErrorStats, total int) []monitoring.CategoryBreakdown {
	byCat := make(map[monitoring.Category]*monitoring.CategoryBreakdown)
	for _, s := range stats {
		b, ok := byCat[s.Category]
		if !ok {
			b = &monitoring.CategoryBreakdown{Category: s.Category, Trend: monitoring.StatsStable, Impact: "low"}
			byCat[s.Category] = b
		}
		b.Count += s.Count
		if s.Trend == monitoring.StatsIncreasing {
			b.Trend = monitoring.StatsIncreasing
		}
		switch users := len(s.AffectedUsers); {
		case users > highImpactUsers:
			b.Impact = "high"
		case users > mediumImpactUser && b.Impact != "high":
			b.Impact = "medium"
		}
	}

	out := make([]monitoring.CategoryBreakdown, 0, len(byCat))
	for _, b := range byCat {
		if total > 0 {
			b.Percentage = math.Round(float64(b.Count)/float64(total)*10000) / 100
		}
		out = append(out, *b)
	}
	slices.SortFunc(out, func(x, y monitoring.CategoryBreakdown) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return cmp.Compare(x.Category, y.Category)
	})
	if len(out) > topCategories {
		out = out[:topCategories]
	}
	return out
}

func resolutionMetrics(samples []float64, totalErrors int) monitoring.ResolutionMetrics {
	if len(samples) == 0 {
		return monitoring.ResolutionMetrics{}
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	m := monitoring.ResolutionMetrics{
		AverageMinutes: math.Round(sum / float64(len(samples))),
		FastestMinutes: slices.Min(samples),
		SlowestMinutes: slices.Max(samples),
		Samples:        len(samples),
	}
	if totalErrors > 0 {
		m.ResolvedRate = math.Round(float64(len(samples))/float64(totalErrors)*10000) / 100
	}
	return m
}
