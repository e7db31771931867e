package monitoring

import (
	"fmt"
	"time"
)

// TrendDirection — результат сравнения двух окон.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendStable    TrendDirection = "stable"
	TrendWorsening TrendDirection = "worsening"
)

// Period — длина окна анализа трендов.
type Period string

const (
	PeriodDay   Period = "1d"
	PeriodWeek  Period = "7d"
	PeriodMonth Period = "30d"
)

// ErrUnknownPeriod возвращается для периода вне 1d/7d/30d.
var ErrUnknownPeriod = fmt.Errorf("период должен быть одним из %s, %s, %s", PeriodDay, PeriodWeek, PeriodMonth)

// Duration возвращает длину окна.
func (p Period) Duration() (time.Duration, error) {
	switch p {
	case PeriodDay:
		return 24 * time.Hour, nil
	case PeriodWeek:
		return 7 * 24 * time.Hour, nil
	case PeriodMonth:
		return 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPeriod, string(p))
	}
}

// TrendAnalysis — сравнение текущего окна с предыдущим той же длины.
type TrendAnalysis struct {
	Period           Period         `json:"period"`
	StartDate        time.Time      `json:"startDate"`
	EndDate          time.Time      `json:"endDate"`
	CurrentTotal     float64        `json:"currentTotal"`
	PreviousTotal    float64        `json:"previousTotal"`
	ErrorChange      float64        `json:"errorChange"`
	CriticalChange   float64        `json:"criticalChange"`
	ResolutionChange float64        `json:"resolutionChange"`
	Trend            TrendDirection `json:"trend"`
	Insights         []string       `json:"insights"`
	Recommendations  []string       `json:"recommendations"`
}

// CategoryBreakdown — строка топа категорий.
type CategoryBreakdown struct {
	Category   Category   `json:"category"`
	Count      int        `json:"count"`
	Percentage float64    `json:"percentage"`
	Trend      StatsTrend `json:"trend"`
	Impact     string     `json:"impact"`
}

// DailyPoint — количество ошибок за сутки (UTC).
type DailyPoint struct {
	Date     string `json:"date"`
	Count    int    `json:"count"`
	Critical int    `json:"critical"`
	Resolved int    `json:"resolved"`
}

// ResolutionMetrics — статистика времени устранения, минуты.
type ResolutionMetrics struct {
	AverageMinutes float64 `json:"averageMinutes"`
	FastestMinutes float64 `json:"fastestMinutes"`
	SlowestMinutes float64 `json:"slowestMinutes"`
	ResolvedRate   float64 `json:"resolvedRate"`
	Samples        int     `json:"samples"`
}

// ErrorAnalytics — агрегированный срез для дашборда.
type ErrorAnalytics struct {
	GeneratedAt          time.Time           `json:"generatedAt"`
	TotalErrors          int                 `json:"totalErrors"`
	UniqueErrors         int                 `json:"uniqueErrors"`
	CriticalErrors       int                 `json:"criticalErrors"`
	ResolvedErrors       int                 `json:"resolvedErrors"`
	ErrorRate            float64             `json:"errorRate"`
	MeanTimeToResolution float64             `json:"meanTimeToResolution"`
	UserImpactScore      float64             `json:"userImpactScore"`
	TopCategories        []CategoryBreakdown `json:"topCategories"`
	DailyTrend           []DailyPoint        `json:"dailyTrend"`
	UserImpact           []UserImpactRecord  `json:"userImpact"`
	Resolution           ResolutionMetrics   `json:"resolution"`
}
