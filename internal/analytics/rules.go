package analytics

import (
	"fmt"
	"math"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

// CriticalInsightCount — число критических точек в окне, после которого
// срабатывает правило critical_count.
const CriticalInsightCount = 5

// Facts — сведения об окне, по которым срабатывают правила.
type Facts struct {
	Trend            monitoring.TrendDirection
	Change           float64
	CriticalCount    int
	TopCategory      string
	TopCategoryTotal float64
}

// Идентификаторы правил выводов.
const (
	InsightWorsening   = "worsening_change"
	InsightImproving   = "improving_change"
	InsightCritical    = "critical_count"
	InsightTopCategory = "top_category"
)

// InsightRule — условие и шаблон вывода.
type InsightRule struct {
	ID   string
	When func(Facts) bool
	Text func(Facts) string
}

// RecommendationRule — рекомендации, выдаваемые при срабатывании вывода Insight.
// Пустой Insight означает рекомендацию, выдаваемую всегда.
type RecommendationRule struct {
	Insight string
	Texts   []string
}

var insightRules = []InsightRule{
	{
		ID:   InsightWorsening,
		When: func(f Facts) bool { return f.Trend == monitoring.TrendWorsening },
		Text: func(f Facts) string {
			return fmt.Sprintf("Рост ошибок на %.1f%% по сравнению с предыдущим периодом", f.Change)
		},
	},
	{
		ID:   InsightImproving,
		When: func(f Facts) bool { return f.Trend == monitoring.TrendImproving },
		Text: func(f Facts) string {
			return fmt.Sprintf("Снижение ошибок на %.1f%%", math.Abs(f.Change))
		},
	},
	{
		ID:   InsightCritical,
		When: func(f Facts) bool { return f.CriticalCount > CriticalInsightCount },
		Text: func(f Facts) string {
			return fmt.Sprintf("Обнаружено много критических ошибок: %d", f.CriticalCount)
		},
	},
	{
		ID:   InsightTopCategory,
		When: func(f Facts) bool { return f.TopCategory != "" },
		Text: func(f Facts) string {
			return fmt.Sprintf("Больше всего ошибок в категории %s: %g", f.TopCategory, f.TopCategoryTotal)
		},
	},
}

var recommendationRules = []RecommendationRule{
	{Insight: InsightWorsening, Texts: []string{
		"Немедленно выяснить причины роста ошибок",
		"Сделать мониторинг подробнее, чтобы выявить закономерности",
	}},
	{Insight: InsightCritical, Texts: []string{
		"В первую очередь устранять критические ошибки",
		"Рассмотреть применение circuit breaker",
	}},
	{Texts: []string{
		"Регулярно просматривать журналы ошибок",
		"Добавить регрессионные тесты, чтобы не допускать новых ошибок",
	}},
}

// InsightRules возвращает копию таблицы правил выводов в порядке применения.
func InsightRules() []InsightRule { return append([]InsightRule(nil), insightRules...) }

// RecommendationRules возвращает копию таблицы правил рекомендаций.
func RecommendationRules() []RecommendationRule {
	return append([]RecommendationRule(nil), recommendationRules...)
}

// Insight — сработавший вывод.
type Insight struct {
	ID   string
	Text string
}

// Insights применяет таблицу правил выводов.
func Insights(f Facts) []Insight {
	var out []Insight
	for _, r := range insightRules {
		if r.When(f) {
			out = append(out, Insight{ID: r.ID, Text: r.Text(f)})
		}
	}
	return out
}

// Recommendations подбирает рекомендации по сработавшим выводам.
func Recommendations(fired []Insight) []string {
	ids := make(map[string]bool, len(fired))
	for _, in := range fired {
		ids[in.ID] = true
	}
	var out []string
	for _, r := range recommendationRules {
		if r.Insight == "" || ids[r.Insight] {
			out = append(out, r.Texts...)
		}
	}
	return out
}
