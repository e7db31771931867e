package analytics

import (
	"strings"

	"golang.org/x/text/message"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

var impactNames = map[string]string{"high": "высокое", "medium": "среднее", "low": "низкое"}

var trendNames = map[monitoring.TrendDirection]string{
	monitoring.TrendImproving: "улучшение",
	monitoring.TrendStable:    "без изменений",
	monitoring.TrendWorsening: "ухудшение",
}

// Report формирует текстовый отчёт: сводку, топ категорий, тренд за 7 дней,
// выводы и рекомендации.
func (a *Analyzer) Report() string {
	an := a.Analytics()
	week, err := a.Analyze(monitoring.PeriodWeek)
	if err != nil {
		return ""
	}
	return renderReport(message.NewPrinter(a.lang), an, week)
}

func renderReport(p *message.Printer, an monitoring.ErrorAnalytics, week monitoring.TrendAnalysis) string {
	var b strings.Builder

	b.WriteString("# Отчёт об ошибках\n")
	p.Fprintf(&b, "Сформирован: %s\n\n", an.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Сводка\n")
	p.Fprintf(&b, "- Всего ошибок: %d\n", an.TotalErrors)
	p.Fprintf(&b, "- Уникальных типов: %d\n", an.UniqueErrors)
	p.Fprintf(&b, "- Критических: %d\n", an.CriticalErrors)
	p.Fprintf(&b, "- Устранено: %d\n", an.ResolvedErrors)
	p.Fprintf(&b, "- Частота: %.2f ошибок/час\n", an.ErrorRate)
	p.Fprintf(&b, "- Среднее время устранения: %.0f мин\n", an.MeanTimeToResolution)
	p.Fprintf(&b, "- Влияние на пользователей: %.0f/100\n\n", an.UserImpactScore)

	b.WriteString("## Основные категории\n")
	if len(an.TopCategories) == 0 {
		b.WriteString("- нет данных\n")
	}
	for _, c := range an.TopCategories {
		p.Fprintf(&b, "- %s: %d (%.1f%%, тренд %s, влияние %s)\n",
			c.Category, c.Count, c.Percentage, c.Trend, impactNames[c.Impact])
	}
	b.WriteString("\n")

	b.WriteString("## Тренд за 7 дней\n")
	p.Fprintf(&b, "- Ошибок за период: %.0f (предыдущий период: %.0f)\n", week.CurrentTotal, week.PreviousTotal)
	p.Fprintf(&b, "- Изменение: %.2f%%\n", week.ErrorChange)
	p.Fprintf(&b, "- Тренд: %s\n", trendNames[week.Trend])
	p.Fprintf(&b, "- Изменение критических: %.0f%%\n", week.CriticalChange)
	b.WriteString("\n")

	b.WriteString("## По дням\n")
	for _, d := range an.DailyTrend {
		p.Fprintf(&b, "- %s: %d (критических %d)\n", d.Date, d.Count, d.Critical)
	}
	b.WriteString("\n")

	b.WriteString("## Выводы\n")
	for _, in := range week.Insights {
		b.WriteString("- " + in + "\n")
	}
	b.WriteString("\n")

	b.WriteString("## Рекомендации\n")
	for _, r := range week.Recommendations {
		b.WriteString("- " + r + "\n")
	}
	return b.String()
}
