package analytics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

func TestReport_Sections(t *testing.T) {
	f := newFixture()
	f.agg.RecordEvent("Failed to fetch", monitoring.CategoryNetwork, monitoring.SeverityMedium, monitoring.ErrorContext{})
	f.errorPoint(now.Add(-time.Hour), "network", 1, monitoring.SeverityMedium)

	report := f.an.Report()
	for _, section := range []string{
		"# Отчёт об ошибках",
		"## Сводка",
		"## Основные категории",
		"## Тренд за 7 дней",
		"## По дням",
		"## Выводы",
		"## Рекомендации",
	} {
		assert.Contains(t, report, section)
	}
	assert.Contains(t, report, "- network: 1 (100.0%, тренд stable, влияние низкое)")
	assert.Contains(t, report, "- Тренд: ухудшение")
	assert.Contains(t, report, "- Регулярно просматривать журналы ошибок")
}

func TestReport_EmptyCategories(t *testing.T) {
	report := newFixture().an.Report()
	assert.Contains(t, report, "- нет данных")
	assert.Equal(t, 7, strings.Count(report, "(критических 0)"))
}

func TestRenderReport_LocalizedNumbers(t *testing.T) {
	an := monitoring.ErrorAnalytics{GeneratedAt: now, TotalErrors: 12345}
	week := monitoring.TrendAnalysis{Trend: monitoring.TrendStable}

	en := renderReport(message.NewPrinter(language.English), an, week)
	assert.Contains(t, en, "- Всего ошибок: 12,345")

	ru := renderReport(message.NewPrinter(language.Russian), an, week)
	assert.NotContains(t, ru, "12,345")
	assert.Contains(t, ru, "- Тренд: без изменений")
}
