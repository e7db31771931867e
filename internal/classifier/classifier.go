// Package classifier сопоставляет текст ошибки категории и уровню серьёзности.
//
// Классификация — чистая функция без состояния: таблица правил компилируется
// один раз при инициализации пакета и дальше только читается.
package classifier

import (
	"regexp"
	"strings"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

// Rule — набор шаблонов одной категории.
type Rule struct {
	Category monitoring.Category
	Patterns []*regexp.Regexp
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile("(?i)" + e)
	}
	return out
}

// rules проверяются сверху вниз, побеждает первое совпадение.
// Аутентификация и авторизация стоят раньше javascript, memory раньше performance.
var rules = []Rule{
	{monitoring.CategoryAuthentication, patterns(`Unauthorized`, `Authentication failed`, `Token.*expired`)},
	{monitoring.CategoryAuthorization, patterns(`Forbidden`, `Access denied`, `Permission denied`)},
	{monitoring.CategoryMemory, patterns(`Out of memory`, `Memory allocation failed`, `Heap out of memory`)},
	{monitoring.CategoryJavaScript, patterns(`TypeError`, `ReferenceError`, `SyntaxError`, `RangeError`, `EvalError`, `URIError`)},
	{monitoring.CategoryNetwork, patterns(`NetworkError`, `Failed to fetch`, `Request timeout`, `CORS`, `timed? ?out`)},
	{monitoring.CategoryAPI, patterns(`\b4\d\d\b`, `\b5\d\d\b`, `API.*error`)},
	{monitoring.CategoryValidation, patterns(`ValidationError`, `Invalid.*input`, `Required.*field`)},
	{monitoring.CategoryPerformance, patterns(`Performance`, `Slow operation`, `Memory leak`)},
}

// Rules возвращает копию таблицы правил в порядке проверки.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// Categorize определяет категорию по тексту ошибки.
// Без совпадений применяются эвристики: загрузка чанков относится к network,
// рендеринг компонентов к javascript. Иначе javascript.
func Categorize(message string) monitoring.Category {
	for _, r := range rules {
		for _, p := range r.Patterns {
			if p.MatchString(message) {
				return r.Category
			}
		}
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "chunk"), strings.Contains(lower, "loading"):
		return monitoring.CategoryNetwork
	case strings.Contains(lower, "render"), strings.Contains(lower, "component"):
		return monitoring.CategoryJavaScript
	}
	return monitoring.CategoryJavaScript
}

// DetermineSeverity определяет уровень серьёзности. Функция тотальна:
// для любой категории и контекста возвращает один из пяти уровней.
func DetermineSeverity(c monitoring.Category, ctx monitoring.ErrorContext) monitoring.Severity {
	switch c {
	case monitoring.CategoryAuthentication, monitoring.CategoryAuthorization:
		return monitoring.SeverityCritical
	case monitoring.CategoryMemory, monitoring.CategoryPerformance:
		return monitoring.SeverityHigh
	case monitoring.CategoryUserInput, monitoring.CategoryValidation:
		return monitoring.SeverityMedium
	}

	if ctx.UserAction == monitoring.UserActionCriticalOperation || ctx.Source == monitoring.SourceInitialization {
		return monitoring.SeverityHigh
	}
	return monitoring.SeverityMedium
}

// Classify возвращает категорию и уровень. Явно заданные в контексте
// допустимые значения имеют приоритет над правилами.
func Classify(message string, ctx monitoring.ErrorContext) (monitoring.Category, monitoring.Severity) {
	category := ctx.Category
	if !category.Valid() {
		category = Categorize(message)
	}

	severity := ctx.Severity
	if !severity.Valid() {
		severity = DetermineSeverity(category, ctx)
	}
	return category, severity
}
