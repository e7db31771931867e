// Package monitoring описывает доменные типы конвейера ошибок:
// события, агрегаты, точки временного ряда, пороги и алерты.
package monitoring

// Category — закрытый набор категорий ошибок.
type Category string

const (
	CategoryJavaScript           Category = "javascript"
	CategoryAPI                  Category = "api"
	CategoryNetwork              Category = "network"
	CategoryValidation           Category = "validation"
	CategoryPerformance          Category = "performance"
	CategoryUserInput            Category = "user_input"
	CategoryAuthentication       Category = "authentication"
	CategoryAuthorization        Category = "authorization"
	CategoryDatabase             Category = "database"
	CategoryExternalService      Category = "external_service"
	CategoryMemory               Category = "memory"
	CategoryBrowserCompatibility Category = "browser_compatibility"
)

var allCategories = []Category{
	CategoryJavaScript, CategoryAPI, CategoryNetwork, CategoryValidation,
	CategoryPerformance, CategoryUserInput, CategoryAuthentication, CategoryAuthorization,
	CategoryDatabase, CategoryExternalService, CategoryMemory, CategoryBrowserCompatibility,
}

// AllCategories возвращает все категории в порядке объявления.
func AllCategories() []Category {
	return append([]Category(nil), allCategories...)
}

// Valid сообщает, входит ли категория в закрытый набор.
func (c Category) Valid() bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Severity — уровень серьёзности: critical > high > medium > low > info.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Rank возвращает порядковый вес уровня; для неизвестного значения 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Valid сообщает, является ли значение одним из пяти уровней.
func (s Severity) Valid() bool { return s.Rank() > 0 }

// AtLeast сообщает, что s не ниже other.
func (s Severity) AtLeast(other Severity) bool { return s.Rank() >= other.Rank() }

// MaxSeverity возвращает более серьёзный из двух уровней.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseSeverity разбирает строку; неизвестное значение даёт ok == false.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(s)
	return sev, sev.Valid()
}
