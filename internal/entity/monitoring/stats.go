package monitoring

import "time"

// StatsTrend — грубый тренд сигнатуры.
type StatsTrend string

const (
	StatsIncreasing StatsTrend = "increasing"
	StatsStable     StatsTrend = "stable"
	StatsDecreasing StatsTrend = "decreasing"
)

// ErrorStats — агрегат по одной сигнатуре (категория + текст сообщения).
// Множества пользователей и сессий отдаются отсортированными срезами.
type ErrorStats struct {
	Signature                  string     `json:"signature"`
	Category                   Category   `json:"category"`
	Message                    string     `json:"message"`
	Severity                   Severity   `json:"severity"`
	Count                      int        `json:"count"`
	FirstOccurrence            time.Time  `json:"firstOccurrence"`
	LastOccurrence             time.Time  `json:"lastOccurrence"`
	AffectedUsers              []string   `json:"affectedUsers"`
	AffectedSessions           []string   `json:"affectedSessions"`
	AverageRecoveryTimeMinutes float64    `json:"averageRecoveryTimeMinutes"`
	Resolved                   bool       `json:"resolved"`
	Trend                      StatsTrend `json:"trend"`
}

// Signature строит ключ агрегации. Сообщение берётся как есть.
func Signature(c Category, message string) string {
	return string(c) + "_" + message
}

// UserImpactRecord — влияние ошибок на одного пользователя.
type UserImpactRecord struct {
	UserID             string    `json:"userId"`
	AffectedCount      int       `json:"affectedCount"`
	Severity           Severity  `json:"severity"`
	LastError          time.Time `json:"lastError"`
	TotalErrorsForUser int       `json:"totalErrorsForUser"`
}
