package monitoring

import "time"

// PerformanceSummary — средние показатели производительности сессии.
type PerformanceSummary struct {
	AvgLoadTime float64 `json:"avgLoadTime"`
	AvgTTFB     float64 `json:"avgTTFB"`
	AvgCLS      float64 `json:"avgCLS"`
	MemoryUsage float64 `json:"memoryUsage"`
}

// UserSessionData — сессия пользователя длиной не более окна ротации.
type UserSessionData struct {
	SessionID    string             `json:"sessionId"`
	UserID       string             `json:"userId,omitempty"`
	UserAgent    string             `json:"userAgent,omitempty"`
	StartTime    time.Time          `json:"startTime"`
	LastActivity time.Time          `json:"lastActivity"`
	EndTime      *time.Time         `json:"endTime,omitempty"`
	PageViews    int                `json:"pageViews"`
	Interactions int                `json:"interactions"`
	Errors       int                `json:"errors"`
	Paths        []string           `json:"paths,omitempty"`
	Performance  PerformanceSummary `json:"performance"`
}

// Duration возвращает длительность сессии на момент now или до её завершения.
func (s *UserSessionData) Duration(now time.Time) time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return now.Sub(s.StartTime)
}

// MetricSummary — статистика одной метрики за окно.
type MetricSummary struct {
	Name  string  `json:"name"`
	Unit  string  `json:"unit,omitempty"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}
