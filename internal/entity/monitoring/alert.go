package monitoring

import (
	"maps"
	"slices"
	"strconv"
	"time"
)

// Thresholds — статические пороги оценки алертов.
// Нулевой или отрицательный порог означает, что проверка никогда не срабатывает.
type Thresholds struct {
	Critical           int
	High               int
	Medium             int
	Low                int
	ErrorRatePercent   float64
	ResponseTimeMs     float64
	MemoryUsagePercent float64
}

// DefaultThresholds возвращает пороги по умолчанию.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Critical:           1,
		High:               10,
		Medium:             50,
		Low:                200,
		ErrorRatePercent:   5,
		ResponseTimeMs:     5000,
		MemoryUsagePercent: 85,
	}
}

// CountFor возвращает порог количества событий для уровня; 0 для info и неизвестных.
func (t Thresholds) CountFor(s Severity) int {
	switch s {
	case SeverityCritical:
		return t.Critical
	case SeverityHigh:
		return t.High
	case SeverityMedium:
		return t.Medium
	case SeverityLow:
		return t.Low
	default:
		return 0
	}
}

// AlertType — вид алерта.
type AlertType string

const (
	AlertErrorSpike             AlertType = "error_spike"
	AlertPerformanceDegradation AlertType = "performance_degradation"
	AlertMemoryLeak             AlertType = "memory_leak"
	AlertAPIFailure             AlertType = "api_failure"
	AlertUserImpact             AlertType = "user_impact"
	AlertSecurityBreach         AlertType = "security_breach"
	AlertSystemOverload         AlertType = "system_overload"
)

// ChannelType — тип канала доставки.
type ChannelType string

const (
	ChannelDashboard ChannelType = "dashboard"
	ChannelWebhook   ChannelType = "webhook"
	ChannelSlack     ChannelType = "slack"
	ChannelTeams     ChannelType = "teams"
	ChannelEmail     ChannelType = "email"
)

// AllChannels возвращает все типы каналов.
func AllChannels() []ChannelType {
	return []ChannelType{ChannelDashboard, ChannelWebhook, ChannelSlack, ChannelTeams, ChannelEmail}
}

// DefaultChannels выбирает каналы по серьёзности алерта.
func DefaultChannels(s Severity) []ChannelType {
	switch s {
	case SeverityCritical:
		return AllChannels()
	case SeverityHigh:
		return []ChannelType{ChannelDashboard, ChannelSlack, ChannelTeams, ChannelWebhook}
	case SeverityMedium:
		return []ChannelType{ChannelDashboard, ChannelWebhook}
	default:
		return []ChannelType{ChannelDashboard}
	}
}

// AlertEvent — сработавший алерт.
type AlertEvent struct {
	ID         string         `json:"id"`
	Key        string         `json:"key"`
	Type       AlertType      `json:"type"`
	Severity   Severity       `json:"severity"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Resolved   bool           `json:"resolved"`
	ResolvedAt *time.Time     `json:"resolvedAt,omitempty"`
	Channels   []ChannelType  `json:"channels"`
}

// AlertID строит идентификатор алерта из ключа и времени срабатывания.
func AlertID(key string, at time.Time) string {
	return key + "_" + strconv.FormatInt(at.UnixMilli(), 10)
}

// HasChannel сообщает, адресован ли алерт каналу ct.
func (a *AlertEvent) HasChannel(ct ChannelType) bool {
	return slices.Contains(a.Channels, ct)
}

// Clone возвращает копию, не разделяющую Data, Channels и ResolvedAt с оригиналом.
func (a *AlertEvent) Clone() AlertEvent {
	c := *a
	c.Data = maps.Clone(a.Data)
	c.Channels = slices.Clone(a.Channels)
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		c.ResolvedAt = &t
	}
	return c
}
