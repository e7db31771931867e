package monitoring

import "time"

// ErrorContext — сведения о месте возникновения ошибки.
// Category и Severity, если заданы, заменяют результат классификации.
type ErrorContext struct {
	Category   Category       `json:"category,omitempty"`
	Severity   Severity       `json:"severity,omitempty"`
	Source     string         `json:"source,omitempty"`
	UserAction string         `json:"userAction,omitempty"`
	URL        string         `json:"url,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	UserID     string         `json:"userId,omitempty"`
	SessionID  string         `json:"sessionId,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Значения Source и UserAction, влияющие на серьёзность.
const (
	SourceInitialization        = "initialization"
	SourceUserInput             = "user_input"
	UserActionCriticalOperation = "critical_operation"
	UserActionFormSubmission    = "form_submission"
)

// ErrorEvent — событие ошибки. Живёт только до классификации и агрегации.
type ErrorEvent struct {
	Message   string       `json:"message"`
	Stack     string       `json:"stack,omitempty"`
	Context   ErrorContext `json:"context"`
	Timestamp time.Time    `json:"timestamp"`
}

// TimeSeriesPoint — неизменяемая точка временного ряда.
type TimeSeriesPoint struct {
	Timestamp time.Time      `json:"timestamp"`
	Value     float64        `json:"value"`
	Category  string         `json:"category"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Ключи Metadata точек временного ряда.
const (
	MetaKind      = "kind"
	MetaSeverity  = "severity"
	MetaSignature = "signature"
	MetaUnit      = "unit"
	MetaResolved  = "resolved"
	MetaSuccess   = "success"
	MetaName      = "name"
	MetaSource    = "source"
)

// Значения MetaKind.
const (
	KindError  = "error"
	KindPerf   = "perf"
	KindAction = "action"
)

// Зарезервированные категории точек производительности.
const (
	MetricLCP              = "LCP"
	MetricFID              = "FID"
	MetricCLS              = "CLS"
	MetricFCP              = "FCP"
	MetricTTFB             = "TTFB"
	MetricDOMContentLoaded = "DOM_CONTENT_LOADED"
	MetricLoad             = "LOAD"
	MetricDNSLookup        = "DNS_LOOKUP"
	MetricTCPConnect       = "TCP_CONNECT"
	MetricRequest          = "REQUEST"
	MetricResponse         = "RESPONSE"
	MetricDOMProcessing    = "DOM_PROCESSING"
	MetricSlowResource     = "SLOW_RESOURCE"
	MetricMemoryUsage      = "MEMORY_USAGE"
	MetricPerfIssue        = "PERFORMANCE_ISSUE"
	MetricUserAction       = "USER_ACTION"
)

// Единицы измерения.
const (
	UnitMillis  = "ms"
	UnitPercent = "percent"
	UnitScore   = "score"
	UnitCount   = "count"
)

// Kind возвращает вид точки из метаданных.
func (p TimeSeriesPoint) Kind() string {
	k, _ := p.Metadata[MetaKind].(string)
	return k
}

// Severity возвращает уровень из метаданных точки ошибки.
func (p TimeSeriesPoint) Severity() Severity {
	s, _ := p.Metadata[MetaSeverity].(string)
	return Severity(s)
}

// Bool читает логический флаг из метаданных.
func (p TimeSeriesPoint) Bool(key string) bool {
	b, _ := p.Metadata[key].(bool)
	return b
}
