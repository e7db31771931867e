package tracker

import (
	"context"
	"time"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/logging"
)

// Level — уровень события во внешней системе захвата.
type Level string

const (
	LevelFatal   Level = "fatal"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// LevelFor отображает серьёзность ошибки на уровень события.
func LevelFor(s monitoring.Severity) Level {
	switch s {
	case monitoring.SeverityCritical:
		return LevelFatal
	case monitoring.SeverityHigh:
		return LevelError
	case monitoring.SeverityMedium, monitoring.SeverityLow:
		return LevelWarning
	default:
		return LevelInfo
	}
}

// Exception — ошибка, переданная во внешнюю систему захвата.
type Exception struct {
	EventID   string
	Message   string
	Stack     string
	Category  monitoring.Category
	Severity  monitoring.Severity
	Level     Level
	Context   monitoring.ErrorContext
	Timestamp time.Time
}

// Message — текстовое событие.
type Message struct {
	EventID   string
	Text      string
	Level     Level
	Extra     map[string]any
	Timestamp time.Time
}

// Breadcrumb — след действия, предшествующего ошибке.
type Breadcrumb struct {
	Message   string
	Category  string
	Level     Level
	Data      map[string]any
	Timestamp time.Time
}

// Sink — внешняя система захвата ошибок. Ошибки Sink логируются трекером
// и дальше не распространяются.
type Sink interface {
	CaptureException(ctx context.Context, ex Exception) error
	CaptureMessage(ctx context.Context, msg Message) error
	AddBreadcrumb(b Breadcrumb)
	Close(ctx context.Context) error
}

// LogSink пишет события в лог.
type LogSink struct {
	logger logging.Logger
}

// NewLogSink создаёт LogSink.
func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{logger: logger.With("sink", "log")}
}

func (s *LogSink) log(level Level, msg string, args ...any) {
	switch level {
	case LevelFatal, LevelError:
		s.logger.Error(msg, args...)
	case LevelWarning:
		s.logger.Warn(msg, args...)
	default:
		s.logger.Info(msg, args...)
	}
}

// CaptureException пишет ошибку в лог с уровнем, соответствующим серьёзности.
func (s *LogSink) CaptureException(_ context.Context, ex Exception) error {
	s.log(ex.Level, "захвачена ошибка",
		"event_id", ex.EventID,
		"message", ex.Message,
		"category", string(ex.Category),
		"severity", string(ex.Severity),
		"source", ex.Context.Source,
		"user_id", ex.Context.UserID,
	)
	return nil
}

// CaptureMessage пишет сообщение в лог.
func (s *LogSink) CaptureMessage(_ context.Context, m Message) error {
	s.log(m.Level, m.Text, "event_id", m.EventID)
	return nil
}

// AddBreadcrumb пишет след на уровне DEBUG.
func (s *LogSink) AddBreadcrumb(b Breadcrumb) {
	s.logger.Debug(b.Message, "category", b.Category, "level", string(b.Level))
}

// Close ничего не делает.
func (s *LogSink) Close(context.Context) error { return nil }

// NopSink отбрасывает все события.
type NopSink struct{}

func (NopSink) CaptureException(context.Context, Exception) error { return nil }
func (NopSink) CaptureMessage(context.Context, Message) error     { return nil }
func (NopSink) AddBreadcrumb(Breadcrumb)                          {}
func (NopSink) Close(context.Context) error                       { return nil }
