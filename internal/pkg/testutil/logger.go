package testutil

import (
	"sync"

	"github.com/Kargones/errwatch/internal/pkg/logging"
)

// RecordingLogger запоминает сообщения по уровням. With возвращает тот же логгер,
// поэтому записи дочерних логгеров тоже видны в тесте.
type RecordingLogger struct {
	mu     sync.Mutex
	debugs []string
	infos  []string
	warns  []string
	errors []string
}

// NewRecordingLogger создаёт пустой RecordingLogger.
func NewRecordingLogger() *RecordingLogger { return &RecordingLogger{} }

func (l *RecordingLogger) Debug(msg string, _ ...any) { l.add(&l.debugs, msg) }
func (l *RecordingLogger) Info(msg string, _ ...any)  { l.add(&l.infos, msg) }
func (l *RecordingLogger) Warn(msg string, _ ...any)  { l.add(&l.warns, msg) }
func (l *RecordingLogger) Error(msg string, _ ...any) { l.add(&l.errors, msg) }

func (l *RecordingLogger) With(_ ...any) logging.Logger { return l }

func (l *RecordingLogger) add(dst *[]string, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*dst = append(*dst, msg)
}

// Warns возвращает копию сообщений уровня WARN.
func (l *RecordingLogger) Warns() []string { return l.snapshot(&l.warns) }

// Errors возвращает копию сообщений уровня ERROR.
func (l *RecordingLogger) Errors() []string { return l.snapshot(&l.errors) }

// Infos возвращает копию сообщений уровня INFO.
func (l *RecordingLogger) Infos() []string { return l.snapshot(&l.infos) }

func (l *RecordingLogger) snapshot(src *[]string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), *src...)
}
