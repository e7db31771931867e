// Package logging содержит интерфейс структурированного логгера errwatch и его реализации.
package logging

// Logger описывает структурированный логгер, которым пользуются все компоненты конвейера.
//
// Сообщения принимают пары ключ-значение:
//
//	log.Warn("канал доставки недоступен", "channel", "slack", "error", err)
//
// Логи пишутся только в stderr или файл: stdout занят выводом CLI.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With возвращает Logger, добавляющий args ко всем последующим записям.
	With(args ...any) Logger
}
