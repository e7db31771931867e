// Package apperrors содержит структурированные ошибки errwatch.
package apperrors

import (
	"errors"
	"fmt"
)

// Коды ошибок в формате CATEGORY.SPECIFIC.
const (
	ErrConfigLoad     = "CONFIG.LOAD_FAILED"
	ErrConfigValidate = "CONFIG.VALIDATION_FAILED"

	ErrSnapshotRead  = "SNAPSHOT.READ_FAILED"
	ErrSnapshotWrite = "SNAPSHOT.WRITE_FAILED"

	ErrDispatchChannel = "DISPATCH.CHANNEL_FAILED"
	ErrDispatchQueue   = "DISPATCH.QUEUE_FULL"

	ErrServerStart = "SERVER.START_FAILED"
	ErrSinkWrite   = "SINK.WRITE_FAILED"

	ErrOutputFormat = "OUTPUT.FORMAT_FAILED"
)

// AppError — ошибка с машиночитаемым кодом.
// Message не должен содержать секретов: он попадает в логи и ответы API.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает причину для errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// NewAppError создаёт AppError.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// CodeOf возвращает код первой AppError в цепочке или пустую строку.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
