// Package output форматирует результаты команд errwatch в JSON и текст.
package output

// StatusSuccess и StatusError — возможные значения поля Status в Result.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIVersion — версия формата вывода.
const APIVersion = "v1"

// Result — структурированный результат команды.
type Result struct {
	// Status: "success" или "error".
	Status string `json:"status"`

	Command string `json:"command"`

	// Data — полезная нагрузка команды.
	Data any `json:"data,omitempty"`

	// Text — готовый человекочитаемый вид Data. TextWriter печатает его
	// вместо JSON, в JSON он не попадает.
	Text string `json:"-"`

	// Error заполняется только при status="error".
	Error *ErrorInfo `json:"error,omitempty"`

	Metadata *Metadata `json:"metadata,omitempty"`

	// Summary копируется в Metadata.Summary при выводе в JSON.
	Summary *SummaryInfo `json:"-"`
}

// ErrorInfo — ошибка в машиночитаемом виде. Message не должен содержать секреты.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Metadata — метаданные выполнения команды.
type Metadata struct {
	DurationMs int64  `json:"duration_ms"`
	TraceID    string `json:"trace_id,omitempty"`
	APIVersion string `json:"api_version"`
	Version    string `json:"version,omitempty"`

	Summary *SummaryInfo `json:"summary,omitempty"`
}

// Success собирает успешный результат.
func Success(command string, data any) *Result {
	return &Result{Status: StatusSuccess, Command: command, Data: data}
}

// Failure собирает результат с ошибкой.
func Failure(command, code string, err error) *Result {
	return &Result{
		Status:  StatusError,
		Command: command,
		Error:   &ErrorInfo{Code: code, Message: err.Error()},
	}
}
