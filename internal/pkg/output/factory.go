package output

import (
	"fmt"
	"strings"
)

// FormatJSON и FormatText — поддерживаемые форматы вывода.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// ErrUnknownFormat возвращается ParseFormat для формата вне json/text.
var ErrUnknownFormat = fmt.Errorf("формат вывода должен быть %s или %s", FormatText, FormatJSON)

// ParseFormat нормализует формат из флага. Пустая строка означает text.
func ParseFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case FormatJSON, FormatText:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w, получено: %q", ErrUnknownFormat, format)
	}
}

// NewWriter создаёт Writer по формату (без учёта регистра).
// Неизвестный формат даёт TextWriter.
func NewWriter(format string) Writer {
	if strings.EqualFold(format, FormatJSON) {
		return NewJSONWriter()
	}
	return NewTextWriter()
}
