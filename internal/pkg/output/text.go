package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const summaryDivider = "══════════════════════════════════════════════════════"

// TextWriter форматирует Result для человека.
type TextWriter struct{}

// NewTextWriter создаёт TextWriter.
func NewTextWriter() *TextWriter {
	return &TextWriter{}
}

// Write печатает статус, ошибку, тело результата и сводку.
// Тело берётся из Text, а при его отсутствии Data выводится как JSON.
func (t *TextWriter) Write(w io.Writer, result *Result) error {
	if result == nil {
		return nil
	}

	if _, err := fmt.Fprintf(w, "%s: %s\n", result.Command, result.Status); err != nil {
		return err
	}

	if result.Error != nil {
		if _, err := fmt.Fprintf(w, "Error [%s]: %s\n", result.Error.Code, result.Error.Message); err != nil {
			return err
		}
	}

	switch {
	case result.Text != "":
		body := result.Text
		if !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		if _, err := io.WriteString(w, "\n"+body); err != nil {
			return err
		}
	case result.Data != nil:
		dataJSON, err := json.MarshalIndent(result.Data, "", "  ")
		if err != nil {
			return fmt.Errorf("не удалось сериализовать Data: %w", err)
		}
		if _, err := fmt.Fprintf(w, "Data: %s\n", dataJSON); err != nil {
			return err
		}
	}

	// для ошибок сводка только перегружает вывод
	if result.Status != StatusError {
		return t.writeSummary(w, result)
	}
	return nil
}

func (t *TextWriter) writeSummary(w io.Writer, result *Result) error {
	hasDuration := result.Metadata != nil && result.Metadata.DurationMs > 0
	if result.Summary == nil && !hasDuration {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n📊 Сводка\n%s\n", summaryDivider, summaryDivider)
	if hasDuration {
		fmt.Fprintf(&b, "⏱️  Время выполнения: %s\n", formatDuration(result.Metadata.DurationMs))
	}
	if result.Summary != nil {
		for _, m := range result.Summary.KeyMetrics {
			if m.Unit != "" {
				fmt.Fprintf(&b, "📈 %s: %s %s\n", m.Name, m.Value, m.Unit)
			} else {
				fmt.Fprintf(&b, "📈 %s: %s\n", m.Name, m.Value)
			}
		}
		if result.Summary.WarningsCount > 0 {
			fmt.Fprintf(&b, "\n⚠️  Предупреждений: %d\n", result.Summary.WarningsCount)
			for _, warn := range result.Summary.Warnings {
				fmt.Fprintf(&b, "   • %s\n", warn)
			}
		}
	}
	b.WriteString(summaryDivider + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// formatDuration: миллисекунды, секунды с десятыми, минуты с секундами.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dмс", ms)
	}
	sec := ms / 1000
	if sec < 60 {
		return fmt.Sprintf("%.1fс", float64(ms)/1000)
	}
	return fmt.Sprintf("%dм %dс", sec/60, sec%60)
}
