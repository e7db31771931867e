package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger создаёт SlogAdapter по конфигурации.
// Output "file" включает ротацию через lumberjack, всё остальное пишет в stderr.
func NewLogger(cfg Config) Logger {
	var w io.Writer = os.Stderr

	switch cfg.Output {
	case OutputFile:
		w = fileWriter(cfg)
	case OutputStderr, "":
	default:
		bootstrapWarn("неизвестный logging output %q, используется stderr", cfg.Output)
	}

	return NewLoggerWithWriter(cfg, w)
}

// fileWriter возвращает ротируемый writer или stderr, если файл использовать нельзя.
func fileWriter(cfg Config) io.Writer {
	if cfg.FilePath == "" {
		bootstrapWarn("logging output=file без filePath, используется stderr")
		return os.Stderr
	}

	if dir := filepath.Dir(cfg.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			bootstrapWarn("не удалось создать каталог логов %q: %v, используется stderr", dir, err)
			return os.Stderr
		}
	}

	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

// NewLoggerWithWriter создаёт логгер поверх произвольного writer. Нужен тестам.
func NewLoggerWithWriter(cfg Config, w io.Writer) Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var h slog.Handler
	if cfg.Format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	return NewSlogAdapter(slog.New(h))
}

// ParseLevel переводит строковый уровень в slog.Level, по умолчанию info.
func ParseLevel(level string) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func bootstrapWarn(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "WARNING: "+format+"\n", args...) //nolint:errcheck // логгер ещё не создан
}
