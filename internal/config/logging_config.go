package config

import "github.com/Kargones/errwatch/internal/pkg/logging"

// LoggingConfig содержит настройки логирования.
type LoggingConfig struct {
	// Level — debug, info, warn, error.
	Level string `yaml:"level" env:"ERRWATCH_LOG_LEVEL" env-description:"уровень логирования"`

	// Format — json или text.
	Format string `yaml:"format" env:"ERRWATCH_LOG_FORMAT"`

	// Output — stderr или file. stdout занят выводом CLI.
	Output string `yaml:"output" env:"ERRWATCH_LOG_OUTPUT"`

	FilePath string `yaml:"filePath" env:"ERRWATCH_LOG_FILE_PATH"`

	// MaxSize — размер файла лога в MB до ротации.
	MaxSize    int `yaml:"maxSize" env:"ERRWATCH_LOG_MAX_SIZE"`
	MaxBackups int `yaml:"maxBackups" env:"ERRWATCH_LOG_MAX_BACKUPS"`

	// MaxAge — срок хранения ротированных файлов в днях.
	MaxAge   int  `yaml:"maxAge" env:"ERRWATCH_LOG_MAX_AGE"`
	Compress bool `yaml:"compress" env:"ERRWATCH_LOG_COMPRESS"`
}

func defaultLoggingConfig() LoggingConfig {
	d := logging.DefaultConfig()
	return LoggingConfig{
		Level:      d.Level,
		Format:     d.Format,
		Output:     d.Output,
		FilePath:   d.FilePath,
		MaxSize:    d.MaxSize,
		MaxBackups: d.MaxBackups,
		MaxAge:     d.MaxAge,
		Compress:   d.Compress,
	}
}

// ToLogging переводит раздел в конфигурацию логгера.
func (l *LoggingConfig) ToLogging() logging.Config {
	return logging.Config{
		Level:      l.Level,
		Format:     l.Format,
		Output:     l.Output,
		FilePath:   l.FilePath,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
		Compress:   l.Compress,
	}
}
