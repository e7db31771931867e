package logging

// Форматы вывода.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Уровни логирования.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Куда писать логи.
const (
	OutputStderr = "stderr"
	OutputFile   = "file"
)

// Значения по умолчанию, общие для DefaultConfig и internal/config.
const (
	DefaultLevel      = LevelInfo
	DefaultFormat     = FormatText
	DefaultOutput     = OutputStderr
	DefaultFilePath   = "/var/log/errwatch/errwatch.log"
	DefaultMaxSize    = 50 // MB
	DefaultMaxBackups = 5
	DefaultMaxAge     = 14 // дней
	DefaultCompress   = true
)

// Config описывает параметры логгера.
type Config struct {
	// Format: "json" или "text".
	Format string
	// Level: "debug", "info", "warn", "error". Неизвестное значение трактуется как info.
	Level string
	// Output: "stderr" или "file".
	Output string
	// FilePath используется при Output == "file".
	FilePath string
	// MaxSize — размер файла в МБ, после которого lumberjack выполняет ротацию.
	MaxSize    int
	MaxBackups int
	// MaxAge — срок хранения ротированных файлов в днях.
	MaxAge   int
	Compress bool
}

// DefaultConfig возвращает Config со значениями по умолчанию.
func DefaultConfig() Config {
	return Config{
		Level:      DefaultLevel,
		Format:     DefaultFormat,
		Output:     DefaultOutput,
		FilePath:   DefaultFilePath,
		MaxSize:    DefaultMaxSize,
		MaxBackups: DefaultMaxBackups,
		MaxAge:     DefaultMaxAge,
		Compress:   DefaultCompress,
	}
}
