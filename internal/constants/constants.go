// Package constants содержит константы errwatch, общие для нескольких пакетов.
package constants

// AppName — имя сервиса в логах, трейсах и заголовках писем.
const AppName = "errwatch"

// Версия сборки. Перезаписывается при сборке:
//
//	go build -ldflags "-X github.com/Kargones/errwatch/internal/constants.Version=1.2.0 \
//	  -X github.com/Kargones/errwatch/internal/constants.PreCommitHash=$(git rev-parse --short HEAD)"
var (
	Version       = "dev"
	PreCommitHash = "unknown"
)

// Коды завершения процесса.
const (
	// ExitOK — успешное завершение.
	ExitOK = 0
	// ExitRuntime — ошибка во время работы сервиса или команды.
	ExitRuntime = 1
	// ExitUsage — неверные аргументы командной строки.
	ExitUsage = 2
	// ExitConfig — конфигурацию не удалось загрузить или проверить.
	ExitConfig = 5
	// ExitInit — не удалось собрать зависимости (Redis, ClickHouse, каналы).
	ExitInit = 6
)

// Сообщения завершения работы.
const (
	MsgAppExit       = "Завершение работы программы"
	MsgErrProcessing = "Обработка ошибки"
)
