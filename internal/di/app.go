package di

import (
	"github.com/Kargones/errwatch/internal/config"
	"github.com/Kargones/errwatch/internal/pipeline"
	"github.com/Kargones/errwatch/internal/pkg/logging"
	"github.com/Kargones/errwatch/internal/pkg/metrics"
	"github.com/Kargones/errwatch/internal/pkg/tracing"
	"github.com/Kargones/errwatch/internal/server"
)

// App содержит инициализированные зависимости errwatch.
// Создаётся через Wire DI в InitializeApp().
//
// При добавлении новых зависимостей:
// 1. Добавить поле в App struct
// 2. Создать провайдер в providers.go
// 3. Добавить провайдер в ProviderSet в wire.go
// 4. Перегенерировать wire_gen.go: go generate ./internal/di/...
type App struct {
	// Config передаётся извне через InitializeApp().
	Config *config.Config

	// Logger создаётся через ProvideLogger на основе раздела logging.
	Logger logging.Logger

	// Metrics собирает метрики конвейера.
	// Если метрики отключены или не создались, используется NopCollector.
	Metrics metrics.Collector

	// TracerShutdown завершает OTel TracerProvider и отправляет буферизированные span-ы.
	TracerShutdown tracing.Shutdown

	// Pipeline владеет состоянием: трекер, агрегаты, алерты, аналитика.
	Pipeline *pipeline.Pipeline

	// Server — HTTP API приёма ошибок и дашборда.
	Server *server.Server
}
