//go:build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/Kargones/errwatch/internal/config"
)

//go:generate wire

// ProviderSet объединяет все провайдеры приложения.
//
// При добавлении новых провайдеров:
// 1. Создать функцию провайдера в providers.go
// 2. Добавить её в ProviderSet
// 3. Перегенерировать: go generate ./internal/di/...
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideMetricsCollector,
	ProvideTracerProvider,
	ProvideSnapshotStore,
	ProvideSink,
	ProvideFeed,
	ProvidePipeline,
	ProvideServer,
	wire.Struct(new(App), "*"),
)

// InitializeApp создаёт App из загруженной конфигурации.
// ctx ограничивает подключение к внешним хранилищам (Redis, ClickHouse).
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    return err
//	}
//	app, err := di.InitializeApp(ctx, cfg)
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, error) {
	wire.Build(ProviderSet)
	return nil, nil // Wire заменит это на реальную реализацию
}
