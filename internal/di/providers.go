package di

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Kargones/errwatch/internal/config"
	"github.com/Kargones/errwatch/internal/constants"
	"github.com/Kargones/errwatch/internal/feed"
	"github.com/Kargones/errwatch/internal/pipeline"
	"github.com/Kargones/errwatch/internal/pkg/logging"
	"github.com/Kargones/errwatch/internal/pkg/metrics"
	"github.com/Kargones/errwatch/internal/pkg/tracing"
	"github.com/Kargones/errwatch/internal/server"
	"github.com/Kargones/errwatch/internal/snapshot"
	"github.com/Kargones/errwatch/internal/tracker"
)

// ProvideLogger создаёт Logger на основе раздела logging.
// При nil Config используются значения по умолчанию.
func ProvideLogger(cfg *config.Config) logging.Logger {
	if cfg == nil {
		return logging.NewLogger(logging.DefaultConfig())
	}
	return logging.NewLogger(cfg.Logging.ToLogging())
}

// ProvideMetricsCollector создаёт Collector на основе раздела metrics.
// Ошибка создания не останавливает сервис: используется NopCollector.
func ProvideMetricsCollector(cfg *config.Config, logger logging.Logger) metrics.Collector {
	collector, err := metrics.NewCollector(cfg.Metrics.ToMetrics(), logger)
	if err != nil {
		logger.Error("ошибка создания metrics collector, используется NopCollector",
			slog.String("error", err.Error()),
		)
		return metrics.NewNopCollector()
	}
	return collector
}

// ProvideTracerProvider инициализирует OpenTelemetry. Версия сборки
// попадает в атрибут service.version.
func ProvideTracerProvider(cfg *config.Config, logger logging.Logger) tracing.Shutdown {
	tracingCfg := cfg.Tracing.ToTracing()
	tracingCfg.Version = constants.Version

	shutdown, err := tracing.NewTracerProvider(tracingCfg, logger)
	if err != nil {
		logger.Error("ошибка инициализации tracing, используется nop provider",
			slog.String("error", err.Error()),
		)
		return tracing.NopShutdown
	}
	return shutdown
}

// ProvideSnapshotStore выбирает хранилище снапшота по snapshot.backend.
// Недоступный Redis останавливает запуск: без него состояние не переживёт рестарт.
func ProvideSnapshotStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (snapshot.Store, error) {
	switch cfg.Snapshot.Backend {
	case config.SnapshotRedis:
		store, err := snapshot.NewRedisStore(ctx, cfg.Snapshot.ToRedis())
		if err != nil {
			return nil, err
		}
		logger.Debug("снапшот хранится в Redis", "addr", cfg.Snapshot.Redis.Addr)
		return store, nil
	case config.SnapshotMemory:
		logger.Warn("снапшот хранится в памяти: состояние не переживёт перезапуск")
		return snapshot.NewMemoryStore(), nil
	case config.SnapshotFile:
		logger.Debug("снапшот хранится в файле", "path", cfg.Snapshot.Path)
		return snapshot.NewFileStore(cfg.Snapshot.Path), nil
	default:
		return nil, fmt.Errorf("%w, получено: %q", config.ErrSnapshotBackend, cfg.Snapshot.Backend)
	}
}

// ProvideSink выбирает внешнюю систему захвата ошибок по sink.type.
func ProvideSink(ctx context.Context, cfg *config.Config, logger logging.Logger) (tracker.Sink, error) {
	switch cfg.Sink.Type {
	case config.SinkClickHouse:
		sink, err := tracker.NewClickHouseSink(ctx, cfg.Sink.ClickHouse.ToClickHouse(), logger)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case config.SinkNop:
		return tracker.NopSink{}, nil
	case config.SinkLog:
		return tracker.NewLogSink(logger), nil
	default:
		return nil, fmt.Errorf("%w, получено: %q", config.ErrSinkType, cfg.Sink.Type)
	}
}

// ProvideFeed создаёт ленту дашборда. При заданном feed.redisAddr события
// ретранслируются между инстансами через Redis pub/sub.
func ProvideFeed(cfg *config.Config, logger logging.Logger) *feed.Hub {
	opts := []feed.Option{feed.WithBuffer(cfg.Feed.Buffer)}
	if cfg.Feed.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Feed.RedisAddr,
			Password: cfg.Feed.RedisPassword,
			DB:       cfg.Feed.RedisDB,
		})
		opts = append(opts, feed.WithRedis(client, cfg.Feed.RedisChannel))
		logger.Debug("лента ретранслируется через Redis",
			"addr", cfg.Feed.RedisAddr,
			"channel", cfg.Feed.RedisChannel,
		)
	}
	return feed.NewHub(logger, opts...)
}

// ProvidePipeline собирает конвейер ошибок.
func ProvidePipeline(
	cfg *config.Config,
	store snapshot.Store,
	sink tracker.Sink,
	collector metrics.Collector,
	hub *feed.Hub,
	logger logging.Logger,
) (*pipeline.Pipeline, error) {
	return pipeline.New(cfg.ToPipeline(), pipeline.Deps{
		Snapshot: store,
		Sink:     sink,
		Metrics:  collector,
		Feed:     hub,
		Logger:   logger,
	})
}

// ProvideServer создаёт HTTP API поверх конвейера.
func ProvideServer(cfg *config.Config, p *pipeline.Pipeline, logger logging.Logger) *server.Server {
	return server.New(cfg.Server.ToServer(), p, logger)
}
