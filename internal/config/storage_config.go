package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Kargones/errwatch/internal/feed"
	"github.com/Kargones/errwatch/internal/server"
	"github.com/Kargones/errwatch/internal/snapshot"
	"github.com/Kargones/errwatch/internal/tracker"
)

// Хранилища снапшота.
const (
	SnapshotFile   = "file"
	SnapshotRedis  = "redis"
	SnapshotMemory = "memory"
)

// Внешние системы захвата ошибок.
const (
	SinkLog        = "log"
	SinkClickHouse = "clickhouse"
	SinkNop        = "nop"
)

// Ошибки проверки разделов хранения.
var (
	ErrSnapshotBackend  = errors.New("snapshot: backend должен быть file, redis или memory")
	ErrSnapshotPath     = errors.New("snapshot: path обязателен для backend=file")
	ErrRedisAddr        = errors.New("redis: addr обязателен")
	ErrSinkType         = errors.New("sink: type должен быть log, clickhouse или nop")
	ErrClickHouseHost   = errors.New("sink: clickhouse.host обязателен для type=clickhouse")
	ErrServerAddr       = errors.New("server: addr обязателен")
	ErrAuthSecretLength = errors.New("server: authSecret короче 16 символов")
)

// ServerConfig — HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"ERRWATCH_SERVER_ADDR" env-description:"адрес HTTP API"`

	// AuthSecret — HMAC-секрет JWT дашборда. Пустой отключает проверку.
	AuthSecret string `yaml:"authSecret" env:"ERRWATCH_SERVER_AUTH_SECRET"`

	AllowOrigins    []string      `yaml:"allowOrigins" env:"ERRWATCH_SERVER_ALLOW_ORIGINS" env-separator:","`
	ReadTimeout     time.Duration `yaml:"readTimeout" env:"ERRWATCH_SERVER_READ_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"ERRWATCH_SERVER_SHUTDOWN_TIMEOUT"`
	KeepAlive       time.Duration `yaml:"sseKeepAlive" env:"ERRWATCH_SERVER_SSE_KEEPALIVE"`
}

// SnapshotConfig — где хранится состояние между перезапусками.
type SnapshotConfig struct {
	Backend string `yaml:"backend" env:"ERRWATCH_SNAPSHOT_BACKEND" env-description:"file, redis или memory"`
	Path    string `yaml:"path" env:"ERRWATCH_SNAPSHOT_PATH"`

	// MinInterval — пауза между сохранениями.
	MinInterval time.Duration `yaml:"minInterval" env:"ERRWATCH_SNAPSHOT_MIN_INTERVAL"`

	Redis SnapshotRedisConfig `yaml:"redis"`
}

// SnapshotRedisConfig — ключ снапшота в Redis.
type SnapshotRedisConfig struct {
	Addr     string        `yaml:"addr" env:"ERRWATCH_SNAPSHOT_REDIS_ADDR"`
	Password string        `yaml:"password" env:"ERRWATCH_SNAPSHOT_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"ERRWATCH_SNAPSHOT_REDIS_DB"`
	Key      string        `yaml:"key" env:"ERRWATCH_SNAPSHOT_REDIS_KEY"`
	TTL      time.Duration `yaml:"ttl" env:"ERRWATCH_SNAPSHOT_REDIS_TTL"`
}

// SinkConfig — внешняя система, куда уходят захваченные ошибки.
type SinkConfig struct {
	Type       string           `yaml:"type" env:"ERRWATCH_SINK_TYPE" env-description:"log, clickhouse или nop"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// ClickHouseConfig — подключение к ClickHouse.
type ClickHouseConfig struct {
	Host          string        `yaml:"host" env:"ERRWATCH_CLICKHOUSE_HOST"`
	Port          int           `yaml:"port" env:"ERRWATCH_CLICKHOUSE_PORT"`
	Database      string        `yaml:"database" env:"ERRWATCH_CLICKHOUSE_DATABASE"`
	User          string        `yaml:"user" env:"ERRWATCH_CLICKHOUSE_USER"`
	Password      string        `yaml:"password" env:"ERRWATCH_CLICKHOUSE_PASSWORD"`
	BatchSize     int           `yaml:"batchSize" env:"ERRWATCH_CLICKHOUSE_BATCH_SIZE"`
	FlushInterval time.Duration `yaml:"flushInterval" env:"ERRWATCH_CLICKHOUSE_FLUSH_INTERVAL"`
}

// FeedConfig — лента дашборда. Redis связывает ленты нескольких инстансов.
type FeedConfig struct {
	Buffer       int    `yaml:"buffer" env:"ERRWATCH_FEED_BUFFER"`
	RedisAddr    string `yaml:"redisAddr" env:"ERRWATCH_FEED_REDIS_ADDR"`
	RedisChannel string `yaml:"redisChannel" env:"ERRWATCH_FEED_REDIS_CHANNEL"`
	RedisDB      int    `yaml:"redisDb" env:"ERRWATCH_FEED_REDIS_DB"`
	// RedisPassword — пароль Redis ленты.
	RedisPassword string `yaml:"redisPassword" env:"ERRWATCH_FEED_REDIS_PASSWORD"`
}

func defaultServerConfig() ServerConfig {
	d := server.DefaultConfig()
	return ServerConfig{
		Addr:            d.Addr,
		AllowOrigins:    d.AllowOrigins,
		ReadTimeout:     d.ReadTimeout,
		ShutdownTimeout: d.ShutdownTimeout,
		KeepAlive:       d.KeepAlive,
	}
}

func defaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		Backend:     SnapshotFile,
		Path:        "/var/lib/errwatch/snapshot.json",
		MinInterval: snapshot.DefaultMinInterval,
		Redis:       SnapshotRedisConfig{Key: snapshot.DefaultRedisKey},
	}
}

func defaultSinkConfig() SinkConfig {
	return SinkConfig{
		Type: SinkLog,
		ClickHouse: ClickHouseConfig{
			Port:          9000,
			Database:      "error_logs",
			User:          "default",
			BatchSize:     tracker.DefaultBatchSize,
			FlushInterval: tracker.DefaultFlushInterval,
		},
	}
}

func defaultFeedConfig() FeedConfig {
	return FeedConfig{Buffer: feed.DefaultBuffer, RedisChannel: feed.DefaultRedisChannel}
}

func (s *ServerConfig) validate() error {
	if s.Addr == "" {
		return ErrServerAddr
	}
	if s.AuthSecret != "" && len(s.AuthSecret) < 16 {
		return ErrAuthSecretLength
	}
	return nil
}

func (s *SnapshotConfig) validate() error {
	switch s.Backend {
	case SnapshotFile:
		if s.Path == "" {
			return ErrSnapshotPath
		}
	case SnapshotRedis:
		if s.Redis.Addr == "" {
			return fmt.Errorf("snapshot: %w", ErrRedisAddr)
		}
	case SnapshotMemory:
	default:
		return fmt.Errorf("%w, получено: %q", ErrSnapshotBackend, s.Backend)
	}
	return nil
}

func (s *SinkConfig) validate() error {
	if !slices.Contains([]string{SinkLog, SinkClickHouse, SinkNop}, s.Type) {
		return fmt.Errorf("%w, получено: %q", ErrSinkType, s.Type)
	}
	if s.Type == SinkClickHouse && s.ClickHouse.Host == "" {
		return ErrClickHouseHost
	}
	return nil
}

// ToServer переводит раздел в конфигурацию HTTP-сервера.
func (s *ServerConfig) ToServer() server.Config {
	return server.Config{
		Addr:            s.Addr,
		AuthSecret:      s.AuthSecret,
		AllowOrigins:    s.AllowOrigins,
		ReadTimeout:     s.ReadTimeout,
		ShutdownTimeout: s.ShutdownTimeout,
		KeepAlive:       s.KeepAlive,
	}
}

// ToRedis переводит раздел в параметры RedisStore.
func (s *SnapshotConfig) ToRedis() snapshot.RedisConfig {
	return snapshot.RedisConfig{
		Addr:     s.Redis.Addr,
		Password: s.Redis.Password,
		DB:       s.Redis.DB,
		Key:      s.Redis.Key,
		TTL:      s.Redis.TTL,
	}
}

// ToClickHouse переводит раздел в параметры ClickHouseSink.
func (c *ClickHouseConfig) ToClickHouse() tracker.ClickHouseConfig {
	return tracker.ClickHouseConfig{
		Host:          c.Host,
		Port:          c.Port,
		Database:      c.Database,
		User:          c.User,
		Password:      c.Password,
		BatchSize:     c.BatchSize,
		FlushInterval: c.FlushInterval,
	}
}
