package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Kargones/errwatch/internal/pkg/apperrors"
)

// DefaultRedisKey — ключ снапшота по умолчанию.
const DefaultRedisKey = "errwatch:snapshot"

// RedisConfig — параметры подключения к Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
	// TTL — срок жизни ключа; 0 — без срока.
	TTL time.Duration
}

// RedisStore хранит снапшот одним ключом Redis.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore подключается к Redis и проверяет соединение.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // клиент не используется
		return nil, apperrors.NewAppError(apperrors.ErrSnapshotRead, fmt.Sprintf("Redis %s недоступен", cfg.Addr), err)
	}
	return NewRedisStoreWithClient(client, cfg.Key, cfg.TTL), nil
}

// NewRedisStoreWithClient создаёт хранилище поверх готового клиента.
func NewRedisStoreWithClient(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, apperrors.NewAppError(apperrors.ErrSnapshotRead, "не удалось прочитать ключ "+r.key, err)
	}
	return decode(data)
}

func (r *RedisStore) Save(ctx context.Context, s Snapshot) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return apperrors.NewAppError(apperrors.ErrSnapshotWrite, "не удалось записать ключ "+r.key, err)
	}
	return nil
}

func (r *RedisStore) Close() error { return r.client.Close() }
