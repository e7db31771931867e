package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/apperrors"
	"github.com/Kargones/errwatch/internal/pkg/testutil"
)

var ts = time.Date(2026, 5, 20, 8, 30, 0, 0, time.UTC)

func sample() Snapshot {
	return Snapshot{
		TimeSeries: []monitoring.TimeSeriesPoint{{
			Timestamp: ts,
			Value:     1,
			Category:  "network",
			Metadata: map[string]any{
				monitoring.MetaKind:     monitoring.KindError,
				monitoring.MetaSeverity: "high",
			},
		}},
		UserImpact: []monitoring.UserImpactRecord{{
			UserID: "u1", AffectedCount: 3, Severity: monitoring.SeverityHigh, LastError: ts, TotalErrorsForUser: 7,
		}},
		ResolutionTimes: []float64{12.5, 40},
		LastUpdate:      ts,
	}
}

func TestFileStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "state", "snapshot.json"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sample()))
	got, err := store.Load(ctx)
	require.NoError(t, err)

	require.Len(t, got.TimeSeries, 1)
	assert.Equal(t, monitoring.SeverityHigh, got.TimeSeries[0].Severity())
	assert.Equal(t, monitoring.KindError, got.TimeSeries[0].Kind())
	assert.True(t, ts.Equal(got.TimeSeries[0].Timestamp))
	assert.Equal(t, sample().UserImpact, got.UserImpact)
	assert.Equal(t, []float64{12.5, 40}, got.ResolutionTimes)

	entries, err := os.ReadDir(filepath.Join(dir, "state"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "временные файлы не остаются")
}

func TestFileStore_JSONShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, NewFileStore(path).Save(context.Background(), Snapshot{LastUpdate: ts}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"timeSeries":null,"userImpact":null,"resolutionTimes":null,"lastUpdate":"2026-05-20T08:30:00Z"}`,
		string(data))
}

func TestFileStore_Missing(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "nope.json")).Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrSnapshotRead, apperrors.CodeOf(err))
}

func TestLoadOrEmpty(t *testing.T) {
	ctx := context.Background()

	t.Run("нет снапшота", func(t *testing.T) {
		logger := testutil.NewRecordingLogger()
		got := LoadOrEmpty(ctx, NewMemoryStore(), logger)
		assert.Equal(t, Snapshot{}, got)
		assert.Empty(t, logger.Warns())
	})

	t.Run("повреждённый снапшот", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snapshot.json")
		require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))
		logger := testutil.NewRecordingLogger()

		got := LoadOrEmpty(ctx, NewFileStore(path), logger)
		assert.Equal(t, Snapshot{}, got)
		assert.Contains(t, logger.Warns(), "не удалось прочитать снапшот, старт с пустым состоянием")
	})

	t.Run("есть снапшот", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save(ctx, sample()))
		logger := testutil.NewRecordingLogger()

		got := LoadOrEmpty(ctx, store, logger)
		assert.Len(t, got.UserImpact, 1)
		assert.Contains(t, logger.Infos(), "состояние восстановлено из снапшота")
	})
}

func newMiniredisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client, "", ttl)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore_SaveLoad(t *testing.T) {
	store, mr := newMiniredisStore(t, time.Hour)
	ctx := context.Background()

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, sample()))
	assert.True(t, mr.Exists(DefaultRedisKey))
	assert.Equal(t, time.Hour, mr.TTL(DefaultRedisKey))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{12.5, 40}, got.ResolutionTimes)
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newMiniredisStore(t, 0)
	mr.Close()

	err := store.Save(context.Background(), sample())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrSnapshotWrite, apperrors.CodeOf(err))
}

func TestNewRedisStore_PingFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), RedisConfig{Addr: addr})
	require.Error(t, err)
}

type failingStore struct{ MemoryStore }

func (*failingStore) Save(context.Context, Snapshot) error { return errors.New("disk full") }

func TestPersister_FlushSetsLastUpdate(t *testing.T) {
	store := NewMemoryStore()
	p := NewPersister(store, sample, testutil.NewRecordingLogger(), WithClock(func() time.Time { return ts.Add(time.Hour) }))

	require.NoError(t, p.Flush(context.Background()))
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ts.Add(time.Hour).Equal(got.LastUpdate))
}

func TestPersister_CoalescesNotifications(t *testing.T) {
	store := NewMemoryStore()
	var captures atomic.Int32
	capture := func() Snapshot {
		captures.Add(1)
		return sample()
	}
	p := NewPersister(store, capture, testutil.NewRecordingLogger(), WithMinInterval(50*time.Millisecond))

	for range 100 {
		p.Notify()
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool { return store.Saves() >= 1 }, time.Second, 5*time.Millisecond)
	for range 100 {
		p.Notify()
	}
	require.Eventually(t, func() bool { return store.Saves() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 2, store.Saves(), "серия сигналов даёт одно сохранение")
	assert.Equal(t, int32(2), captures.Load())
}

func TestPersister_SaveErrorIsLogged(t *testing.T) {
	logger := testutil.NewRecordingLogger()
	p := NewPersister(&failingStore{}, sample, logger, WithMinInterval(0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Notify()
	require.Eventually(t, func() bool {
		return len(logger.Warns()) > 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "не удалось сохранить снапшот", logger.Warns()[0])
}
