// Package snapshot сохраняет состояние конвейера между перезапусками:
// временной ряд, влияние на пользователей и времена устранения ошибок.
//
// Формат снапшота — JSON {timeSeries, userImpact, resolutionTimes, lastUpdate}.
// Хранилище выбирается конфигурацией: файл, Redis или память процесса.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/apperrors"
	"github.com/Kargones/errwatch/internal/pkg/logging"
)

// ErrNotFound возвращается, когда сохранённого снапшота нет.
var ErrNotFound = errors.New("снапшот не найден")

// Snapshot — сохраняемое состояние.
type Snapshot struct {
	TimeSeries      []monitoring.TimeSeriesPoint  `json:"timeSeries"`
	UserImpact      []monitoring.UserImpactRecord `json:"userImpact"`
	ResolutionTimes []float64                     `json:"resolutionTimes"`
	LastUpdate      time.Time                     `json:"lastUpdate"`
}

// Store — хранилище снапшота.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
	Close() error
}

func encode(s Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrSnapshotWrite, "не удалось сериализовать снапшот", err)
	}
	return data, nil
}

func decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, apperrors.NewAppError(apperrors.ErrSnapshotRead, "снапшот повреждён", err)
	}
	return s, nil
}

// LoadOrEmpty читает снапшот. Отсутствие или повреждение данных не является
// ошибкой запуска: возвращается пустое состояние, повреждение логируется.
func LoadOrEmpty(ctx context.Context, store Store, logger logging.Logger) Snapshot {
	s, err := store.Load(ctx)
	switch {
	case err == nil:
		logger.Info("состояние восстановлено из снапшота",
			"points", len(s.TimeSeries),
			"users", len(s.UserImpact),
			"last_update", s.LastUpdate)
		return s
	case errors.Is(err, ErrNotFound):
		logger.Debug("снапшот отсутствует, старт с пустым состоянием")
	default:
		logger.Warn("не удалось прочитать снапшот, старт с пустым состоянием", "error", err)
	}
	return Snapshot{}
}

// MemoryStore держит снапшот в памяти процесса. Используется, когда
// сохранение выключено, и в тестах.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return Snapshot{}, ErrNotFound
	}
	return decode(m.data)
}

func (m *MemoryStore) Save(_ context.Context, s Snapshot) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.saves++
	m.mu.Unlock()
	return nil
}

// Saves возвращает число выполненных сохранений.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryStore) Close() error { return nil }
