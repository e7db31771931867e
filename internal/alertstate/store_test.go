package alertstate

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/testutil"
)

var t0 = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func alertAt(key string, at time.Time) monitoring.AlertEvent {
	return monitoring.AlertEvent{
		ID:        monitoring.AlertID(key, at),
		Key:       key,
		Type:      monitoring.AlertMemoryLeak,
		Severity:  monitoring.SeverityHigh,
		Timestamp: at,
		Data:      map[string]any{"usedPercent": 88.0},
	}
}

func TestStore_RecordAndResolve(t *testing.T) {
	s := New(testutil.NewRecordingLogger(), WithClock(func() time.Time { return t0.Add(time.Hour) }))
	a := alertAt("memory_leak", t0)
	s.Record(a)

	require.Len(t, s.Active(), 1)

	resolved, ok := s.Resolve(a.ID)
	require.True(t, ok)
	assert.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, t0.Add(time.Hour), *resolved.ResolvedAt)

	assert.Empty(t, s.Active())
	hist := s.History(10)
	require.Len(t, hist, 1, "история сохраняет устранённый алерт")
	assert.True(t, hist[0].Resolved, "флаг resolved общий для истории и активных")

	_, ok = s.Resolve(a.ID)
	assert.False(t, ok, "повторное устранение ничего не делает")
}

func TestStore_ActiveNewestFirstAndIsolated(t *testing.T) {
	s := New(testutil.NewRecordingLogger())
	s.Record(alertAt("a", t0))
	s.Record(alertAt("b", t0.Add(time.Minute)))

	active := s.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "b", active[0].Key)

	active[0].Data["usedPercent"] = 1.0
	assert.Equal(t, 88.0, s.Active()[0].Data["usedPercent"], "наружу отдаются копии")
}

func TestStore_HistoryBounded(t *testing.T) {
	s := New(testutil.NewRecordingLogger(), WithHistoryLimit(3))
	for i := range 5 {
		s.Record(alertAt(fmt.Sprintf("k%d", i), t0.Add(time.Duration(i)*time.Second)))
	}

	hist := s.History(0)
	require.Len(t, hist, 3)
	assert.Equal(t, []string{"k4", "k3", "k2"}, []string{hist[0].Key, hist[1].Key, hist[2].Key})
	assert.Len(t, s.History(2), 2)
	assert.Len(t, s.Active(), 5, "ограничение истории не трогает активные")
}

func TestStore_SubscribeNotifiesOnFireAndResolve(t *testing.T) {
	var active int
	s := New(testutil.NewRecordingLogger(), WithOnChange(func(n int) { active = n }))

	var calls [][]monitoring.AlertEvent
	unsubscribe := s.Subscribe(func(list []monitoring.AlertEvent) {
		calls = append(calls, list)
		_ = s.Active() // слушатель может читать Store без взаимоблокировки
	})

	a := alertAt("user_impact", t0)
	s.Record(a)
	assert.Equal(t, 1, active)
	s.Resolve(a.ID)
	assert.Equal(t, 0, active)

	require.Len(t, calls, 2)
	assert.Len(t, calls[0], 1)
	assert.Empty(t, calls[1])

	unsubscribe()
	s.Record(alertAt("x", t0))
	assert.Len(t, calls, 2)
}

func TestStore_ListenerPanicRecovered(t *testing.T) {
	logger := testutil.NewRecordingLogger()
	s := New(logger)
	var second bool
	s.Subscribe(func([]monitoring.AlertEvent) { panic("boom") })
	s.Subscribe(func([]monitoring.AlertEvent) { second = true })

	assert.NotPanics(t, func() { s.Record(alertAt("k", t0)) })
	assert.True(t, second)
	assert.Len(t, logger.Errors(), 1)
}

func TestStore_ConcurrentChangesDeliveredInOrder(t *testing.T) {
	s := New(testutil.NewRecordingLogger())
	var sizes []int
	unsubscribe := s.Subscribe(func(active []monitoring.AlertEvent) {
		sizes = append(sizes, len(active))
	})
	defer unsubscribe()

	const workers = 32
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Record(alertAt(fmt.Sprintf("key_%d", i), t0.Add(time.Duration(i)*time.Second)))
		}()
	}
	wg.Wait()

	require.Len(t, sizes, workers)
	for i, n := range sizes {
		assert.Equal(t, i+1, n, "список активных алертов не должен откатываться назад")
	}
	assert.Len(t, s.Active(), workers)
}
