package timeseries

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func point(offset time.Duration, category string, value float64) monitoring.TimeSeriesPoint {
	return monitoring.TimeSeriesPoint{Timestamp: base.Add(offset), Category: category, Value: value}
}

func TestStore_RetentionBoundByCapacity(t *testing.T) {
	clock := &fakeClock{t: base.Add(time.Hour)}
	s := New(WithCapacity(10), WithClock(clock.now))

	for i := range 25 {
		s.AddPoint(point(time.Duration(i)*time.Second, "LOAD", float64(i)))
	}

	require.Equal(t, 10, s.Size())
	got := Collect(s.Query(Filter{}))
	require.Len(t, got, 10)
	for i, p := range got {
		assert.Equal(t, float64(15+i), p.Value, "должны остаться самые свежие точки")
	}
}

func TestStore_RetentionWindow(t *testing.T) {
	clock := &fakeClock{t: base}
	s := New(WithRetention(time.Hour), WithClock(clock.now))

	s.AddPoint(point(-2*time.Hour, "LOAD", 1))
	s.AddPoint(point(-30*time.Minute, "LOAD", 2))
	assert.Equal(t, 1, s.Size(), "точка старше окна вытесняется при записи")

	clock.t = base.Add(45 * time.Minute)
	s.AddPoint(point(40*time.Minute, "LOAD", 3))
	got := Collect(s.Query(Filter{}))
	require.Len(t, got, 1)
	assert.Equal(t, 3.0, got[0].Value)
}

func TestStore_OutOfOrderInsertKeepsOrder(t *testing.T) {
	clock := &fakeClock{t: base.Add(time.Hour)}
	s := New(WithClock(clock.now))

	for _, off := range []time.Duration{5, 1, 3, 3, 9, 0} {
		s.AddPoint(point(off*time.Minute, "CLS", float64(off)))
	}

	var prev time.Time
	for p := range s.Query(Filter{}) {
		assert.False(t, p.Timestamp.Before(prev), "точки должны идти по неубыванию времени")
		prev = p.Timestamp
	}
	assert.Equal(t, 6, s.Size())
}

func TestStore_QueryFilter(t *testing.T) {
	clock := &fakeClock{t: base.Add(time.Hour)}
	s := New(WithClock(clock.now))

	s.AddPoint(monitoring.TimeSeriesPoint{Timestamp: base, Category: "LOAD", Value: 1,
		Metadata: map[string]any{monitoring.MetaKind: monitoring.KindPerf, monitoring.MetaUnit: monitoring.UnitMillis}})
	s.AddPoint(monitoring.TimeSeriesPoint{Timestamp: base.Add(time.Minute), Category: "javascript", Value: 1,
		Metadata: map[string]any{monitoring.MetaKind: monitoring.KindError}})
	s.AddPoint(monitoring.TimeSeriesPoint{Timestamp: base.Add(2 * time.Minute), Category: "MEMORY_USAGE", Value: 70,
		Metadata: map[string]any{monitoring.MetaKind: monitoring.KindPerf, monitoring.MetaUnit: monitoring.UnitPercent}})

	assert.Len(t, Collect(s.Query(Filter{Kind: monitoring.KindPerf})), 2)
	assert.Len(t, Collect(s.Query(Filter{Unit: monitoring.UnitPercent})), 1)
	assert.Len(t, Collect(s.Query(Filter{Category: "javascript"})), 1)
	assert.Len(t, Collect(s.Query(Filter{Start: base.Add(time.Minute), End: base.Add(time.Minute)})), 1)
	assert.Len(t, Collect(s.Query(Filter{Start: base.Add(3 * time.Minute)})), 0)
}

func TestStore_QueryIsSinglePassAndLazy(t *testing.T) {
	clock := &fakeClock{t: base.Add(time.Hour)}
	s := New(WithClock(clock.now))
	for i := range 5 {
		s.AddPoint(point(time.Duration(i)*time.Minute, "LOAD", 1))
	}

	seq := s.Query(Filter{})
	seen := 0
	for range seq {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
	assert.Empty(t, Collect(seq), "повторный проход не возвращает точек")

	assert.Equal(t, 5.0, Sum(s.Query(Filter{})))
}

func TestStore_LatestAndPrune(t *testing.T) {
	clock := &fakeClock{t: base.Add(time.Hour)}
	s := New(WithClock(clock.now))

	_, ok := s.Latest("MEMORY_USAGE")
	assert.False(t, ok)

	s.AddPoint(point(0, "MEMORY_USAGE", 60))
	s.AddPoint(point(time.Minute, "LOAD", 1200))
	s.AddPoint(point(2*time.Minute, "MEMORY_USAGE", 92))

	p, ok := s.Latest("MEMORY_USAGE")
	require.True(t, ok)
	assert.Equal(t, 92.0, p.Value)

	assert.Equal(t, 2, s.PruneOlderThan(base.Add(2*time.Minute)))
	assert.Equal(t, 1, s.Size())
}

func TestStore_SnapshotRestore(t *testing.T) {
	clock := &fakeClock{t: base.Add(time.Hour)}
	s := New(WithCapacity(3), WithClock(clock.now))

	s.Restore([]monitoring.TimeSeriesPoint{
		point(3*time.Minute, "a", 3),
		point(time.Minute, "a", 1),
		point(4*time.Minute, "a", 4),
		point(2*time.Minute, "a", 2),
	})

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []float64{2, 3, 4}, []float64{snap[0].Value, snap[1].Value, snap[2].Value})
}

func TestStore_OnChangeAndZeroTimestamp(t *testing.T) {
	clock := &fakeClock{t: base}
	var sizes []int
	s := New(WithClock(clock.now), WithOnChange(func(n int) { sizes = append(sizes, n) }))

	s.AddPoint(monitoring.TimeSeriesPoint{Category: "LOAD", Value: 1})
	s.AddPoint(monitoring.TimeSeriesPoint{Category: "LOAD", Value: 2})

	assert.Equal(t, []int{1, 2}, sizes)
	p, _ := s.Latest("LOAD")
	assert.Equal(t, base, p.Timestamp)
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := New(WithCapacity(500))
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				s.AddPoint(monitoring.TimeSeriesPoint{Category: "LOAD", Value: float64(w*1000 + i)})
				_ = s.Size()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 500, s.Size())
}

func kindPoint(offset time.Duration, kind string, value float64) monitoring.TimeSeriesPoint {
	return monitoring.TimeSeriesPoint{
		Timestamp: base.Add(offset),
		Category:  kind,
		Value:     value,
		Metadata:  map[string]any{monitoring.MetaKind: kind},
	}
}

func TestStore_PerfCapacityKeepsErrors(t *testing.T) {
	clock := &fakeClock{t: base.Add(24 * time.Hour)}
	s := New(WithKindCapacity(monitoring.KindPerf, 5), WithClock(clock.now))

	for i := range 3 {
		s.AddPoint(kindPoint(time.Duration(i)*time.Second, monitoring.KindError, 1))
	}
	for i := range 20 {
		s.AddPoint(kindPoint(time.Minute+time.Duration(i)*time.Second, monitoring.KindPerf, float64(i)))
	}

	assert.Equal(t, 8, s.Size())
	assert.Len(t, Collect(s.Query(Filter{Kind: monitoring.KindError})), 3, "старые ошибки не вытесняются замерами")
	perfPoints := Collect(s.Query(Filter{Kind: monitoring.KindPerf}))
	require.Len(t, perfPoints, 5)
	assert.Equal(t, 15.0, perfPoints[0].Value)
	assert.Equal(t, 19.0, perfPoints[4].Value)
}

func TestStore_PerfCapacityAppliedOnRestore(t *testing.T) {
	clock := &fakeClock{t: base.Add(24 * time.Hour)}
	s := New(WithKindCapacity(monitoring.KindPerf, 2), WithClock(clock.now))

	s.Restore([]monitoring.TimeSeriesPoint{
		kindPoint(time.Minute, monitoring.KindPerf, 1),
		kindPoint(0, monitoring.KindError, 1),
		kindPoint(2*time.Minute, monitoring.KindPerf, 2),
		kindPoint(3*time.Minute, monitoring.KindPerf, 3),
	})

	assert.Equal(t, 3, s.Size())
	assert.Equal(t, 5.0, Sum(s.Query(Filter{Kind: monitoring.KindPerf})))

	assert.Equal(t, 1, s.PruneOlderThan(base.Add(time.Second)))
	s.AddPoint(kindPoint(4*time.Minute, monitoring.KindPerf, 4))
	assert.Equal(t, 7.0, Sum(s.Query(Filter{Kind: monitoring.KindPerf})), "счётчик вида корректен после удаления")
}
