package perf

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/testutil"
	"github.com/Kargones/errwatch/internal/timeseries"
)

var t0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

// scriptedSource выдаёт заранее заданные партии измерений по одной за вызов.
type scriptedSource struct {
	name    string
	batches [][]Metric
	err     error
	calls   int
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) Sample(context.Context) ([]Metric, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

type advice struct {
	message string
	extra   map[string]any
}

type recordingAdvisor struct {
	mu     sync.Mutex
	advice []advice
}

func (a *recordingAdvisor) Advise(_ context.Context, message string, extra map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advice = append(a.advice, advice{message, extra})
}

func newTestCollector(t *testing.T, opts ...Option) (*Collector, *timeseries.Store, *recordingAdvisor) {
	t.Helper()
	clock := func() time.Time { return t0 }
	store := timeseries.New(timeseries.WithClock(clock))
	adv := &recordingAdvisor{}
	all := append([]Option{WithClock(clock), WithAdvisor(adv)}, opts...)
	return NewCollector(store, testutil.NewRecordingLogger(), all...), store, adv
}

func TestCollector_SampleNowWritesPoints(t *testing.T) {
	src := &scriptedSource{name: "fake", batches: [][]Metric{{
		{Name: monitoring.MetricMemoryUsage, Value: 92, Unit: monitoring.UnitPercent, Timestamp: t0},
		{Name: monitoring.MetricLoad, Value: 1200, Unit: monitoring.UnitMillis},
	}}}
	c, store, _ := newTestCollector(t, WithSources(src))

	assert.Equal(t, 2, c.SampleNow(context.Background()))
	assert.Equal(t, 2, store.Size())

	p, ok := store.Latest(monitoring.MetricMemoryUsage)
	require.True(t, ok)
	assert.Equal(t, 92.0, p.Value)
	assert.Equal(t, monitoring.KindPerf, p.Kind())
	assert.Equal(t, monitoring.UnitPercent, p.Metadata[monitoring.MetaUnit])

	load, ok := store.Latest(monitoring.MetricLoad)
	require.True(t, ok)
	assert.Equal(t, t0, load.Timestamp, "нулевое время заменяется текущим")
}

func TestCollector_SourceErrorDoesNotStopOthers(t *testing.T) {
	broken := &scriptedSource{name: "broken", err: errors.New("нет доступа")}
	ok := &scriptedSource{name: "ok", batches: [][]Metric{{{Name: monitoring.MetricTTFB, Value: 80, Unit: monitoring.UnitMillis}}}}
	logger := testutil.NewRecordingLogger()
	store := timeseries.New(timeseries.WithClock(func() time.Time { return t0 }))
	c := NewCollector(store, logger, WithSources(broken, ok), WithClock(func() time.Time { return t0 }))

	assert.Equal(t, 1, c.SampleNow(context.Background()))
	assert.Contains(t, logger.Warns(), "ошибка опроса источника метрик")
	assert.Equal(t, 1, broken.calls)
}

func TestCollector_AdvisoryFastPath(t *testing.T) {
	tests := []struct {
		name   string
		metric Metric
		advise bool
	}{
		{"медленная загрузка", Metric{Name: monitoring.MetricLoad, Value: 6200, Tags: map[string]any{"url": "/contracts"}}, true},
		{"загрузка на границе", Metric{Name: monitoring.MetricLoad, Value: 5000}, false},
		{"очень медленный ресурс", Metric{Name: monitoring.MetricSlowResource, Value: 7000, Tags: map[string]any{"url": "/app.js"}}, true},
		{"медленный ресурс ниже порога", Metric{Name: monitoring.MetricSlowResource, Value: 1500}, false},
		{"другая метрика", Metric{Name: monitoring.MetricTTFB, Value: 9000}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &scriptedSource{name: "fake", batches: [][]Metric{{tt.metric}}}
			c, _, adv := newTestCollector(t, WithSources(src))
			c.SampleNow(context.Background())
			if !tt.advise {
				assert.Empty(t, adv.advice)
				return
			}
			require.Len(t, adv.advice, 1)
			assert.Equal(t, tt.metric.Name, adv.advice[0].extra["metric"])
		})
	}
	t.Run("текст предупреждения", func(t *testing.T) {
		src := &scriptedSource{name: "fake", batches: [][]Metric{{{Name: monitoring.MetricLoad, Value: 6200.4}}}}
		c, _, adv := newTestCollector(t, WithSources(src))
		c.SampleNow(context.Background())
		require.Len(t, adv.advice, 1)
		assert.Equal(t, "Медленная загрузка страницы: 6200 мс", adv.advice[0].message)
	})
}

func TestCollector_ObserveNavigationBeacon(t *testing.T) {
	c, store, adv := newTestCollector(t)

	sid, err := c.Observe(Beacon{
		Type:      BeaconNavigation,
		SessionID: "browser-1",
		UserID:    "u1",
		URL:       "https://docs.example.com/contracts?page=2",
		Navigation: &NavigationTiming{
			NavigationStart: 0, RequestStart: 100, ResponseStart: 250, ResponseEnd: 400,
			DOMContentLoadedEventEnd: 2000, DOMComplete: 5500, LoadEventEnd: 6000,
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, sid)
	assert.Equal(t, 0, store.Size(), "измерения ждут опроса очереди")

	assert.Equal(t, 8, c.SampleNow(context.Background()))
	load, ok := store.Latest(monitoring.MetricLoad)
	require.True(t, ok)
	assert.Equal(t, 6000.0, load.Value)
	assert.Equal(t, "/contracts", load.Metadata["url"])
	assert.Equal(t, sid, load.Metadata["sessionId"])
	require.Len(t, adv.advice, 1)

	active := c.Sessions().Active()
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].PageViews)
	assert.Equal(t, []string{"/contracts"}, active[0].Paths)
	assert.Equal(t, 6000.0, active[0].Performance.AvgLoadTime)
	assert.Equal(t, 150.0, active[0].Performance.AvgTTFB)
}

func TestCollector_ObserveSessionLifecycle(t *testing.T) {
	c, _, _ := newTestCollector(t)

	_, err := c.Observe(Beacon{Type: BeaconInteraction, SessionID: "b", Interaction: &Interaction{Kind: "click", Target: "BUTTON"}})
	require.NoError(t, err)
	c.RecordError("b")
	c.RecordError("unknown")

	active := c.Sessions().Active()
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].Interactions)
	assert.Equal(t, 1, active[0].Errors)

	_, err = c.Observe(Beacon{Type: BeaconVisibility, SessionID: "b", Hidden: true})
	require.NoError(t, err)
	assert.Empty(t, c.Sessions().Active())
	all := c.Sessions().All()
	require.Len(t, all, 1)
	require.NotNil(t, all[0].EndTime)

	_, err = c.Observe(Beacon{Type: BeaconVisibility, SessionID: "b"})
	require.NoError(t, err)
	assert.Len(t, c.Sessions().Active(), 1, "возврат на вкладку начинает новую сессию")
}

func TestCollector_ObserveRejectsUnknownType(t *testing.T) {
	c, _, _ := newTestCollector(t)
	_, err := c.Observe(Beacon{Type: "paint"})
	assert.ErrorIs(t, err, ErrBeaconType)
}

func TestCollector_ObserveQueueFull(t *testing.T) {
	c, _, _ := newTestCollector(t, WithBeaconSource(NewBeaconSource(1)))
	beacon := Beacon{Type: BeaconVitals, Vitals: []Vital{{Name: monitoring.MetricLCP, Value: 1800}}}

	_, err := c.Observe(beacon)
	require.NoError(t, err)
	_, err = c.Observe(beacon)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestCollector_Summary(t *testing.T) {
	c, store, _ := newTestCollector(t)
	add := func(name string, v float64, age time.Duration) {
		store.AddPoint(Metric{Name: name, Value: v, Unit: monitoring.UnitMillis, Timestamp: t0.Add(-age)}.Point())
	}
	add(monitoring.MetricTTFB, 100, time.Hour)
	add(monitoring.MetricTTFB, 300, 2*time.Hour)
	add(monitoring.MetricTTFB, 200, 3*time.Hour)
	add(monitoring.MetricTTFB, 9999, 25*time.Hour)
	add(monitoring.MetricLoad, 4000, time.Minute)
	store.AddPoint(monitoring.TimeSeriesPoint{Timestamp: t0, Value: 1, Category: "javascript",
		Metadata: map[string]any{monitoring.MetaKind: monitoring.KindError}})

	got := c.Summary(0)
	require.Len(t, got, 2)
	assert.Equal(t, monitoring.MetricSummary{Name: monitoring.MetricLoad, Unit: monitoring.UnitMillis, Avg: 4000, Min: 4000, Max: 4000, Count: 1}, got[0])
	assert.Equal(t, monitoring.MetricTTFB, got[1].Name)
	assert.Equal(t, 3, got[1].Count)
	assert.InDelta(t, 200, got[1].Avg, 1e-9)
	assert.Equal(t, 100.0, got[1].Min)
	assert.Equal(t, 300.0, got[1].Max)
}

func TestCollector_RunSamplesImmediately(t *testing.T) {
	src := &scriptedSource{name: "fake", batches: [][]Metric{{{Name: monitoring.MetricMemoryUsage, Value: 40, Unit: monitoring.UnitPercent}}}}
	c, store, _ := newTestCollector(t, WithSources(src), WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.Size() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run не завершился после отмены контекста")
	}
}

func TestCollector_ObserverSeesEveryMetric(t *testing.T) {
	var seen []string
	src := &scriptedSource{name: "fake", batches: [][]Metric{{
		{Name: monitoring.MetricMemoryUsage, Value: 75},
		{Name: monitoring.MetricTTFB, Value: 90},
	}}}
	c, _, _ := newTestCollector(t, WithSources(src), WithObserver(func(_ context.Context, m Metric) {
		seen = append(seen, m.Name)
	}))

	c.SampleNow(context.Background())
	assert.Equal(t, []string{monitoring.MetricMemoryUsage, monitoring.MetricTTFB}, seen)
}
