package alerteval

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errwatch/internal/aggregator"
	"github.com/Kargones/errwatch/internal/alertstate"
	"github.com/Kargones/errwatch/internal/classifier"
	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/perf"
	"github.com/Kargones/errwatch/internal/pkg/testutil"
	"github.com/Kargones/errwatch/internal/timeseries"
)

var t0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []monitoring.AlertEvent
}

func (n *recordingNotifier) Dispatch(a monitoring.AlertEvent) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return true
}

type fixture struct {
	now      time.Time
	agg      *aggregator.Aggregator
	points   *timeseries.Store
	state    *alertstate.Store
	notifier *recordingNotifier
	eval     *Evaluator
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	f := &fixture{now: t0, notifier: &recordingNotifier{}}
	clock := func() time.Time { return f.now }
	f.agg = aggregator.New(aggregator.WithClock(clock))
	f.points = timeseries.New(timeseries.WithClock(clock))
	f.state = alertstate.New(testutil.NewRecordingLogger())

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	f.eval = New(cfg, f.agg, f.points, f.state, f.notifier, testutil.NewRecordingLogger(), WithClock(clock))
	return f
}

func (f *fixture) recordErrors(n int, c monitoring.Category, sev monitoring.Severity, msg string) {
	for range n {
		f.agg.RecordEvent(msg, c, sev, monitoring.ErrorContext{})
	}
}

// recordUserErrors записывает n событий от n разных пользователей.
func (f *fixture) recordUserErrors(n int, c monitoring.Category, sev monitoring.Severity, msg string) {
	for i := range n {
		f.agg.RecordEvent(msg, c, sev, monitoring.ErrorContext{UserID: fmt.Sprintf("u%d", i)})
	}
}

func (f *fixture) addMetric(metric string, value float64) {
	f.points.AddPoint(monitoring.TimeSeriesPoint{
		Timestamp: f.now,
		Value:     value,
		Category:  metric,
		Metadata:  map[string]any{monitoring.MetaKind: monitoring.KindPerf},
	})
}

// spikeThresholds — пороги, при которых 12 ошибок достигают только уровня high.
var spikeThresholds = monitoring.Thresholds{Critical: 100, High: 10, Medium: 50, Low: 200}

// recordClassified записывает n событий с категорией и серьёзностью от классификатора.
func (f *fixture) recordClassified(n int, msg string) (monitoring.Category, monitoring.Severity) {
	c, sev := classifier.Classify(msg, monitoring.ErrorContext{})
	f.recordErrors(n, c, sev, msg)
	return c, sev
}

func TestEvaluator_SpikeThenQuiet(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Thresholds = spikeThresholds })
	c, sev := f.recordClassified(12, "TypeError: x is undefined")
	require.Equal(t, monitoring.CategoryJavaScript, c)
	require.Equal(t, monitoring.SeverityMedium, sev)

	fired := f.eval.CheckErrorSpikes(context.Background())

	require.Len(t, fired, 1)
	assert.Equal(t, monitoring.AlertErrorSpike, fired[0].Type)
	assert.Equal(t, monitoring.SeverityHigh, fired[0].Severity, "уровень определяется суммой категории, а не серьёзностью событий")
	assert.Equal(t, "error_spike_javascript", fired[0].Key)
	assert.Equal(t, "error_spike_javascript_"+fmt.Sprint(t0.UnixMilli()), fired[0].ID)
	assert.Equal(t, 12, fired[0].Data["count"])
	assert.Equal(t, 12, fired[0].Data["total"])
	assert.Equal(t, monitoring.DefaultChannels(monitoring.SeverityHigh), fired[0].Channels)

	f.now = t0.Add(DefaultCooldown + time.Second)
	assert.Empty(t, f.eval.Tick(context.Background()), "без новых событий повторного алерта нет")
	assert.Len(t, f.state.History(0), 1)
	assert.Len(t, f.notifier.alerts, 1)
}

func TestEvaluator_SpikeMixedSeveritiesSummed(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Thresholds = spikeThresholds })
	f.recordErrors(6, monitoring.CategoryNetwork, monitoring.SeverityMedium, "Failed to fetch")
	f.recordErrors(5, monitoring.CategoryNetwork, monitoring.SeverityLow, "net::ERR_CONNECTION_RESET")

	fired := f.eval.CheckErrorSpikes(context.Background())

	require.Len(t, fired, 1)
	assert.Equal(t, monitoring.SeverityHigh, fired[0].Severity)
	assert.Equal(t, 11, fired[0].Data["count"])
}

func TestEvaluator_SpikeCooldownSuppression(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Thresholds = monitoring.Thresholds{Critical: 50, High: 10, Medium: 5, Low: 1}
	})
	f.recordErrors(12, monitoring.CategoryAPI, monitoring.SeverityMedium, "HTTP 503")
	fired := f.eval.CheckErrorSpikes(context.Background())
	require.Len(t, fired, 1)
	assert.Equal(t, monitoring.SeverityHigh, fired[0].Severity)

	f.now = t0.Add(DefaultCooldown / 2)
	f.recordErrors(60, monitoring.CategoryAPI, monitoring.SeverityMedium, "HTTP 500")
	assert.Empty(t, f.eval.CheckErrorSpikes(context.Background()), "условие ухудшилось, но ключ в cooldown")

	f.now = t0.Add(DefaultCooldown + time.Second)
	fired = f.eval.CheckErrorSpikes(context.Background())
	require.Len(t, fired, 1)
	assert.Equal(t, monitoring.SeverityCritical, fired[0].Severity)
	assert.Equal(t, 60, fired[0].Data["count"], "учитываются события с прошлого срабатывания")
	assert.Equal(t, 72, fired[0].Data["total"])
}

func TestEvaluator_SpikeTierFirstMatchWins(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Thresholds = monitoring.Thresholds{Critical: 1, High: 10, Medium: 50, Low: 200}
	})
	f.recordErrors(55, monitoring.CategoryNetwork, monitoring.SeverityLow, "Failed to fetch")

	fired := f.eval.CheckErrorSpikes(context.Background())

	require.Len(t, fired, 1)
	assert.Equal(t, monitoring.SeverityCritical, fired[0].Severity, "первым проверяется critical")
	assert.Equal(t, 1, fired[0].Data["threshold"])
}

func TestEvaluator_SpikeBelowAllTiers(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Thresholds = spikeThresholds })
	f.recordClassified(9, "TypeError: x is undefined")
	assert.Empty(t, f.eval.CheckErrorSpikes(context.Background()))
}

func TestEvaluator_NonPositiveThresholdNeverTrips(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Thresholds = monitoring.Thresholds{Critical: 0, High: -1, Medium: 0, Low: 0, MemoryUsagePercent: 0, ResponseTimeMs: -5, ErrorRatePercent: 0}
	})
	f.recordErrors(500, monitoring.CategoryJavaScript, monitoring.SeverityCritical, "TypeError")
	f.addMetric(monitoring.MetricMemoryUsage, 99)
	f.addMetric(monitoring.MetricLoad, 60_000)

	assert.Empty(t, f.eval.Tick(context.Background()))
}

func TestEvaluator_SpikeOnlyTrackedCategories(t *testing.T) {
	f := newFixture(t, nil)
	f.recordErrors(20, monitoring.CategoryAuthentication, monitoring.SeverityCritical, "Unauthorized")
	assert.Empty(t, f.eval.CheckErrorSpikes(context.Background()))
}

func TestEvaluator_MemoryCritical(t *testing.T) {
	f := newFixture(t, nil)
	f.points.AddPoint(perf.Metric{
		Name:      monitoring.MetricMemoryUsage,
		Value:     92,
		Unit:      monitoring.UnitPercent,
		Timestamp: f.now,
		Tags:      map[string]any{"source": perf.SourceHost},
	}.Point())

	fired := f.eval.CheckMemory(context.Background())

	require.Len(t, fired, 1)
	assert.Equal(t, monitoring.AlertMemoryLeak, fired[0].Type)
	assert.Equal(t, monitoring.SeverityCritical, fired[0].Severity)
	assert.Equal(t, perf.SourceHost, fired[0].Data["source"])
	assert.Equal(t, monitoring.AllChannels(), fired[0].Channels)
	require.Len(t, f.state.Active(), 1)
}

func TestEvaluator_MemoryHighAndBelowThreshold(t *testing.T) {
	f := newFixture(t, nil)
	f.addMetric(monitoring.MetricMemoryUsage, 80)
	assert.Empty(t, f.eval.CheckMemory(context.Background()))

	f.now = t0.Add(time.Second)
	f.addMetric(monitoring.MetricMemoryUsage, 87)
	fired := f.eval.CheckMemory(context.Background())
	require.Len(t, fired, 1)
	assert.Equal(t, monitoring.SeverityHigh, fired[0].Severity)
}

func TestEvaluator_MemoryStalePointAfterCooldown(t *testing.T) {
	f := newFixture(t, nil)
	f.addMetric(monitoring.MetricMemoryUsage, 95)
	require.Len(t, f.eval.CheckMemory(context.Background()), 1)

	f.now = t0.Add(DefaultCooldown + time.Minute)
	assert.Empty(t, f.eval.CheckMemory(context.Background()), "старый замер не поднимает алерт повторно")

	f.addMetric(monitoring.MetricMemoryUsage, 95)
	assert.Len(t, f.eval.CheckMemory(context.Background()), 1)
}

func TestEvaluator_PerformanceSeverity(t *testing.T) {
	tests := []struct {
		name  string
		load  float64
		want  monitoring.Severity
		fires bool
	}{
		{"ниже порога", 4000, "", false},
		{"выше порога", 7000, monitoring.SeverityMedium, true},
		{"вдвое выше порога", 12000, monitoring.SeverityHigh, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.addMetric(monitoring.MetricLoad, tt.load)
			fired := f.eval.CheckPerformance(context.Background())
			if !tt.fires {
				assert.Empty(t, fired)
				return
			}
			require.Len(t, fired, 1)
			assert.Equal(t, tt.want, fired[0].Severity)
			assert.Equal(t, monitoring.AlertPerformanceDegradation, fired[0].Type)
		})
	}
}

func TestEvaluator_UserImpact(t *testing.T) {
	f := newFixture(t, nil)
	f.recordUserErrors(11, monitoring.CategoryAPI, monitoring.SeverityHigh, "HTTP 502")
	f.recordUserErrors(5, monitoring.CategoryNetwork, monitoring.SeverityMedium, "Failed to fetch")

	fired := f.eval.CheckUserImpact(context.Background())

	require.Len(t, fired, 1)
	assert.Equal(t, monitoring.SeverityHigh, fired[0].Severity)
	assert.Equal(t, 11, fired[0].Data["affectedUsers"])
	assert.Equal(t, 1, fired[0].Data["errorTypes"])
}

func TestEvaluator_UserImpactCritical(t *testing.T) {
	f := newFixture(t, nil)
	f.recordUserErrors(101, monitoring.CategoryAPI, monitoring.SeverityHigh, "HTTP 502")

	fired := f.eval.CheckUserImpact(context.Background())
	require.Len(t, fired, 1)
	assert.Equal(t, monitoring.SeverityCritical, fired[0].Severity)
}

func TestEvaluator_ErrorRate(t *testing.T) {
	f := newFixture(t, nil)
	addActions := func(ok, failed int) {
		for i := range ok + failed {
			f.points.AddPoint(monitoring.TimeSeriesPoint{
				Timestamp: f.now,
				Value:     1,
				Category:  monitoring.MetricUserAction,
				Metadata:  map[string]any{monitoring.MetaKind: monitoring.KindAction, monitoring.MetaSuccess: i < ok},
			})
		}
	}

	addActions(5, 4)
	assert.Empty(t, f.eval.CheckErrorRate(context.Background()), "меньше 10 действий")

	addActions(11, 0)
	fired := f.eval.CheckErrorRate(context.Background())
	require.Len(t, fired, 1)
	assert.Equal(t, monitoring.AlertSystemOverload, fired[0].Type)
	assert.Equal(t, monitoring.SeverityHigh, fired[0].Severity, "20% больше удвоенного порога 5%")
}

func TestEvaluator_RunInitialDelay(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.InitialDelay = 10 * time.Millisecond
		c.Interval = time.Hour
	})
	f.addMetric(monitoring.MetricMemoryUsage, 92)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.eval.Run(ctx)

	assert.Eventually(t, func() bool { return len(f.state.Active()) == 1 }, time.Second, 5*time.Millisecond)
}
