package perf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

func metricsByName(ms []Metric) map[string]Metric {
	out := make(map[string]Metric, len(ms))
	for _, m := range ms {
		out[m.Name] = m
	}
	return out
}

func TestBeacon_NavigationMarks(t *testing.T) {
	b := Beacon{
		Type: BeaconNavigation,
		URL:  "/templates",
		Navigation: &NavigationTiming{
			NavigationStart:   0,
			DomainLookupStart: 5, DomainLookupEnd: 25,
			ConnectStart: 25, ConnectEnd: 70,
			RequestStart: 70, ResponseStart: 190, ResponseEnd: 260,
			DOMContentLoadedEventEnd: 900,
			DOMComplete:              1400,
			LoadEventEnd:             1450,
		},
	}

	got := metricsByName(b.Metrics())
	want := map[string]float64{
		monitoring.MetricTTFB:             120,
		monitoring.MetricDOMContentLoaded: 900,
		monitoring.MetricLoad:             1450,
		monitoring.MetricDNSLookup:        20,
		monitoring.MetricTCPConnect:       45,
		monitoring.MetricRequest:          120,
		monitoring.MetricResponse:         70,
		monitoring.MetricDOMProcessing:    1140,
	}
	require.Len(t, got, len(want))
	for name, v := range want {
		assert.Equal(t, v, got[name].Value, name)
		assert.Equal(t, monitoring.UnitMillis, got[name].Unit, name)
		assert.Equal(t, "/templates", got[name].Tags["url"], name)
	}
}

func TestBeacon_NavigationWithoutTiming(t *testing.T) {
	assert.Empty(t, Beacon{Type: BeaconNavigation}.Metrics())
}

func TestBeacon_SlowResourcesOnly(t *testing.T) {
	b := Beacon{Type: BeaconResource, Resources: []ResourceTiming{
		{Name: "/fast.css", InitiatorType: "link", StartTime: 10, ResponseEnd: 300, TransferSize: 2048},
		{Name: "/exact.js", InitiatorType: "script", StartTime: 0, ResponseEnd: 1000},
		{Name: "/slow.js", InitiatorType: "script", StartTime: 100, RequestStart: 200, ResponseStart: 900, ResponseEnd: 1600},
	}}

	ms := b.Metrics()
	require.Len(t, ms, 1)
	m := ms[0]
	assert.Equal(t, monitoring.MetricSlowResource, m.Name)
	assert.Equal(t, 1500.0, m.Value)
	assert.Equal(t, "/slow.js", m.Tags["url"])
	assert.Equal(t, "script", m.Tags["resourceType"])
	assert.Equal(t, true, m.Tags["cached"])
	assert.Equal(t, 700.0, m.Metadata["requestTime"])
	assert.Equal(t, 700.0, m.Metadata["responseTime"])
}

func TestBeacon_Vitals(t *testing.T) {
	b := Beacon{Type: BeaconVitals, URL: "/editor", Vitals: []Vital{
		{Name: monitoring.MetricLCP, Value: 2400},
		{Name: monitoring.MetricFID, Value: 12, EventType: "click", Target: "BUTTON"},
		{Name: monitoring.MetricCLS, Value: 0.12, Sources: 3},
		{Name: monitoring.MetricFCP, Value: 800, URL: "/other"},
		{Name: "INP", Value: 90},
	}}

	got := metricsByName(b.Metrics())
	require.Len(t, got, 4, "неизвестные показатели пропускаются")
	assert.Equal(t, "unknown", got[monitoring.MetricLCP].Tags["element"])
	assert.Equal(t, "/editor", got[monitoring.MetricLCP].Tags["url"])
	assert.Equal(t, "BUTTON", got[monitoring.MetricFID].Tags["target"])
	assert.Equal(t, monitoring.UnitScore, got[monitoring.MetricCLS].Unit)
	assert.Equal(t, 3, got[monitoring.MetricCLS].Tags["sources"])
	assert.Equal(t, "/other", got[monitoring.MetricFCP].Tags["url"])
}

func TestBeacon_Memory(t *testing.T) {
	b := Beacon{Type: BeaconMemory, Memory: &HeapMemory{
		UsedJSHeapSize: 460 * bytesPerMB, TotalJSHeapSize: 480 * bytesPerMB, JSHeapSizeLimit: 500 * bytesPerMB,
	}}
	ms := b.Metrics()
	require.Len(t, ms, 1)
	assert.Equal(t, monitoring.MetricMemoryUsage, ms[0].Name)
	assert.InDelta(t, 92.0, ms[0].Value, 1e-9)
	assert.Equal(t, SourceBeacon, ms[0].Tags["source"])

	assert.Empty(t, Beacon{Type: BeaconMemory, Memory: &HeapMemory{UsedJSHeapSize: 1}}.Metrics(), "без предела кучи точка не строится")
}

func TestBeacon_Path(t *testing.T) {
	assert.Equal(t, "/a/b", Beacon{URL: "https://host/a/b?x=1"}.Path())
	assert.Equal(t, "/a", Beacon{URL: "/a"}.Path())
	assert.Equal(t, "", Beacon{}.Path())
}

func TestBeaconSource_DrainsQueue(t *testing.T) {
	src := NewBeaconSource(4)
	for range 3 {
		require.NoError(t, src.Enqueue(Beacon{Type: BeaconVitals, Vitals: []Vital{{Name: monitoring.MetricLCP, Value: 1}}}))
	}
	require.NoError(t, src.Enqueue(Beacon{Type: BeaconInteraction}))
	assert.ErrorIs(t, src.Enqueue(Beacon{Type: BeaconVitals}), ErrQueueFull)

	ms, err := src.Sample(context.Background())
	require.NoError(t, err)
	assert.Len(t, ms, 3)
	assert.Equal(t, 0, src.Len())
}

func TestMetric_Point(t *testing.T) {
	m := Metric{
		Name: monitoring.MetricLoad, Value: 10, Unit: monitoring.UnitMillis, Timestamp: t0,
		Tags:      map[string]any{"url": "/", monitoring.MetaKind: "spoofed"},
		Metadata:  map[string]any{"extra": 1},
		SessionID: "session_x",
	}
	p := m.Point()
	assert.Equal(t, monitoring.MetricLoad, p.Category)
	assert.Equal(t, monitoring.KindPerf, p.Kind())
	assert.Equal(t, "/", p.Metadata["url"])
	assert.Equal(t, 1, p.Metadata["extra"])
	assert.Equal(t, "session_x", p.Metadata["sessionId"])
	assert.Equal(t, monitoring.MetricLoad, p.Metadata[monitoring.MetaName])
}
