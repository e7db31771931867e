package perf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

// BeaconType — вид beacon-а, присланного браузером.
type BeaconType string

const (
	BeaconVitals      BeaconType = "vitals"
	BeaconNavigation  BeaconType = "navigation"
	BeaconResource    BeaconType = "resource"
	BeaconVisibility  BeaconType = "visibility"
	BeaconInteraction BeaconType = "interaction"
	BeaconMemory      BeaconType = "memory"
)

// SlowResourceMs — порог длительности загрузки ресурса для SLOW_RESOURCE.
const SlowResourceMs = 1000

// Ошибки приёма beacon-ов.
var (
	ErrBeaconType = errors.New("неизвестный тип beacon")
	ErrQueueFull  = errors.New("очередь beacon-ов переполнена")
)

// Vital — одно значение web vitals.
type Vital struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Element   string  `json:"element,omitempty"`
	URL       string  `json:"url,omitempty"`
	EventType string  `json:"eventType,omitempty"`
	Target    string  `json:"target,omitempty"`
	Sources   int     `json:"sources,omitempty"`
}

// NavigationTiming — отметки PerformanceNavigationTiming в миллисекундах.
type NavigationTiming struct {
	NavigationStart          float64 `json:"navigationStart"`
	DomainLookupStart        float64 `json:"domainLookupStart"`
	DomainLookupEnd          float64 `json:"domainLookupEnd"`
	ConnectStart             float64 `json:"connectStart"`
	ConnectEnd               float64 `json:"connectEnd"`
	RequestStart             float64 `json:"requestStart"`
	ResponseStart            float64 `json:"responseStart"`
	ResponseEnd              float64 `json:"responseEnd"`
	DOMContentLoadedEventEnd float64 `json:"domContentLoadedEventEnd"`
	DOMComplete              float64 `json:"domComplete"`
	LoadEventEnd             float64 `json:"loadEventEnd"`
}

// ResourceTiming — отметки PerformanceResourceTiming в миллисекундах.
type ResourceTiming struct {
	Name              string  `json:"name"`
	InitiatorType     string  `json:"initiatorType"`
	TransferSize      float64 `json:"transferSize"`
	StartTime         float64 `json:"startTime"`
	DomainLookupStart float64 `json:"domainLookupStart"`
	DomainLookupEnd   float64 `json:"domainLookupEnd"`
	ConnectStart      float64 `json:"connectStart"`
	ConnectEnd        float64 `json:"connectEnd"`
	RequestStart      float64 `json:"requestStart"`
	ResponseStart     float64 `json:"responseStart"`
	ResponseEnd       float64 `json:"responseEnd"`
}

// Duration возвращает время загрузки ресурса.
func (r ResourceTiming) Duration() float64 { return r.ResponseEnd - r.StartTime }

// HeapMemory — сведения performance.memory браузера.
type HeapMemory struct {
	UsedJSHeapSize  float64 `json:"usedJSHeapSize"`
	TotalJSHeapSize float64 `json:"totalJSHeapSize"`
	JSHeapSizeLimit float64 `json:"jsHeapSizeLimit"`
}

// Interaction — действие пользователя на странице.
type Interaction struct {
	Kind   string `json:"kind"`
	Target string `json:"target,omitempty"`
}

// Beacon — сообщение браузера о производительности и активности сессии.
// SessionID задаёт браузер; серверный идентификатор сессии выдаёт Sessions.
type Beacon struct {
	Type        BeaconType        `json:"type"`
	SessionID   string            `json:"sessionId,omitempty"`
	UserID      string            `json:"userId,omitempty"`
	URL         string            `json:"url,omitempty"`
	UserAgent   string            `json:"userAgent,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Vitals      []Vital           `json:"vitals,omitempty"`
	Navigation  *NavigationTiming `json:"navigation,omitempty"`
	Resources   []ResourceTiming  `json:"resources,omitempty"`
	Hidden      bool              `json:"hidden,omitempty"`
	Interaction *Interaction      `json:"interaction,omitempty"`
	Memory      *HeapMemory       `json:"memory,omitempty"`

	session string
}

// Validate проверяет тип beacon-а.
func (b Beacon) Validate() error {
	switch b.Type {
	case BeaconVitals, BeaconNavigation, BeaconResource, BeaconVisibility, BeaconInteraction, BeaconMemory:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrBeaconType, string(b.Type))
	}
}

// Path возвращает путь страницы из URL beacon-а.
func (b Beacon) Path() string {
	if b.URL == "" {
		return ""
	}
	u, err := url.Parse(b.URL)
	if err != nil || u.Path == "" {
		return b.URL
	}
	return u.Path
}

var vitalUnits = map[string]string{
	monitoring.MetricLCP: monitoring.UnitMillis,
	monitoring.MetricFID: monitoring.UnitMillis,
	monitoring.MetricFCP: monitoring.UnitMillis,
	monitoring.MetricCLS: monitoring.UnitScore,
}

// Metrics преобразует beacon в измерения. Beacon-ы видимости и взаимодействия
// измерений не дают.
func (b Beacon) Metrics() []Metric {
	at := b.Timestamp
	path := b.Path()
	var out []Metric
	add := func(name string, value float64, unit string, tags, meta map[string]any) {
		out = append(out, Metric{
			Name: name, Value: value, Unit: unit, Timestamp: at,
			Tags: tags, Metadata: meta, SessionID: b.session,
		})
	}

	switch b.Type {
	case BeaconVitals:
		for _, v := range b.Vitals {
			unit, ok := vitalUnits[v.Name]
			if !ok {
				continue
			}
			tags := map[string]any{"url": firstNonEmpty(v.URL, path)}
			switch v.Name {
			case monitoring.MetricLCP:
				tags["element"] = firstNonEmpty(v.Element, "unknown")
			case monitoring.MetricFID:
				tags["eventType"] = v.EventType
				tags["target"] = firstNonEmpty(v.Target, "unknown")
			case monitoring.MetricCLS:
				tags["sources"] = v.Sources
			}
			add(v.Name, v.Value, unit, tags, nil)
		}

	case BeaconNavigation:
		n := b.Navigation
		if n == nil {
			return nil
		}
		marks := []struct {
			name  string
			value float64
		}{
			{monitoring.MetricTTFB, n.ResponseStart - n.RequestStart},
			{monitoring.MetricDOMContentLoaded, n.DOMContentLoadedEventEnd - n.NavigationStart},
			{monitoring.MetricLoad, n.LoadEventEnd - n.NavigationStart},
			{monitoring.MetricDNSLookup, n.DomainLookupEnd - n.DomainLookupStart},
			{monitoring.MetricTCPConnect, n.ConnectEnd - n.ConnectStart},
			{monitoring.MetricRequest, n.ResponseStart - n.RequestStart},
			{monitoring.MetricResponse, n.ResponseEnd - n.ResponseStart},
			{monitoring.MetricDOMProcessing, n.DOMComplete - n.ResponseEnd},
		}
		for _, m := range marks {
			add(m.name, m.value, monitoring.UnitMillis, map[string]any{"url": path}, nil)
		}

	case BeaconResource:
		for _, r := range b.Resources {
			d := r.Duration()
			if d <= SlowResourceMs {
				continue
			}
			add(monitoring.MetricSlowResource, d, monitoring.UnitMillis,
				map[string]any{
					"resourceType": r.InitiatorType,
					"resourceSize": r.TransferSize,
					"cached":       r.TransferSize == 0,
					"url":          r.Name,
				},
				map[string]any{
					"startTime":        r.StartTime,
					"responseEnd":      r.ResponseEnd,
					"domainLookupTime": r.DomainLookupEnd - r.DomainLookupStart,
					"connectTime":      r.ConnectEnd - r.ConnectStart,
					"requestTime":      r.ResponseStart - r.RequestStart,
					"responseTime":     r.ResponseEnd - r.ResponseStart,
				})
		}

	case BeaconMemory:
		m := b.Memory
		if m == nil || m.JSHeapSizeLimit <= 0 {
			return nil
		}
		add(monitoring.MetricMemoryUsage, m.UsedJSHeapSize/m.JSHeapSizeLimit*100, monitoring.UnitPercent,
			map[string]any{
				"source":  SourceBeacon,
				"usedMB":  math.Round(m.UsedJSHeapSize / bytesPerMB),
				"totalMB": math.Round(m.TotalJSHeapSize / bytesPerMB),
				"limitMB": math.Round(m.JSHeapSizeLimit / bytesPerMB),
			},
			map[string]any{
				"usedBytes":  m.UsedJSHeapSize,
				"totalBytes": m.TotalJSHeapSize,
				"limitBytes": m.JSHeapSizeLimit,
			})
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// DefaultBeaconQueue — ёмкость очереди beacon-ов по умолчанию.
const DefaultBeaconQueue = 1024

// BeaconSource — ограниченная очередь beacon-ов между HTTP-обработчиком
// и сборщиком. Sample забирает всё, что накопилось к моменту вызова.
type BeaconSource struct {
	queue chan Beacon
}

// NewBeaconSource создаёт очередь ёмкостью size.
func NewBeaconSource(size int) *BeaconSource {
	if size <= 0 {
		size = DefaultBeaconQueue
	}
	return &BeaconSource{queue: make(chan Beacon, size)}
}

// Name возвращает имя источника.
func (s *BeaconSource) Name() string { return SourceBeacon }

// Enqueue кладёт beacon в очередь без блокировки.
func (s *BeaconSource) Enqueue(b Beacon) error {
	select {
	case s.queue <- b:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len возвращает число ожидающих beacon-ов.
func (s *BeaconSource) Len() int { return len(s.queue) }

// Sample забирает накопленные beacon-ы и возвращает их измерения.
func (s *BeaconSource) Sample(ctx context.Context) ([]Metric, error) {
	var out []Metric
	for range len(s.queue) {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case b := <-s.queue:
			out = append(out, b.Metrics()...)
		default:
			return out, nil
		}
	}
	return out, nil
}
