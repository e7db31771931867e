package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/Kargones/errwatch/internal/pkg/logging"
	"github.com/Kargones/errwatch/internal/pkg/urlutil"
)

const namespace = "errwatch"

// maxLabelLength ограничивает длину значения label.
const maxLabelLength = 64

// PrometheusCollector хранит метрики в собственном registry.
type PrometheusCollector struct {
	config   Config
	logger   logging.Logger
	registry *prometheus.Registry
	instance string

	events         *prometheus.CounterVec
	alerts         *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	deliveryTime   *prometheus.HistogramVec
	timeSeriesSize prometheus.Gauge
	activeAlerts   prometheus.Gauge
}

// NewPrometheusCollector регистрирует метрики:
//   - errwatch_events_total{category,severity}
//   - errwatch_alerts_total{type,severity}
//   - errwatch_deliveries_total{channel,status}
//   - errwatch_delivery_duration_seconds{channel}
//   - errwatch_timeseries_points
//   - errwatch_active_alerts
func NewPrometheusCollector(cfg Config, logger logging.Logger) (*PrometheusCollector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	instance := cfg.InstanceLabel
	if instance == "" {
		h, err := os.Hostname()
		if err != nil {
			logger.Warn("не удалось получить hostname для label instance", "error", err.Error())
			h = "unknown"
		}
		instance = h
	}

	c := &PrometheusCollector{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		instance: instance,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Captured error events by category and severity",
		}, []string{"category", "severity"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Fired alerts by type and severity",
		}, []string{"type", "severity"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Alert deliveries by channel and status",
		}, []string{"channel", "status"}),
		deliveryTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Alert delivery duration per channel",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"channel"}),
		timeSeriesSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timeseries_points",
			Help:      "Points currently held by the time-series store",
		}),
		activeAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_alerts",
			Help:      "Alerts not yet resolved",
		}),
	}

	for _, m := range []prometheus.Collector{
		c.events, c.alerts, c.deliveries, c.deliveryTime, c.timeSeriesSize, c.activeAlerts,
	} {
		if err := c.registry.Register(m); err != nil {
			return nil, fmt.Errorf("ошибка регистрации метрики: %w", err)
		}
	}

	return c, nil
}

// sanitizeLabel заменяет управляющие символы и обрезает значение по рунам.
func sanitizeLabel(v string) string {
	clean := strings.Map(func(r rune) rune {
		if r < 0x20 {
			return '_'
		}
		return r
	}, v)
	if r := []rune(clean); len(r) > maxLabelLength {
		return string(r[:maxLabelLength])
	}
	return clean
}

func (c *PrometheusCollector) RecordEvent(category, severity string) {
	c.events.WithLabelValues(sanitizeLabel(category), sanitizeLabel(severity)).Inc()
}

func (c *PrometheusCollector) RecordAlert(alertType, severity string) {
	c.alerts.WithLabelValues(sanitizeLabel(alertType), sanitizeLabel(severity)).Inc()
}

func (c *PrometheusCollector) RecordDelivery(channel string, d time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	channel = sanitizeLabel(channel)
	c.deliveries.WithLabelValues(channel, status).Inc()
	c.deliveryTime.WithLabelValues(channel).Observe(d.Seconds())
}

func (c *PrometheusCollector) SetTimeSeriesSize(n int) { c.timeSeriesSize.Set(float64(n)) }
func (c *PrometheusCollector) SetActiveAlerts(n int)   { c.activeAlerts.Set(float64(n)) }

// Handler отдаёт метрики собственного registry.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Push отправляет метрики в Pushgateway, если он настроен.
func (c *PrometheusCollector) Push(ctx context.Context) error {
	if c.config.PushgatewayURL == "" {
		return nil
	}
	if ctx.Err() != nil {
		c.logger.Debug("отправка метрик отменена")
		return nil
	}

	pushCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	err := push.New(c.config.PushgatewayURL, c.config.JobName).
		Gatherer(c.registry).
		Grouping("instance", c.instance).
		PushContext(pushCtx)
	if err != nil {
		c.logger.Error("ошибка отправки метрик в Pushgateway",
			"error", err.Error(),
			"url", urlutil.MaskURL(c.config.PushgatewayURL),
		)
		return nil
	}

	c.logger.Debug("метрики отправлены в Pushgateway", "url", urlutil.MaskURL(c.config.PushgatewayURL))
	return nil
}

// RunPusher отправляет метрики с интервалом PushInterval до отмены ctx.
// Без Pushgateway сразу возвращается.
func (c *PrometheusCollector) RunPusher(ctx context.Context) {
	if c.config.PushgatewayURL == "" {
		return
	}
	ticker := time.NewTicker(c.config.PushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = c.Push(context.WithoutCancel(ctx)) //nolint:errcheck // всегда nil
			return
		case <-ticker.C:
			_ = c.Push(ctx) //nolint:errcheck // всегда nil
		}
	}
}

// GetRegistry возвращает registry. Используется в тестах.
func (c *PrometheusCollector) GetRegistry() *prometheus.Registry { return c.registry }
