// Package metrics собирает метрики конвейера ошибок в Prometheus.
//
// Метрики доступны на /metrics сервера и, при заданном Pushgateway,
// периодически отправляются туда. При выключенных метриках используется NopCollector.
package metrics

import (
	"context"
	"net/http"
	"time"
)

// Collector — метрики конвейера.
type Collector interface {
	// RecordEvent учитывает принятое событие ошибки.
	RecordEvent(category, severity string)

	// RecordAlert учитывает сработавший алерт.
	RecordAlert(alertType, severity string)

	// RecordDelivery учитывает попытку доставки алерта в канал.
	RecordDelivery(channel string, duration time.Duration, success bool)

	SetTimeSeriesSize(n int)
	SetActiveAlerts(n int)

	// Handler отдаёт метрики в текстовом формате Prometheus.
	Handler() http.Handler

	// Push отправляет метрики в Pushgateway. Ошибки логируются, результат всегда nil.
	Push(ctx context.Context) error
}
