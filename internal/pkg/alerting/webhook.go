package alerting

import (
	"context"
	"errors"
	"os"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/logging"
	"github.com/Kargones/errwatch/internal/pkg/urlutil"
)

// isoMillis — формат метки времени в payload (ISO-8601, миллисекунды, UTC).
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// WebhookPayload — JSON тело generic webhook.
type WebhookPayload struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Severity  string         `json:"severity"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
}

// WebhookChannel отправляет алерт POST запросом на каждый настроенный URL.
type WebhookChannel struct {
	config WebhookConfig
	logger logging.Logger
	poster poster
}

// NewWebhookChannel создаёт WebhookChannel. Имя хоста передаётся заголовком X-Errwatch-Host.
func NewWebhookChannel(config WebhookConfig, logger logging.Logger) *WebhookChannel {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultWebhookTimeout
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	headers := make(map[string]string, len(config.Headers)+1)
	headers["X-Errwatch-Host"] = hostname
	for k, v := range config.Headers {
		headers[k] = v
	}

	return &WebhookChannel{
		config: config,
		logger: logger,
		poster: newPoster(timeout, config.MaxRetries, headers, logger),
	}
}

// SetHTTPClient устанавливает кастомный HTTPClient (для тестирования).
func (w *WebhookChannel) SetHTTPClient(client HTTPClient) {
	w.poster.client = client
}

// Type реализует Channel.
func (w *WebhookChannel) Type() monitoring.ChannelType { return monitoring.ChannelWebhook }

// Send отправляет алерт на все URL. Ошибка одного URL не прерывает отправку на остальные;
// возвращается объединение ошибок.
func (w *WebhookChannel) Send(ctx context.Context, alert monitoring.AlertEvent) error {
	payload := newWebhookPayload(alert)

	var errs []error
	for _, u := range w.config.URLs {
		if err := w.poster.postWithRetry(ctx, u, payload); err != nil {
			w.logger.Warn("ошибка отправки webhook",
				"url", urlutil.MaskURL(u),
				"alert_id", alert.ID,
				"error", err.Error(),
			)
			errs = append(errs, err)
			continue
		}
		w.logger.Debug("webhook алерт отправлен", "url", urlutil.MaskURL(u), "alert_id", alert.ID)
	}
	return errors.Join(errs...)
}

func newWebhookPayload(alert monitoring.AlertEvent) WebhookPayload {
	data := alert.Data
	if data == nil {
		data = map[string]any{}
	}
	return WebhookPayload{
		ID:        alert.ID,
		Type:      string(alert.Type),
		Severity:  string(alert.Severity),
		Title:     alert.Title,
		Message:   alert.Message,
		Data:      data,
		Timestamp: alert.Timestamp.UTC().Format(isoMillis),
	}
}
