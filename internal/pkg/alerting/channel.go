// Package alerting доставляет сработавшие алерты в каналы уведомлений:
// дашборд, webhook, Slack, Microsoft Teams и email.
//
// Доставка в каждый канал независима: ошибка одного канала логируется
// и не мешает остальным.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/logging"
	"github.com/Kargones/errwatch/internal/pkg/urlutil"
)

// Channel — канал доставки алертов.
// В отличие от Dispatcher, Send возвращает ошибку: по ней диспетчер
// определяет, что канал не сработал.
type Channel interface {
	Type() monitoring.ChannelType
	Send(ctx context.Context, alert monitoring.AlertEvent) error
}

// HTTPClient — минимальный HTTP клиент, подменяемый в тестах.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxResponseBodySize ограничивает чтение тела ответа для диагностики.
const maxResponseBodySize = 1024

// userAgent отправляется во всех исходящих запросах.
const userAgent = "errwatch/1.0"

// httpError — ответ сервера с кодом вне 2xx.
type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// isClientHTTPError сообщает об ответе 4xx: такие ошибки не повторяются.
func isClientHTTPError(err error) bool {
	var he *httpError
	return errors.As(err, &he) && he.StatusCode >= 400 && he.StatusCode < 500
}

// poster отправляет JSON POST с повторами и экспоненциальной задержкой 1s, 2s, 4s.
type poster struct {
	client     HTTPClient
	maxRetries int
	headers    map[string]string
	logger     logging.Logger
	// sleep подменяется в тестах, чтобы не ждать задержки.
	sleep func(ctx context.Context, d time.Duration) error
}

func newPoster(timeout time.Duration, maxRetries int, headers map[string]string, logger logging.Logger) poster {
	return poster{
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		headers:    headers,
		logger:     logger,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const maxBackoff = 4 * time.Second

func (p *poster) postWithRetry(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, backoff); err != nil {
				return err
			}
			backoff = min(backoff*2, maxBackoff)
			p.logger.Debug("повтор отправки",
				"attempt", attempt,
				"max_retries", p.maxRetries,
				"error", lastErr.Error(),
				"url", urlutil.MaskURL(url),
			)
		}

		lastErr = p.post(ctx, url, body)
		if lastErr == nil {
			return nil
		}
		if isClientHTTPError(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", p.maxRetries+1, lastErr)
}

func (p *poster) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize)) //nolint:errcheck // дренируем для keep-alive
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	return &httpError{StatusCode: resp.StatusCode, Body: string(data)}
}

// formatValue приводит значение поля алерта к строке для чат-сообщений и писем.
// Составные значения сериализуются в JSON.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case bool, int, int64, float64, float32, int32, uint, uint64:
		return fmt.Sprint(x)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
