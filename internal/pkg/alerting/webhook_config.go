package alerting

import (
	"net/url"
	"time"
)

// Значения по умолчанию для HTTP каналов.
const (
	// DefaultWebhookTimeout — таймаут HTTP запросов по умолчанию.
	DefaultWebhookTimeout = 10 * time.Second

	// DefaultMaxRetries — количество повторных попыток по умолчанию.
	DefaultMaxRetries = 3

	DefaultSlackChannel  = "#alerts"
	DefaultSlackUsername = "ErrorBot"
	DefaultSlackIcon     = ":warning:"
)

// WebhookConfig — настройки generic webhook канала.
type WebhookConfig struct {
	Enabled bool

	// URLs — адреса, на каждый из которых уходит алерт.
	URLs []string

	// Headers — дополнительные HTTP заголовки.
	Headers map[string]string

	Timeout    time.Duration
	MaxRetries int
}

// SlackConfig — настройки Slack incoming webhook.
type SlackConfig struct {
	Enabled    bool
	WebhookURL string
	Channel    string
	Username   string
	IconEmoji  string
	Timeout    time.Duration
	MaxRetries int
}

// TeamsConfig — настройки Microsoft Teams incoming webhook.
type TeamsConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
	MaxRetries int
}

// Validate проверяет корректность WebhookConfig.
func (w *WebhookConfig) Validate() error {
	if !w.Enabled {
		return nil
	}
	if len(w.URLs) == 0 {
		return ErrWebhookURLRequired
	}
	for _, rawURL := range w.URLs {
		if !validHTTPURL(rawURL) {
			return ErrWebhookURLInvalid
		}
	}
	for key, value := range w.Headers {
		if containsInvalidHTTPHeaderChars(key) || containsInvalidHTTPHeaderChars(value) {
			return ErrWebhookHeaderInvalid
		}
	}
	return nil
}

// Validate проверяет корректность SlackConfig.
func (s *SlackConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.WebhookURL == "" {
		return ErrSlackURLRequired
	}
	if !validHTTPURL(s.WebhookURL) {
		return ErrWebhookURLInvalid
	}
	return nil
}

// Validate проверяет корректность TeamsConfig.
func (t *TeamsConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	if t.WebhookURL == "" {
		return ErrTeamsURLRequired
	}
	if !validHTTPURL(t.WebhookURL) {
		return ErrWebhookURLInvalid
	}
	return nil
}

// validHTTPURL допускает только http(s) с хостом: file://, ftp:// и прочие схемы отклоняются.
func validHTTPURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// containsInvalidHTTPHeaderChars проверяет наличие запрещённых символов в HTTP заголовке.
// По RFC 7230 HTAB допустим, остальные control characters запрещены.
func containsInvalidHTTPHeaderChars(s string) bool {
	for _, r := range s {
		if r == 0x09 {
			continue
		}
		if r <= 0x1f || r == 0x7f {
			return true
		}
	}
	return false
}

// containsInvalidEmailHeaderChars запрещает все control characters, включая HTAB.
func containsInvalidEmailHeaderChars(s string) bool {
	for _, r := range s {
		if r <= 0x1f || r == 0x7f {
			return true
		}
	}
	return false
}
