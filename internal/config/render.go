package config

import (
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/Kargones/errwatch/internal/pkg/urlutil"
)

// Masked возвращает копию конфигурации, безопасную для вывода:
// пароли и секреты заменены, у webhook адресов оставлен только хост.
func (c *Config) Masked() *Config {
	m := *c
	m.Server.AuthSecret = urlutil.MaskSecret(c.Server.AuthSecret)
	m.Server.AllowOrigins = slices.Clone(c.Server.AllowOrigins)

	m.Alerting.Email.SMTPPassword = urlutil.MaskSecret(c.Alerting.Email.SMTPPassword)
	m.Alerting.Email.To = slices.Clone(c.Alerting.Email.To)
	if c.Alerting.Slack.WebhookURL != "" {
		m.Alerting.Slack.WebhookURL = urlutil.MaskURL(c.Alerting.Slack.WebhookURL)
	}
	if c.Alerting.Teams.WebhookURL != "" {
		m.Alerting.Teams.WebhookURL = urlutil.MaskURL(c.Alerting.Teams.WebhookURL)
	}
	m.Alerting.Webhook.URLs = make([]string, 0, len(c.Alerting.Webhook.URLs))
	for _, u := range c.Alerting.Webhook.URLs {
		m.Alerting.Webhook.URLs = append(m.Alerting.Webhook.URLs, urlutil.MaskURL(u))
	}
	if c.Alerting.Webhook.Headers != nil {
		// значения заголовков обычно содержат токены
		m.Alerting.Webhook.Headers = make(map[string]string, len(c.Alerting.Webhook.Headers))
		for k, v := range c.Alerting.Webhook.Headers {
			m.Alerting.Webhook.Headers[k] = urlutil.MaskSecret(v)
		}
	}
	m.Alerting.Rules.Channels = maps.Clone(c.Alerting.Rules.Channels)

	m.Snapshot.Redis.Password = urlutil.MaskSecret(c.Snapshot.Redis.Password)
	m.Sink.ClickHouse.Password = urlutil.MaskSecret(c.Sink.ClickHouse.Password)
	m.Feed.RedisPassword = urlutil.MaskSecret(c.Feed.RedisPassword)
	if c.Metrics.PushgatewayURL != "" {
		m.Metrics.PushgatewayURL = urlutil.MaskURL(c.Metrics.PushgatewayURL)
	}
	return &m
}

// YAML возвращает конфигурацию в YAML без секретов.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Masked())
}
