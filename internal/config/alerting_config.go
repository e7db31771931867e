package config

import (
	"time"

	"github.com/Kargones/errwatch/internal/pkg/alerting"
)

// AlertingConfig содержит настройки доставки алертов.
type AlertingConfig struct {
	// QueueSize — ёмкость очереди диспетчера.
	QueueSize int `yaml:"queueSize" env:"ERRWATCH_ALERTING_QUEUE_SIZE"`

	// Workers — число воркеров доставки.
	Workers int `yaml:"workers" env:"ERRWATCH_ALERTING_WORKERS"`

	// DeliveryTimeout — таймаут доставки в один канал.
	DeliveryTimeout time.Duration `yaml:"deliveryTimeout" env:"ERRWATCH_ALERTING_DELIVERY_TIMEOUT"`

	Dashboard DashboardChannelConfig `yaml:"dashboard"`
	Webhook   WebhookChannelConfig   `yaml:"webhook"`
	Slack     SlackChannelConfig     `yaml:"slack"`
	Teams     TeamsChannelConfig     `yaml:"teams"`
	Email     EmailChannelConfig     `yaml:"email"`

	Rules AlertRulesConfig `yaml:"rules"`
}

// DashboardChannelConfig — канал дашборда.
type DashboardChannelConfig struct {
	Enabled bool `yaml:"enabled" env:"ERRWATCH_ALERTING_DASHBOARD_ENABLED"`
}

// WebhookChannelConfig содержит настройки webhook канала.
type WebhookChannelConfig struct {
	Enabled bool `yaml:"enabled" env:"ERRWATCH_ALERTING_WEBHOOK_ENABLED"`

	// URLs — алерт уходит на каждый адрес.
	URLs []string `yaml:"urls" env:"ERRWATCH_ALERTING_WEBHOOK_URLS" env-separator:","`

	// Headers — дополнительные HTTP заголовки, в env как "Key:Value,Key2:Value2".
	Headers map[string]string `yaml:"headers" env:"ERRWATCH_ALERTING_WEBHOOK_HEADERS" env-separator:","`

	Timeout    time.Duration `yaml:"timeout" env:"ERRWATCH_ALERTING_WEBHOOK_TIMEOUT"`
	MaxRetries int           `yaml:"maxRetries" env:"ERRWATCH_ALERTING_WEBHOOK_MAX_RETRIES"`
}

// SlackChannelConfig содержит настройки Slack incoming webhook.
type SlackChannelConfig struct {
	Enabled bool `yaml:"enabled" env:"ERRWATCH_ALERTING_SLACK_ENABLED"`

	// WebhookURL — путь адреса сам является секретом.
	WebhookURL string        `yaml:"webhookUrl" env:"ERRWATCH_ALERTING_SLACK_WEBHOOK_URL"`
	Channel    string        `yaml:"channel" env:"ERRWATCH_ALERTING_SLACK_CHANNEL"`
	Username   string        `yaml:"username" env:"ERRWATCH_ALERTING_SLACK_USERNAME"`
	IconEmoji  string        `yaml:"iconEmoji" env:"ERRWATCH_ALERTING_SLACK_ICON"`
	Timeout    time.Duration `yaml:"timeout" env:"ERRWATCH_ALERTING_SLACK_TIMEOUT"`
	MaxRetries int           `yaml:"maxRetries" env:"ERRWATCH_ALERTING_SLACK_MAX_RETRIES"`
}

// TeamsChannelConfig содержит настройки Microsoft Teams incoming webhook.
type TeamsChannelConfig struct {
	Enabled    bool          `yaml:"enabled" env:"ERRWATCH_ALERTING_TEAMS_ENABLED"`
	WebhookURL string        `yaml:"webhookUrl" env:"ERRWATCH_ALERTING_TEAMS_WEBHOOK_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"ERRWATCH_ALERTING_TEAMS_TIMEOUT"`
	MaxRetries int           `yaml:"maxRetries" env:"ERRWATCH_ALERTING_TEAMS_MAX_RETRIES"`
}

// EmailChannelConfig содержит настройки email канала.
type EmailChannelConfig struct {
	Enabled bool `yaml:"enabled" env:"ERRWATCH_ALERTING_EMAIL_ENABLED"`

	SMTPHost     string `yaml:"smtpHost" env:"ERRWATCH_ALERTING_SMTP_HOST"`
	SMTPPort     int    `yaml:"smtpPort" env:"ERRWATCH_ALERTING_SMTP_PORT"`
	SMTPUser     string `yaml:"smtpUser" env:"ERRWATCH_ALERTING_SMTP_USER"`
	SMTPPassword string `yaml:"smtpPassword" env:"ERRWATCH_ALERTING_SMTP_PASSWORD"`

	// UseTLS — StartTLS для 587, implicit TLS для 465.
	UseTLS bool `yaml:"useTLS" env:"ERRWATCH_ALERTING_SMTP_TLS"`

	From string   `yaml:"from" env:"ERRWATCH_ALERTING_EMAIL_FROM"`
	To   []string `yaml:"to" env:"ERRWATCH_ALERTING_EMAIL_TO" env-separator:","`

	// SubjectTemplate — шаблон темы, доступны {{.SeverityUpper}}, {{.Title}}, {{.Type}}.
	SubjectTemplate string        `yaml:"subjectTemplate" env:"ERRWATCH_ALERTING_EMAIL_SUBJECT"`
	Timeout         time.Duration `yaml:"timeout" env:"ERRWATCH_ALERTING_SMTP_TIMEOUT"`
}

// AlertRulesConfig — правила фильтрации алертов перед доставкой.
type AlertRulesConfig struct {
	MinSeverity  string   `yaml:"minSeverity" env:"ERRWATCH_ALERTING_RULES_MIN_SEVERITY"`
	ExcludeTypes []string `yaml:"excludeTypes" env:"ERRWATCH_ALERTING_RULES_EXCLUDE_TYPES" env-separator:","`
	IncludeTypes []string `yaml:"includeTypes" env:"ERRWATCH_ALERTING_RULES_INCLUDE_TYPES" env-separator:","`

	// Channels — правило канала полностью заменяет глобальное. Только YAML.
	Channels map[string]ChannelRuleConfig `yaml:"channels"`
}

// ChannelRuleConfig — правило одного канала.
type ChannelRuleConfig struct {
	MinSeverity  string   `yaml:"minSeverity"`
	ExcludeTypes []string `yaml:"excludeTypes"`
	IncludeTypes []string `yaml:"includeTypes"`
}

func defaultAlertingConfig() AlertingConfig {
	d := alerting.DefaultConfig()
	return AlertingConfig{
		QueueSize:       d.QueueSize,
		Workers:         d.Workers,
		DeliveryTimeout: d.DeliveryTimeout,
		Dashboard:       DashboardChannelConfig{Enabled: d.Dashboard.Enabled},
		Webhook: WebhookChannelConfig{
			Timeout:    d.Webhook.Timeout,
			MaxRetries: d.Webhook.MaxRetries,
		},
		Slack: SlackChannelConfig{
			Channel:    d.Slack.Channel,
			Username:   d.Slack.Username,
			IconEmoji:  d.Slack.IconEmoji,
			Timeout:    d.Slack.Timeout,
			MaxRetries: d.Slack.MaxRetries,
		},
		Teams: TeamsChannelConfig{
			Timeout:    d.Teams.Timeout,
			MaxRetries: d.Teams.MaxRetries,
		},
		Email: EmailChannelConfig{
			SMTPPort:        d.Email.SMTPPort,
			UseTLS:          d.Email.UseTLS,
			SubjectTemplate: d.Email.SubjectTemplate,
			Timeout:         d.Email.Timeout,
		},
		Rules: AlertRulesConfig{MinSeverity: "info"},
	}
}

// ToAlerting переводит раздел в конфигурацию диспетчера.
func (a *AlertingConfig) ToAlerting() alerting.Config {
	return alerting.Config{
		QueueSize:       a.QueueSize,
		Workers:         a.Workers,
		DeliveryTimeout: a.DeliveryTimeout,
		Dashboard:       alerting.DashboardConfig{Enabled: a.Dashboard.Enabled},
		Webhook: alerting.WebhookConfig{
			Enabled:    a.Webhook.Enabled,
			URLs:       a.Webhook.URLs,
			Headers:    a.Webhook.Headers,
			Timeout:    a.Webhook.Timeout,
			MaxRetries: a.Webhook.MaxRetries,
		},
		Slack: alerting.SlackConfig{
			Enabled:    a.Slack.Enabled,
			WebhookURL: a.Slack.WebhookURL,
			Channel:    a.Slack.Channel,
			Username:   a.Slack.Username,
			IconEmoji:  a.Slack.IconEmoji,
			Timeout:    a.Slack.Timeout,
			MaxRetries: a.Slack.MaxRetries,
		},
		Teams: alerting.TeamsConfig{
			Enabled:    a.Teams.Enabled,
			WebhookURL: a.Teams.WebhookURL,
			Timeout:    a.Teams.Timeout,
			MaxRetries: a.Teams.MaxRetries,
		},
		Email: alerting.EmailConfig{
			Enabled:         a.Email.Enabled,
			SMTPHost:        a.Email.SMTPHost,
			SMTPPort:        a.Email.SMTPPort,
			SMTPUser:        a.Email.SMTPUser,
			SMTPPassword:    a.Email.SMTPPassword,
			UseTLS:          a.Email.UseTLS,
			From:            a.Email.From,
			To:              a.Email.To,
			SubjectTemplate: a.Email.SubjectTemplate,
			Timeout:         a.Email.Timeout,
		},
	}
}

// ToRules переводит правила фильтрации.
func (a *AlertingConfig) ToRules() alerting.RulesConfig {
	rules := alerting.RulesConfig{
		MinSeverity:  a.Rules.MinSeverity,
		ExcludeTypes: a.Rules.ExcludeTypes,
		IncludeTypes: a.Rules.IncludeTypes,
	}
	if len(a.Rules.Channels) > 0 {
		rules.Channels = make(map[string]alerting.ChannelRulesConfig, len(a.Rules.Channels))
		for name, r := range a.Rules.Channels {
			rules.Channels[name] = alerting.ChannelRulesConfig{
				MinSeverity:  r.MinSeverity,
				ExcludeTypes: r.ExcludeTypes,
				IncludeTypes: r.IncludeTypes,
			}
		}
	}
	return rules
}
