package alerting

import "time"

// Значения по умолчанию для конфигурации alerting.
const (
	// DefaultQueueSize — ёмкость очереди алертов, ожидающих доставки.
	DefaultQueueSize = 256

	// DefaultWorkers — число горутин, разбирающих очередь.
	DefaultWorkers = 2

	// DefaultDeliveryTimeout ограничивает доставку одного алерта в один канал.
	DefaultDeliveryTimeout = 30 * time.Second

	// DefaultSMTPPort — порт SMTP по умолчанию (StartTLS).
	DefaultSMTPPort = 587

	// DefaultSMTPTimeout — таймаут SMTP операций по умолчанию.
	DefaultSMTPTimeout = 30 * time.Second

	// DefaultSubjectTemplate — шаблон темы письма по умолчанию.
	DefaultSubjectTemplate = "[{{.SeverityUpper}}] {{.Title}}"
)

// Config содержит настройки доставки алертов.
type Config struct {
	// QueueSize — ёмкость очереди; при переполнении новый алерт отбрасывается.
	QueueSize int

	// Workers — число воркеров доставки.
	Workers int

	// DeliveryTimeout — таймаут доставки в один канал.
	DeliveryTimeout time.Duration

	Dashboard DashboardConfig
	Webhook   WebhookConfig
	Slack     SlackConfig
	Teams     TeamsConfig
	Email     EmailConfig
}

// DashboardConfig — настройки канала дашборда.
type DashboardConfig struct {
	Enabled bool
}

// EmailConfig содержит настройки email канала.
type EmailConfig struct {
	Enabled bool

	// SMTPHost — адрес SMTP сервера.
	SMTPHost string

	// SMTPPort — порт SMTP сервера (25, 465, 587).
	SMTPPort int

	SMTPUser     string
	SMTPPassword string

	// UseTLS — StartTLS для 587, implicit TLS для 465.
	UseTLS bool

	From string
	To   []string

	// SubjectTemplate — шаблон темы письма.
	// Доступны {{.SeverityUpper}}, {{.Title}}, {{.Type}}.
	SubjectTemplate string

	Timeout time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию: включён только дашборд.
func DefaultConfig() Config {
	return Config{
		QueueSize:       DefaultQueueSize,
		Workers:         DefaultWorkers,
		DeliveryTimeout: DefaultDeliveryTimeout,
		Dashboard:       DashboardConfig{Enabled: true},
		Webhook: WebhookConfig{
			Timeout:    DefaultWebhookTimeout,
			MaxRetries: DefaultMaxRetries,
		},
		Slack: SlackConfig{
			Channel:    DefaultSlackChannel,
			Username:   DefaultSlackUsername,
			IconEmoji:  DefaultSlackIcon,
			Timeout:    DefaultWebhookTimeout,
			MaxRetries: DefaultMaxRetries,
		},
		Teams: TeamsConfig{
			Timeout:    DefaultWebhookTimeout,
			MaxRetries: DefaultMaxRetries,
		},
		Email: EmailConfig{
			SMTPPort:        DefaultSMTPPort,
			UseTLS:          true,
			SubjectTemplate: DefaultSubjectTemplate,
			Timeout:         DefaultSMTPTimeout,
		},
	}
}

// Validate проверяет конфигурацию всех включённых каналов.
func (c *Config) Validate() error {
	if c.QueueSize <= 0 {
		return ErrInvalidQueueSize
	}
	if err := c.Webhook.Validate(); err != nil {
		return err
	}
	if err := c.Slack.Validate(); err != nil {
		return err
	}
	if err := c.Teams.Validate(); err != nil {
		return err
	}
	return c.Email.Validate()
}

// Validate проверяет корректность EmailConfig.
func (e *EmailConfig) Validate() error {
	if !e.Enabled {
		return nil
	}
	if e.SMTPHost == "" {
		return ErrSMTPHostRequired
	}
	if e.From == "" {
		return ErrFromRequired
	}
	// Управляющие символы в адресах позволили бы внедрить SMTP заголовки.
	if containsInvalidEmailHeaderChars(e.From) {
		return ErrEmailAddressInvalid
	}
	if len(e.To) == 0 {
		return ErrToRequired
	}
	for _, to := range e.To {
		if containsInvalidEmailHeaderChars(to) {
			return ErrEmailAddressInvalid
		}
	}
	return nil
}
