package alerting

import (
	"fmt"

	"github.com/Kargones/errwatch/internal/pkg/logging"
	"github.com/Kargones/errwatch/internal/pkg/metrics"
)

// New собирает Dispatcher из конфигурации: создаёт включённые каналы,
// правила фильтрации и очередь. publisher нужен только каналу дашборда.
func New(config Config, rules RulesConfig, publisher Publisher, collector metrics.Collector, logger logging.Logger, opts ...Option) (*Dispatcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var channels []Channel
	if config.Dashboard.Enabled {
		channels = append(channels, NewDashboardChannel(publisher))
	}
	if config.Webhook.Enabled {
		channels = append(channels, NewWebhookChannel(config.Webhook, logger))
	}
	if config.Slack.Enabled {
		channels = append(channels, NewSlackChannel(config.Slack, logger))
	}
	if config.Teams.Enabled {
		channels = append(channels, NewTeamsChannel(config.Teams, logger))
	}
	if config.Email.Enabled {
		email, err := NewEmailChannel(config.Email, logger)
		if err != nil {
			return nil, fmt.Errorf("создание email канала: %w", err)
		}
		channels = append(channels, email)
	}

	if len(channels) == 0 {
		logger.Warn("нет включённых каналов доставки, алерты будут только сохраняться")
	}

	// Правило канала полностью заменяет глобальное: без minSeverity канал пропустит info.
	if rules.MinSeverity != "" {
		for name, ch := range rules.Channels {
			if ch.MinSeverity == "" {
				logger.Warn("правило канала без minSeverity, будет использован info",
					"channel", name,
					"global_min_severity", rules.MinSeverity,
				)
			}
		}
	}

	base := []Option{
		WithRules(NewRulesEngine(rules)),
		WithMetrics(collector),
		WithQueueSize(config.QueueSize),
		WithWorkers(config.Workers),
		WithDeliveryTimeout(config.DeliveryTimeout),
	}
	return NewDispatcher(logger, channels, append(base, opts...)...), nil
}
