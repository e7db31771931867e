package alerting

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/logging"
	"github.com/Kargones/errwatch/internal/pkg/urlutil"
)

// slackColors — цвет полосы вложения по серьёзности.
var slackColors = map[monitoring.Severity]string{
	monitoring.SeverityCritical: "danger",
	monitoring.SeverityHigh:     "warning",
	monitoring.SeverityMedium:   "#ffaa00",
	monitoring.SeverityLow:      "good",
	monitoring.SeverityInfo:     "#439FE0",
}

type slackPayload struct {
	Channel     string            `json:"channel"`
	Username    string            `json:"username"`
	IconEmoji   string            `json:"icon_emoji"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// SlackChannel отправляет алерт в Slack incoming webhook.
type SlackChannel struct {
	config SlackConfig
	logger logging.Logger
	poster poster
}

// NewSlackChannel создаёт SlackChannel, подставляя умолчания для пустых полей.
func NewSlackChannel(config SlackConfig, logger logging.Logger) *SlackChannel {
	if config.Channel == "" {
		config.Channel = DefaultSlackChannel
	}
	if config.Username == "" {
		config.Username = DefaultSlackUsername
	}
	if config.IconEmoji == "" {
		config.IconEmoji = DefaultSlackIcon
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultWebhookTimeout
	}
	return &SlackChannel{
		config: config,
		logger: logger,
		poster: newPoster(timeout, config.MaxRetries, nil, logger),
	}
}

// SetHTTPClient устанавливает кастомный HTTPClient (для тестирования).
func (s *SlackChannel) SetHTTPClient(client HTTPClient) {
	s.poster.client = client
}

// Type реализует Channel.
func (s *SlackChannel) Type() monitoring.ChannelType { return monitoring.ChannelSlack }

// Send реализует Channel.
func (s *SlackChannel) Send(ctx context.Context, alert monitoring.AlertEvent) error {
	if err := s.poster.postWithRetry(ctx, s.config.WebhookURL, s.payload(alert)); err != nil {
		return fmt.Errorf("slack %s: %w", urlutil.MaskURL(s.config.WebhookURL), err)
	}
	s.logger.Debug("slack алерт отправлен", "alert_id", alert.ID)
	return nil
}

func (s *SlackChannel) payload(alert monitoring.AlertEvent) slackPayload {
	fields := make([]slackField, 0, len(alert.Data))
	for _, k := range sortedKeys(alert.Data) {
		fields = append(fields, slackField{Title: k, Value: formatValue(alert.Data[k]), Short: true})
	}
	return slackPayload{
		Channel:   s.config.Channel,
		Username:  s.config.Username,
		IconEmoji: s.config.IconEmoji,
		Attachments: []slackAttachment{{
			Color:  slackColors[alert.Severity],
			Title:  alert.Title,
			Text:   alert.Message,
			Fields: fields,
			Ts:     alert.Timestamp.Unix(),
		}},
	}
}

// sortedKeys делает порядок полей в сообщениях детерминированным.
func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
