package alerting

import (
	"context"
	"fmt"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/logging"
	"github.com/Kargones/errwatch/internal/pkg/urlutil"
)

var teamsColors = map[monitoring.Severity]string{
	monitoring.SeverityCritical: "FF0000",
	monitoring.SeverityHigh:     "FF6600",
	monitoring.SeverityMedium:   "FFAA00",
	monitoring.SeverityLow:      "00FF00",
	monitoring.SeverityInfo:     "0078D7",
}

// teamsCard — legacy MessageCard для incoming webhook.
type teamsCard struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor"`
	Summary    string         `json:"summary"`
	Sections   []teamsSection `json:"sections"`
}

type teamsSection struct {
	ActivityTitle    string      `json:"activityTitle"`
	ActivitySubtitle string      `json:"activitySubtitle"`
	Facts            []teamsFact `json:"facts"`
	Markdown         bool        `json:"markdown"`
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TeamsChannel отправляет алерт в Microsoft Teams.
type TeamsChannel struct {
	config TeamsConfig
	logger logging.Logger
	poster poster
}

// NewTeamsChannel создаёт TeamsChannel.
func NewTeamsChannel(config TeamsConfig, logger logging.Logger) *TeamsChannel {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultWebhookTimeout
	}
	return &TeamsChannel{
		config: config,
		logger: logger,
		poster: newPoster(timeout, config.MaxRetries, nil, logger),
	}
}

// SetHTTPClient устанавливает кастомный HTTPClient (для тестирования).
func (t *TeamsChannel) SetHTTPClient(client HTTPClient) {
	t.poster.client = client
}

// Type реализует Channel.
func (t *TeamsChannel) Type() monitoring.ChannelType { return monitoring.ChannelTeams }

// Send реализует Channel.
func (t *TeamsChannel) Send(ctx context.Context, alert monitoring.AlertEvent) error {
	if err := t.poster.postWithRetry(ctx, t.config.WebhookURL, newTeamsCard(alert)); err != nil {
		return fmt.Errorf("teams %s: %w", urlutil.MaskURL(t.config.WebhookURL), err)
	}
	t.logger.Debug("teams алерт отправлен", "alert_id", alert.ID)
	return nil
}

func newTeamsCard(alert monitoring.AlertEvent) teamsCard {
	facts := make([]teamsFact, 0, len(alert.Data))
	for _, k := range sortedKeys(alert.Data) {
		facts = append(facts, teamsFact{Name: k, Value: formatValue(alert.Data[k])})
	}
	return teamsCard{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: teamsColors[alert.Severity],
		Summary:    alert.Title,
		Sections: []teamsSection{{
			ActivityTitle:    alert.Title,
			ActivitySubtitle: alert.Message,
			Facts:            facts,
			Markdown:         true,
		}},
	}
}
