package alerting

import (
	"context"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

// Publisher принимает алерты для живой ленты дашборда.
type Publisher interface {
	PublishAlert(alert monitoring.AlertEvent) error
}

// DashboardChannel публикует алерт в ленту дашборда.
type DashboardChannel struct {
	publisher Publisher
}

// NewDashboardChannel создаёт DashboardChannel поверх publisher.
func NewDashboardChannel(publisher Publisher) *DashboardChannel {
	return &DashboardChannel{publisher: publisher}
}

// Type реализует Channel.
func (d *DashboardChannel) Type() monitoring.ChannelType { return monitoring.ChannelDashboard }

// Send реализует Channel.
func (d *DashboardChannel) Send(_ context.Context, alert monitoring.AlertEvent) error {
	if d.publisher == nil {
		return ErrNoPublisher
	}
	return d.publisher.PublishAlert(alert)
}
