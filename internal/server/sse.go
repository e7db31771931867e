package server

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

// Имена событий SSE потока активных алертов.
const sseEventAlerts = "alerts"

func prepareSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(200)
}

// alertStream отдаёт список активных алертов сразу и после каждого изменения.
// Промежуточные состояния медленному клиенту не доставляются, только последнее.
func (s *Server) alertStream(c *gin.Context) {
	updates := make(chan []monitoring.AlertEvent, 1)
	unsubscribe := s.pipeline.Alerts().Subscribe(func(active []monitoring.AlertEvent) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- active:
		default:
		}
	})
	defer unsubscribe()

	prepareSSE(c)
	c.SSEvent(sseEventAlerts, s.pipeline.Alerts().Active())
	c.Writer.Flush()

	ping := time.NewTicker(s.cfg.KeepAlive)
	defer ping.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case active := <-updates:
			c.SSEvent(sseEventAlerts, active)
		case <-ping.C:
			if _, err := io.WriteString(c.Writer, ": ping\n\n"); err != nil {
				return
			}
		}
		c.Writer.Flush()
	}
}

// alertFeed транслирует ленту дашборда. Имя события SSE совпадает с типом
// события ленты. Отключённый хабом подписчик получает закрытие потока.
func (s *Server) alertFeed(c *gin.Context) {
	hub := s.pipeline.Feed()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	prepareSSE(c)
	c.Writer.Flush()

	ping := time.NewTicker(s.cfg.KeepAlive)
	defer ping.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				s.logger.Debug("подписчик ленты отключён", "request_id", c.GetString(keyRequestID))
				return
			}
			c.SSEvent(ev.Type, ev)
		case <-ping.C:
			if _, err := io.WriteString(c.Writer, ": ping\n\n"); err != nil {
				return
			}
		}
		c.Writer.Flush()
	}
}
