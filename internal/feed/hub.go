// Package feed — живая лента дашборда: алерты и служебные события,
// разосланные подписчикам SSE. При наличии Redis лента общая для всех инстансов.
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/logging"
)

// DefaultBuffer — ёмкость буфера одного подписчика.
const DefaultBuffer = 64

// DefaultRedisChannel — pub/sub канал для обмена событиями между инстансами.
const DefaultRedisChannel = "errwatch:feed"

// Типы событий ленты.
const (
	EventAlert          = "alert"
	EventDeliveryFailed = "delivery_failed"
)

// Event — сообщение ленты.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscription — подписка на ленту. C закрывается при отписке
// или когда подписчик не успевает читать.
type Subscription struct {
	C  <-chan Event
	ch chan Event
}

// Hub рассылает события подписчикам. Медленный подписчик отключается,
// публикация никогда не блокируется.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	logger logging.Logger

	redis        *redis.Client
	redisChannel string
	instanceID   string
}

// Option настраивает Hub.
type Option func(*Hub)

// WithBuffer задаёт ёмкость буфера подписчика.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithRedis включает ретрансляцию событий через Redis pub/sub.
func WithRedis(client *redis.Client, channel string) Option {
	return func(h *Hub) {
		h.redis = client
		if channel != "" {
			h.redisChannel = channel
		}
	}
}

// NewHub создаёт Hub.
func NewHub(logger logging.Logger, opts ...Option) *Hub {
	h := &Hub{
		subs:         make(map[*Subscription]struct{}),
		buffer:       DefaultBuffer,
		logger:       logger,
		redisChannel: DefaultRedisChannel,
		instanceID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe регистрирует нового подписчика.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, h.buffer)
	s := &Subscription{C: ch, ch: ch}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Unsubscribe удаляет подписчика; повторный вызов безопасен.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

// Len возвращает число подписчиков.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish рассылает событие локальным подписчикам и, если настроен Redis, другим инстансам.
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	h.broadcast(ev)

	if h.redis == nil {
		return
	}
	data, err := json.Marshal(relayMessage{Origin: h.instanceID, Event: ev})
	if err != nil {
		h.logger.Warn("не удалось сериализовать событие ленты", "error", err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.redis.Publish(ctx, h.redisChannel, data).Err(); err != nil {
		h.logger.Warn("ошибка публикации события ленты в redis", "error", err.Error())
	}
}

// PublishAlert реализует alerting.Publisher.
func (h *Hub) PublishAlert(alert monitoring.AlertEvent) error {
	h.Publish(Event{Type: EventAlert, Payload: alert, Timestamp: alert.Timestamp})
	return nil
}

func (h *Hub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- ev:
		default:
			delete(h.subs, s)
			close(s.ch)
			h.logger.Warn("подписчик ленты не успевает, отключён")
		}
	}
}

type relayMessage struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// Run ретранслирует события других инстансов до отмены ctx.
// Без Redis сразу возвращает управление.
func (h *Hub) Run(ctx context.Context) {
	if h.redis == nil {
		return
	}
	pubsub := h.redis.Subscribe(ctx, h.redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rm relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil {
				h.logger.Debug("некорректное сообщение ленты из redis", "error", err.Error())
				continue
			}
			if rm.Origin == h.instanceID {
				continue
			}
			h.broadcast(rm.Event)
		case <-ctx.Done():
			return
		}
	}
}
