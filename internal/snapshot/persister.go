package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/Kargones/errwatch/internal/pkg/logging"
)

// DefaultMinInterval — минимальный промежуток между сохранениями.
const DefaultMinInterval = time.Second

// Persister сохраняет снапшот асинхронно. Сигналы об изменениях,
// пришедшие во время записи или паузы между записями, сливаются в одно
// сохранение.
type Persister struct {
	store       Store
	capture     func() Snapshot
	logger      logging.Logger
	minInterval time.Duration
	now         func() time.Time

	signal chan struct{}
	mu     sync.Mutex
}

// PersisterOption настраивает Persister.
type PersisterOption func(*Persister)

// WithMinInterval задаёт паузу после каждого сохранения.
func WithMinInterval(d time.Duration) PersisterOption {
	return func(p *Persister) {
		if d >= 0 {
			p.minInterval = d
		}
	}
}

// WithClock подменяет источник времени lastUpdate.
func WithClock(now func() time.Time) PersisterOption {
	return func(p *Persister) { p.now = now }
}

// NewPersister создаёт Persister. capture вызывается при каждом сохранении
// и должен возвращать согласованную копию состояния.
func NewPersister(store Store, capture func() Snapshot, logger logging.Logger, opts ...PersisterOption) *Persister {
	p := &Persister{
		store:       store,
		capture:     capture,
		logger:      logger.With("component", "snapshot"),
		minInterval: DefaultMinInterval,
		now:         time.Now,
		signal:      make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Notify сообщает об изменении состояния. Не блокирует.
func (p *Persister) Notify() {
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// Run сохраняет снапшот по сигналам Notify до отмены ctx.
// Финальное сохранение выполняет вызывающий через Flush.
func (p *Persister) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.signal:
		}
		if err := p.Flush(ctx); err != nil {
			p.logger.Warn("не удалось сохранить снапшот", "error", err)
		}
		if p.minInterval <= 0 {
			continue
		}
		pause := time.NewTimer(p.minInterval)
		select {
		case <-ctx.Done():
			pause.Stop()
			return
		case <-pause.C:
		}
	}
}

// Flush синхронно сохраняет текущее состояние.
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.capture()
	s.LastUpdate = p.now()
	if err := p.store.Save(ctx, s); err != nil {
		return err
	}
	p.logger.Debug("снапшот сохранён", "points", len(s.TimeSeries), "users", len(s.UserImpact))
	return nil
}
