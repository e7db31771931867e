// Package alertstate хранит активные алерты и ограниченную историю срабатываний
// и уведомляет подписчиков дашборда об изменениях.
package alertstate

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/logging"
)

// DefaultHistoryLimit — максимальная длина истории.
const DefaultHistoryLimit = 1000

// Listener получает список активных алертов после каждого изменения.
// Слушатель может читать Store, но не должен его изменять.
type Listener func(active []monitoring.AlertEvent)

// Store — активные алерты и история. Запись в истории и активная запись
// указывают на один объект, поэтому устранение видно в обоих местах.
type Store struct {
	mu       sync.Mutex
	active   map[string]*monitoring.AlertEvent
	history  []*monitoring.AlertEvent
	limit    int
	now      func() time.Time
	onChange func(active int)

	// notifyMu удерживается от изменения до конца доставки, поэтому
	// слушатели получают списки в порядке изменений.
	notifyMu  sync.Mutex
	subMu     sync.Mutex
	listeners map[int]Listener
	nextID    int

	logger logging.Logger
}

// Option настраивает Store.
type Option func(*Store)

// WithHistoryLimit задаёт ёмкость истории.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithOnChange вызывается с числом активных алертов после каждого изменения.
func WithOnChange(fn func(active int)) Option { return func(s *Store) { s.onChange = fn } }

// New создаёт пустой Store.
func New(logger logging.Logger, opts ...Option) *Store {
	s := &Store{
		active:    make(map[string]*monitoring.AlertEvent),
		limit:     DefaultHistoryLimit,
		now:       time.Now,
		listeners: make(map[int]Listener),
		logger:    logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Record добавляет сработавший алерт в активные и в историю.
func (s *Store) Record(alert monitoring.AlertEvent) {
	a := alert.Clone()
	a.Resolved = false
	a.ResolvedAt = nil

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	s.active[a.ID] = &a
	s.history = append(s.history, &a)
	if over := len(s.history) - s.limit; over > 0 {
		clear(s.history[:over])
		s.history = slices.Delete(s.history, 0, over)
	}
	active := s.activeLocked()
	s.mu.Unlock()

	s.notify(active)
}

// Resolve помечает активный алерт устранённым и убирает его из активных.
// Возвращает false, если активного алерта с таким id нет.
func (s *Store) Resolve(id string) (monitoring.AlertEvent, bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	a, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		return monitoring.AlertEvent{}, false
	}
	now := s.now()
	a.Resolved = true
	a.ResolvedAt = &now
	delete(s.active, id)
	resolved := a.Clone()
	active := s.activeLocked()
	s.mu.Unlock()

	s.notify(active)
	return resolved, true
}

// Active возвращает активные алерты, новые первыми.
func (s *Store) Active() []monitoring.AlertEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

func (s *Store) activeLocked() []monitoring.AlertEvent {
	out := make([]monitoring.AlertEvent, 0, len(s.active))
	for _, a := range s.active {
		out = append(out, a.Clone())
	}
	slices.SortFunc(out, func(x, y monitoring.AlertEvent) int {
		if c := y.Timestamp.Compare(x.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	return out
}

// History возвращает последние limit записей истории, новые первыми.
// limit <= 0 возвращает всю историю.
func (s *Store) History(limit int) []monitoring.AlertEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]monitoring.AlertEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.history[i].Clone())
	}
	return out
}

// Subscribe регистрирует слушателя и возвращает функцию отписки.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.listeners, id)
		s.subMu.Unlock()
	}
}

// notify вызывается под notifyMu, но вне s.mu: слушатель может читать Store.
func (s *Store) notify(active []monitoring.AlertEvent) {
	if s.onChange != nil {
		s.onChange(len(active))
	}

	s.subMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.subMu.Unlock()

	for _, l := range listeners {
		s.call(l, active)
	}
}

func (s *Store) call(l Listener, active []monitoring.AlertEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("паника в подписчике алертов", "panic", r)
		}
	}()
	l(slices.Clone(active))
}
