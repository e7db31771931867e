package alerteval

import (
	"sync"
	"time"
)

// Ledger — журнал последних срабатываний по ключу алерта (cooldown).
// Ключ срабатывает не чаще одного раза за окно, даже если условие
// продолжает выполняться или ухудшается.
//
// Журнал живёт в памяти процесса и при перезапуске начинается с нуля.
type Ledger struct {
	mu     sync.Mutex
	window time.Duration
	fired  map[string]time.Time
	now    func() time.Time
}

// NewLedger создаёт Ledger с указанным окном. Окно <= 0 отключает подавление.
func NewLedger(window time.Duration) *Ledger {
	return &Ledger{
		window: window,
		fired:  make(map[string]time.Time),
		now:    time.Now,
	}
}

// cleanupThreshold — число записей, после которого удаляются истёкшие.
const cleanupThreshold = 100

// Allow проверяет, можно ли сработать ключу, и при true сразу отмечает срабатывание.
// Проверка и отметка атомарны.
func (l *Ledger) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.fired) > cleanupThreshold {
		l.cleanupExpiredLocked(now)
	}
	if last, ok := l.fired[key]; ok && now.Sub(last) < l.window {
		return false
	}
	l.fired[key] = now
	return true
}

// Last возвращает время последнего срабатывания ключа.
func (l *Ledger) Last(key string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.fired[key]
	return t, ok
}

func (l *Ledger) cleanupExpiredLocked(now time.Time) {
	for key, last := range l.fired {
		if now.Sub(last) >= l.window {
			delete(l.fired, key)
		}
	}
}

// Reset забывает срабатывание ключа.
func (l *Ledger) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.fired, key)
}

// SetNowFunc подменяет источник времени (для тестов).
func (l *Ledger) SetNowFunc(fn func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = fn
}
