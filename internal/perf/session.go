package perf

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

// Параметры сессий по умолчанию.
const (
	DefaultSessionRotation = 30 * time.Minute
	DefaultEndedSessions   = 100
)

// running — скользящее среднее.
type running struct {
	sum float64
	n   int
}

func (r *running) add(v float64) float64 {
	r.sum += v
	r.n++
	return r.sum / float64(r.n)
}

type session struct {
	data monitoring.UserSessionData
	load running
	ttfb running
	cls  running
}

// Sessions ведёт активные сессии браузеров. Ключ активной сессии — идентификатор,
// присланный браузером; каждой сессии сервер присваивает собственный SessionID,
// который меняется при ротации.
type Sessions struct {
	mu        sync.Mutex
	active    map[string]*session
	byID      map[string]string
	ended     []monitoring.UserSessionData
	rotation  time.Duration
	keepEnded int
	now       func() time.Time
	newID     func() string
}

// SessionOption настраивает Sessions.
type SessionOption func(*Sessions)

// WithRotation задаёт максимальную длительность одной сессии.
func WithRotation(d time.Duration) SessionOption {
	return func(s *Sessions) {
		if d > 0 {
			s.rotation = d
		}
	}
}

// WithEndedLimit задаёт число хранимых завершённых сессий.
func WithEndedLimit(n int) SessionOption {
	return func(s *Sessions) {
		if n > 0 {
			s.keepEnded = n
		}
	}
}

// WithSessionClock подменяет источник времени.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Sessions) { s.now = now }
}

// NewSessions создаёт пустой реестр сессий.
func NewSessions(opts ...SessionOption) *Sessions {
	s := &Sessions{
		active:    make(map[string]*session),
		byID:      make(map[string]string),
		rotation:  DefaultSessionRotation,
		keepEnded: DefaultEndedSessions,
		now:       time.Now,
		newID:     func() string { return "session_" + uuid.NewString() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Touch возвращает серверный идентификатор активной сессии клиента, начиная новую,
// если её нет или она длится дольше окна ротации.
func (s *Sessions) Touch(client, userID, userAgent string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchLocked(client, userID, userAgent).data.SessionID
}

func (s *Sessions) touchLocked(client, userID, userAgent string) *session {
	now := s.now()
	cur, ok := s.active[client]
	if ok && now.Sub(cur.data.StartTime) >= s.rotation {
		s.endLocked(client, now)
		ok = false
	}
	if !ok {
		cur = &session{data: monitoring.UserSessionData{
			SessionID: s.newID(),
			UserID:    userID,
			UserAgent: userAgent,
			StartTime: now,
		}}
		s.active[client] = cur
		s.byID[cur.data.SessionID] = client
	}
	if userID != "" {
		cur.data.UserID = userID
	}
	if userAgent != "" {
		cur.data.UserAgent = userAgent
	}
	cur.data.LastActivity = now
	return cur
}

// PageView учитывает просмотр страницы path.
func (s *Sessions) PageView(client, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.active[client]
	if !ok {
		return
	}
	cur.data.PageViews++
	if path != "" && !slices.Contains(cur.data.Paths, path) {
		cur.data.Paths = append(cur.data.Paths, path)
	}
}

// Interaction учитывает действие пользователя.
func (s *Sessions) Interaction(client string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.active[client]; ok {
		cur.data.Interactions++
	}
}

// RecordError учитывает ошибку в активной сессии клиента. Без активной сессии
// ничего не делает.
func (s *Sessions) RecordError(client string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.active[client]; ok {
		cur.data.Errors++
	}
}

// End завершает активную сессию клиента.
func (s *Sessions) End(client string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked(client, s.now())
}

func (s *Sessions) endLocked(client string, at time.Time) {
	cur, ok := s.active[client]
	if !ok {
		return
	}
	delete(s.active, client)
	delete(s.byID, cur.data.SessionID)
	end := at
	cur.data.EndTime = &end
	s.ended = append(s.ended, cur.data)
	if over := len(s.ended) - s.keepEnded; over > 0 {
		s.ended = slices.Delete(s.ended, 0, over)
	}
}

// ApplyMetric обновляет сводку производительности сессии по измерению.
func (s *Sessions) ApplyMetric(m Metric) {
	if m.SessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.byID[m.SessionID]
	if !ok {
		return
	}
	cur := s.active[client]
	p := &cur.data.Performance
	switch m.Name {
	case monitoring.MetricLoad:
		p.AvgLoadTime = cur.load.add(m.Value)
	case monitoring.MetricTTFB:
		p.AvgTTFB = cur.ttfb.add(m.Value)
	case monitoring.MetricCLS:
		p.AvgCLS = cur.cls.add(m.Value)
	case monitoring.MetricMemoryUsage:
		p.MemoryUsage = m.Value
	}
}

// Sweep завершает сессии старше окна ротации и возвращает их число.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for client, cur := range s.active {
		if now.Sub(cur.data.StartTime) >= s.rotation {
			s.endLocked(client, now)
			n++
		}
	}
	return n
}

// Active возвращает копии активных сессий, новые первыми.
func (s *Sessions) Active() []monitoring.UserSessionData {
	s.mu.Lock()
	out := make([]monitoring.UserSessionData, 0, len(s.active))
	for _, cur := range s.active {
		out = append(out, cloneSession(cur.data))
	}
	s.mu.Unlock()
	sortNewestFirst(out)
	return out
}

// All возвращает активные и завершённые сессии, новые первыми.
func (s *Sessions) All() []monitoring.UserSessionData {
	s.mu.Lock()
	out := make([]monitoring.UserSessionData, 0, len(s.active)+len(s.ended))
	for _, cur := range s.active {
		out = append(out, cloneSession(cur.data))
	}
	for _, d := range s.ended {
		out = append(out, cloneSession(d))
	}
	s.mu.Unlock()
	sortNewestFirst(out)
	return out
}

func cloneSession(d monitoring.UserSessionData) monitoring.UserSessionData {
	d.Paths = slices.Clone(d.Paths)
	if d.EndTime != nil {
		end := *d.EndTime
		d.EndTime = &end
	}
	return d
}

func sortNewestFirst(ss []monitoring.UserSessionData) {
	slices.SortFunc(ss, func(a, b monitoring.UserSessionData) int {
		if c := b.StartTime.Compare(a.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.SessionID, b.SessionID)
	})
}
