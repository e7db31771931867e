// Package timeseries хранит точки временного ряда в памяти с ограничением
// по количеству и по возрасту. Точки производительности ограничены отдельно,
// чтобы частые замеры не вытесняли ошибки из окна анализа трендов.
package timeseries

import (
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

// Значения по умолчанию.
const (
	DefaultCapacity     = 100_000
	DefaultPerfCapacity = 1000
	DefaultRetention    = 30 * 24 * time.Hour
)

// Filter отбирает точки. Пустые поля не ограничивают выборку.
// Start и End включительны.
type Filter struct {
	Category string
	Kind     string
	Unit     string
	Start    time.Time
	End      time.Time
}

func (f Filter) match(p *monitoring.TimeSeriesPoint) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Kind != "" && p.Kind() != f.Kind {
		return false
	}
	if f.Unit != "" {
		if u, _ := p.Metadata[monitoring.MetaUnit].(string); u != f.Unit {
			return false
		}
	}
	if !f.Start.IsZero() && p.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && p.Timestamp.After(f.End) {
		return false
	}
	return true
}

// Store — упорядоченный по времени буфер точек.
//
// Точки лежат в срезе buf начиная с head: вытеснение сдвигает head,
// а срез уплотняется, когда мёртвая голова становится больше живой части.
type Store struct {
	mu        sync.RWMutex
	buf       []monitoring.TimeSeriesPoint
	head      int
	capacity  int
	kindCaps  map[string]int
	counts    map[string]int
	retention time.Duration
	now       func() time.Time
	onChange  func(size int)
}

// Option настраивает Store.
type Option func(*Store)

// WithCapacity задаёт максимальное число точек.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithKindCapacity ограничивает число точек с данным MetaKind. При
// превышении вытесняется самая старая точка этого вида.
func WithKindCapacity(kind string, n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.kindCaps[kind] = n
		} else {
			delete(s.kindCaps, kind)
		}
	}
}

// WithRetention задаёт максимальный возраст точки.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithOnChange регистрирует функцию, вызываемую после каждой записи
// с текущим размером хранилища. Вызывается вне блокировки.
func WithOnChange(fn func(size int)) Option {
	return func(s *Store) { s.onChange = fn }
}

// New создаёт Store.
func New(opts ...Option) *Store {
	s := &Store{
		capacity:  DefaultCapacity,
		kindCaps:  map[string]int{monitoring.KindPerf: DefaultPerfCapacity},
		counts:    make(map[string]int),
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AddPoint добавляет точку, сохраняя порядок по времени, и вытесняет
// самые старые точки сверх ёмкости или старше окна хранения.
// Нулевой Timestamp заменяется текущим временем.
func (s *Store) AddPoint(p monitoring.TimeSeriesPoint) {
	s.mu.Lock()
	if p.Timestamp.IsZero() {
		p.Timestamp = s.now()
	}
	s.insert(p)
	s.counts[p.Kind()]++
	s.trimKind(p.Kind())
	s.evict(s.now().Add(-s.retention))
	size := len(s.buf) - s.head
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(size)
	}
}

func (s *Store) insert(p monitoring.TimeSeriesPoint) {
	live := s.buf[s.head:]
	if n := len(live); n == 0 || !p.Timestamp.Before(live[n-1].Timestamp) {
		s.buf = append(s.buf, p)
		return
	}
	// точка пришла с опозданием: вставляем после всех точек с тем же или меньшим временем
	i := sort.Search(len(live), func(i int) bool { return live[i].Timestamp.After(p.Timestamp) })
	at := s.head + i
	s.buf = append(s.buf, monitoring.TimeSeriesPoint{})
	copy(s.buf[at+1:], s.buf[at:])
	s.buf[at] = p
}

func (s *Store) evict(cutoff time.Time) {
	for len(s.buf)-s.head > s.capacity {
		s.drop()
	}
	for s.head < len(s.buf) && s.buf[s.head].Timestamp.Before(cutoff) {
		s.drop()
	}
	if s.head > 0 && s.head >= len(s.buf)-s.head {
		s.compact()
	}
}

func (s *Store) drop() {
	s.counts[s.buf[s.head].Kind()]--
	s.buf[s.head] = monitoring.TimeSeriesPoint{}
	s.head++
}

// trimKind вытесняет самые старые точки вида сверх его ёмкости.
func (s *Store) trimKind(kind string) {
	limit, ok := s.kindCaps[kind]
	if !ok {
		return
	}
	for s.counts[kind] > limit {
		i := s.head
		for i < len(s.buf) && s.buf[i].Kind() != kind {
			i++
		}
		if i == len(s.buf) {
			return
		}
		if i == s.head {
			s.drop()
			continue
		}
		copy(s.buf[i:], s.buf[i+1:])
		s.buf[len(s.buf)-1] = monitoring.TimeSeriesPoint{}
		s.buf = s.buf[:len(s.buf)-1]
		s.counts[kind]--
	}
}

func (s *Store) compact() {
	n := copy(s.buf, s.buf[s.head:])
	clear(s.buf[n:])
	s.buf = s.buf[:n]
	s.head = 0
}

// PruneOlderThan удаляет точки строго старше cutoff и возвращает их число.
func (s *Store) PruneOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	before := len(s.buf) - s.head
	for s.head < len(s.buf) && s.buf[s.head].Timestamp.Before(cutoff) {
		s.drop()
	}
	if s.head > 0 {
		s.compact()
	}
	removed := before - len(s.buf)
	size := len(s.buf)
	s.mu.Unlock()

	if removed > 0 && s.onChange != nil {
		s.onChange(size)
	}
	return removed
}

// Query возвращает последовательность точек по возрастанию времени.
// Последовательность строится по снимку, сделанному при вызове Query,
// и может быть пройдена только один раз.
func (s *Store) Query(f Filter) iter.Seq[monitoring.TimeSeriesPoint] {
	s.mu.RLock()
	snapshot := make([]monitoring.TimeSeriesPoint, len(s.buf)-s.head)
	copy(snapshot, s.buf[s.head:])
	s.mu.RUnlock()

	consumed := false
	return func(yield func(monitoring.TimeSeriesPoint) bool) {
		if consumed {
			return
		}
		consumed = true
		for i := range snapshot {
			if !f.match(&snapshot[i]) {
				continue
			}
			if !yield(snapshot[i]) {
				return
			}
		}
	}
}

// Latest возвращает самую свежую точку категории.
func (s *Store) Latest(category string) (monitoring.TimeSeriesPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.buf) - 1; i >= s.head; i-- {
		if s.buf[i].Category == category {
			return s.buf[i], true
		}
	}
	return monitoring.TimeSeriesPoint{}, false
}

// Size возвращает число хранимых точек.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf) - s.head
}

// Snapshot возвращает копию всех точек для сохранения.
func (s *Store) Snapshot() []monitoring.TimeSeriesPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]monitoring.TimeSeriesPoint, len(s.buf)-s.head)
	copy(out, s.buf[s.head:])
	return out
}

// Restore заменяет содержимое сохранёнными точками с сортировкой
// и применением ограничений хранилища.
func (s *Store) Restore(points []monitoring.TimeSeriesPoint) {
	sorted := make([]monitoring.TimeSeriesPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	s.mu.Lock()
	s.buf = sorted
	s.head = 0
	clear(s.counts)
	for i := range s.buf {
		s.counts[s.buf[i].Kind()]++
	}
	for kind := range s.kindCaps {
		s.trimKind(kind)
	}
	s.evict(s.now().Add(-s.retention))
	size := len(s.buf) - s.head
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(size)
	}
}

// Collect собирает последовательность в срез.
func Collect(seq iter.Seq[monitoring.TimeSeriesPoint]) []monitoring.TimeSeriesPoint {
	var out []monitoring.TimeSeriesPoint
	for p := range seq {
		out = append(out, p)
	}
	return out
}

// Sum складывает значения точек последовательности.
func Sum(seq iter.Seq[monitoring.TimeSeriesPoint]) float64 {
	var total float64
	for p := range seq {
		total += p.Value
	}
	return total
}
