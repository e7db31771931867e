package aggregator

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

// ImpactTracker хранит UserImpactRecord по идентификатору пользователя.
type ImpactTracker struct {
	mu       sync.Mutex
	records  map[string]*monitoring.UserImpactRecord
	onChange func()
}

// NewImpactTracker создаёт трекер. onChange может быть nil.
func NewImpactTracker(onChange func()) *ImpactTracker {
	return &ImpactTracker{records: make(map[string]*monitoring.UserImpactRecord), onChange: onChange}
}

// Update учитывает ошибку пользователя: affectedCount и severity хранят максимум,
// счётчик ошибок пользователя растёт на единицу.
func (t *ImpactTracker) Update(userID string, affectedCount int, s monitoring.Severity, at time.Time) {
	if userID == "" {
		return
	}

	t.mu.Lock()
	r, ok := t.records[userID]
	if !ok {
		r = &monitoring.UserImpactRecord{UserID: userID, Severity: s}
		t.records[userID] = r
	}
	r.AffectedCount = max(r.AffectedCount, affectedCount)
	r.Severity = monitoring.MaxSeverity(r.Severity, s)
	if at.After(r.LastError) {
		r.LastError = at
	}
	r.TotalErrorsForUser++
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange()
	}
}

// Records возвращает записи: сначала более серьёзные, затем с большим охватом.
func (t *ImpactTracker) Records() []monitoring.UserImpactRecord {
	t.mu.Lock()
	out := make([]monitoring.UserImpactRecord, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, *r)
	}
	t.mu.Unlock()

	slices.SortFunc(out, func(a, b monitoring.UserImpactRecord) int {
		if c := cmp.Compare(b.Severity.Rank(), a.Severity.Rank()); c != 0 {
			return c
		}
		if c := cmp.Compare(b.AffectedCount, a.AffectedCount); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out
}

// Top возвращает первые n записей Records.
func (t *ImpactTracker) Top(n int) []monitoring.UserImpactRecord {
	all := t.Records()
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// Len возвращает число пользователей с ошибками.
func (t *ImpactTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Restore заменяет записи сохранёнными.
func (t *ImpactTracker) Restore(records []monitoring.UserImpactRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = make(map[string]*monitoring.UserImpactRecord, len(records))
	for i := range records {
		if records[i].UserID == "" {
			continue
		}
		r := records[i]
		t.records[r.UserID] = &r
	}
}
