package alerteval

import (
	"context"
	"fmt"
	"math"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/timeseries"
)

// spikeCategories — категории, по которым отслеживаются всплески.
var spikeCategories = []monitoring.Category{
	monitoring.CategoryJavaScript,
	monitoring.CategoryAPI,
	monitoring.CategoryNetwork,
	monitoring.CategoryValidation,
}

// spikeTiers — уровни в порядке проверки; срабатывает первый достигнутый.
var spikeTiers = []monitoring.Severity{
	monitoring.SeverityCritical,
	monitoring.SeverityHigh,
	monitoring.SeverityMedium,
	monitoring.SeverityLow,
}

// Ключи алертов.
const (
	keyPerformanceLoad = "performance_load_time"
	keyMemory          = "memory_leak"
	keyUserImpact      = "user_impact"
	keyErrorRate       = "error_rate"
)

func spikeKey(c monitoring.Category) string { return "error_spike_" + string(c) }

// Границы критичного влияния на пользователей.
const (
	impactUsersPerSignature    = 10
	impactSessionsPerSignature = 50
	impactCriticalTotalUsers   = 100
	memoryCriticalPercent      = 90
)

// CheckErrorSpikes сравнивает прирост ошибок категории с момента её последнего
// алерта с порогами уровней, от critical к low. Срабатывает первый достигнутый уровень.
func (e *Evaluator) CheckErrorSpikes(ctx context.Context) []monitoring.AlertEvent {
	var fired []monitoring.AlertEvent
	for _, c := range spikeCategories {
		total := e.stats.CategoryTotal(c)
		delta := total - e.baselines[c]

		for _, tier := range spikeTiers {
			threshold := e.cfg.Thresholds.CountFor(tier)
			if threshold <= 0 || delta < threshold {
				continue
			}

			alert, ok := e.fire(ctx, monitoring.AlertEvent{
				Key:      spikeKey(c),
				Type:     monitoring.AlertErrorSpike,
				Severity: tier,
				Title:    "Error Spike Detected",
				Message:  fmt.Sprintf("%d new %s errors (%s threshold: %d)", delta, c, tier, threshold),
				Data: map[string]any{
					"category":      string(c),
					"count":         delta,
					"total":         total,
					"threshold":     threshold,
					"affectedUsers": e.affectedUsers(c),
				},
			})
			if ok {
				e.baselines[c] = total
				fired = append(fired, alert)
			}
			break
		}
	}
	return fired
}

func (e *Evaluator) affectedUsers(c monitoring.Category) int {
	users := make(map[string]struct{})
	for _, st := range e.stats.Stats() {
		if st.Category != c {
			continue
		}
		for _, u := range st.AffectedUsers {
			users[u] = struct{}{}
		}
	}
	return len(users)
}

// freshPoint возвращает последнюю точку метрики, если она новее последнего срабатывания ключа.
func (e *Evaluator) freshPoint(metric, key string) (monitoring.TimeSeriesPoint, bool) {
	p, ok := e.points.Latest(metric)
	if !ok {
		return p, false
	}
	if last, fired := e.ledger.Last(key); fired && !p.Timestamp.After(last) {
		return p, false
	}
	return p, true
}

// CheckPerformance сравнивает последнее время загрузки с порогом responseTimeMs.
func (e *Evaluator) CheckPerformance(ctx context.Context) []monitoring.AlertEvent {
	threshold := e.cfg.Thresholds.ResponseTimeMs
	if threshold <= 0 {
		return nil
	}
	p, ok := e.freshPoint(monitoring.MetricLoad, keyPerformanceLoad)
	if !ok || p.Value <= threshold {
		return nil
	}

	sev := monitoring.SeverityMedium
	if p.Value > threshold*2 {
		sev = monitoring.SeverityHigh
	}
	data := map[string]any{"loadTime": math.Round(p.Value), "threshold": threshold}
	if ttfb, ok := e.points.Latest(monitoring.MetricTTFB); ok {
		data["responseTime"] = math.Round(ttfb.Value)
	}

	alert, ok := e.fire(ctx, monitoring.AlertEvent{
		Key:      keyPerformanceLoad,
		Type:     monitoring.AlertPerformanceDegradation,
		Severity: sev,
		Title:    "Slow Page Load",
		Message:  fmt.Sprintf("Page load time: %.0fms (threshold: %.0fms)", p.Value, threshold),
		Data:     data,
	})
	if !ok {
		return nil
	}
	return []monitoring.AlertEvent{alert}
}

// CheckMemory сравнивает последний замер MEMORY_USAGE с порогом memoryUsagePercent.
func (e *Evaluator) CheckMemory(ctx context.Context) []monitoring.AlertEvent {
	threshold := e.cfg.Thresholds.MemoryUsagePercent
	if threshold <= 0 {
		return nil
	}
	p, ok := e.freshPoint(monitoring.MetricMemoryUsage, keyMemory)
	if !ok || p.Value <= threshold {
		return nil
	}

	sev := monitoring.SeverityHigh
	if p.Value > memoryCriticalPercent {
		sev = monitoring.SeverityCritical
	}
	data := map[string]any{"usedPercent": math.Round(p.Value*10) / 10, "threshold": threshold}
	if src, ok := p.Metadata[monitoring.MetaSource]; ok {
		data["source"] = src
	}

	alert, ok := e.fire(ctx, monitoring.AlertEvent{
		Key:      keyMemory,
		Type:     monitoring.AlertMemoryLeak,
		Severity: sev,
		Title:    "High Memory Usage",
		Message:  fmt.Sprintf("Memory usage: %.1f%% (threshold: %.0f%%)", p.Value, threshold),
		Data:     data,
	})
	if !ok {
		return nil
	}
	return []monitoring.AlertEvent{alert}
}

// CheckUserImpact ищет сигнатуры, затронувшие больше 10 пользователей или 50 сессий.
func (e *Evaluator) CheckUserImpact(ctx context.Context) []monitoring.AlertEvent {
	users := make(map[string]struct{})
	sessions := make(map[string]struct{})
	var details []string
	for _, st := range e.stats.Stats() {
		if len(st.AffectedUsers) <= impactUsersPerSignature && len(st.AffectedSessions) <= impactSessionsPerSignature {
			continue
		}
		for _, u := range st.AffectedUsers {
			users[u] = struct{}{}
		}
		for _, s := range st.AffectedSessions {
			sessions[s] = struct{}{}
		}
		details = append(details, st.Signature)
	}
	if len(details) == 0 {
		return nil
	}

	sev := monitoring.SeverityHigh
	if len(users) > impactCriticalTotalUsers {
		sev = monitoring.SeverityCritical
	}
	alert, ok := e.fire(ctx, monitoring.AlertEvent{
		Key:      keyUserImpact,
		Type:     monitoring.AlertUserImpact,
		Severity: sev,
		Title:    "High User Impact",
		Message:  fmt.Sprintf("%d users affected by %d error types", len(users), len(details)),
		Data: map[string]any{
			"affectedUsers":    len(users),
			"affectedSessions": len(sessions),
			"errorTypes":       len(details),
			"details":          details[:min(3, len(details))],
		},
	})
	if !ok {
		return nil
	}
	return []monitoring.AlertEvent{alert}
}

// CheckErrorRate сравнивает долю неудачных действий пользователей за окно с errorRatePercent.
// При малом числе действий проверка не выполняется.
func (e *Evaluator) CheckErrorRate(ctx context.Context) []monitoring.AlertEvent {
	threshold := e.cfg.Thresholds.ErrorRatePercent
	if threshold <= 0 {
		return nil
	}
	now := e.now()
	var total, failed int
	for p := range e.points.Query(timeseries.Filter{
		Category: monitoring.MetricUserAction,
		Start:    now.Add(-e.cfg.ErrorRateWindow),
		End:      now,
	}) {
		total++
		if !p.Bool(monitoring.MetaSuccess) {
			failed++
		}
	}
	if total < e.cfg.MinActions {
		return nil
	}
	rate := float64(failed) / float64(total) * 100
	if rate <= threshold {
		return nil
	}

	sev := monitoring.SeverityMedium
	if rate > threshold*2 {
		sev = monitoring.SeverityHigh
	}
	alert, ok := e.fire(ctx, monitoring.AlertEvent{
		Key:      keyErrorRate,
		Type:     monitoring.AlertSystemOverload,
		Severity: sev,
		Title:    "High Error Rate",
		Message:  fmt.Sprintf("%.1f%% of user actions failed (threshold: %.0f%%)", rate, threshold),
		Data: map[string]any{
			"errorRate": math.Round(rate*100) / 100,
			"failed":    failed,
			"total":     total,
			"threshold": threshold,
		},
	})
	if !ok {
		return nil
	}
	return []monitoring.AlertEvent{alert}
}
