// Package perf собирает метрики производительности из подключаемых источников
// и записывает их во временной ряд под зарезервированными категориями.
//
// Источники реализуют MetricSource: память хоста (gopsutil), память процесса Go
// и очередь браузерных beacon-ов. Ядро конвейера зависит только от интерфейса,
// поэтому в тестах источник заменяется скриптованным.
package perf

import (
	"maps"
	"time"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

// Metric — одно измерение источника.
type Metric struct {
	Name      string
	Value     float64
	Unit      string
	Timestamp time.Time
	Tags      map[string]any
	Metadata  map[string]any

	// SessionID — серверный идентификатор сессии, к которой относится измерение.
	SessionID string
}

// Point преобразует измерение в точку временного ряда. Теги и метаданные
// сливаются в Metadata точки, служебные ключи kind/unit/name перезаписываются.
func (m Metric) Point() monitoring.TimeSeriesPoint {
	meta := make(map[string]any, len(m.Tags)+len(m.Metadata)+4)
	maps.Copy(meta, m.Tags)
	maps.Copy(meta, m.Metadata)
	meta[monitoring.MetaKind] = monitoring.KindPerf
	meta[monitoring.MetaUnit] = m.Unit
	meta[monitoring.MetaName] = m.Name
	if m.SessionID != "" {
		meta["sessionId"] = m.SessionID
	}
	return monitoring.TimeSeriesPoint{
		Timestamp: m.Timestamp,
		Value:     m.Value,
		Category:  m.Name,
		Metadata:  meta,
	}
}
