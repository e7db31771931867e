package perf

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

// MetricSource — платформенный источник метрик.
type MetricSource interface {
	Name() string
	Sample(ctx context.Context) ([]Metric, error)
}

// Имена встроенных источников.
const (
	SourceHost    = "host"
	SourceRuntime = "runtime"
	SourceBeacon  = "beacon"
)

const bytesPerMB = 1024 * 1024

// HostMemorySource сообщает долю занятой памяти хоста.
type HostMemorySource struct {
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	now           func() time.Time
}

// NewHostMemorySource создаёт источник на основе gopsutil.
func NewHostMemorySource() *HostMemorySource {
	return &HostMemorySource{virtualMemory: mem.VirtualMemoryWithContext, now: time.Now}
}

// Name возвращает имя источника.
func (s *HostMemorySource) Name() string { return SourceHost }

// Sample возвращает одну точку MEMORY_USAGE в процентах.
func (s *HostMemorySource) Sample(ctx context.Context) ([]Metric, error) {
	vm, err := s.virtualMemory(ctx)
	if err != nil {
		return nil, fmt.Errorf("чтение памяти хоста: %w", err)
	}
	return []Metric{{
		Name:      monitoring.MetricMemoryUsage,
		Value:     vm.UsedPercent,
		Unit:      monitoring.UnitPercent,
		Timestamp: s.now(),
		Tags: map[string]any{
			"source":  SourceHost,
			"usedMB":  math.Round(float64(vm.Used) / bytesPerMB),
			"totalMB": math.Round(float64(vm.Total) / bytesPerMB),
		},
		Metadata: map[string]any{
			"usedBytes":      vm.Used,
			"totalBytes":     vm.Total,
			"availableBytes": vm.Available,
		},
	}}, nil
}

// RuntimeMemorySource сообщает долю кучи процесса относительно предела памяти
// Go (GOMEMLIMIT), а если он не задан, относительно объёма памяти хоста.
type RuntimeMemorySource struct {
	readStats func(*runtime.MemStats)
	limit     func() int64
	hostTotal func(ctx context.Context) (uint64, error)
	now       func() time.Time
}

// NewRuntimeMemorySource создаёт источник для текущего процесса.
func NewRuntimeMemorySource() *RuntimeMemorySource {
	return &RuntimeMemorySource{
		readStats: runtime.ReadMemStats,
		limit:     func() int64 { return debug.SetMemoryLimit(-1) },
		hostTotal: func(ctx context.Context) (uint64, error) {
			vm, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return 0, err
			}
			return vm.Total, nil
		},
		now: time.Now,
	}
}

// Name возвращает имя источника.
func (s *RuntimeMemorySource) Name() string { return SourceRuntime }

// Sample возвращает одну точку MEMORY_USAGE в процентах.
func (s *RuntimeMemorySource) Sample(ctx context.Context) ([]Metric, error) {
	var ms runtime.MemStats
	s.readStats(&ms)

	limit := uint64(0)
	limitKind := "gomemlimit"
	if l := s.limit(); l > 0 && l != math.MaxInt64 {
		limit = uint64(l)
	} else {
		total, err := s.hostTotal(ctx)
		if err != nil {
			return nil, fmt.Errorf("чтение объёма памяти хоста: %w", err)
		}
		limit = total
		limitKind = "host"
	}
	if limit == 0 {
		return nil, fmt.Errorf("предел памяти неизвестен")
	}

	used := ms.HeapInuse
	return []Metric{{
		Name:      monitoring.MetricMemoryUsage,
		Value:     float64(used) / float64(limit) * 100,
		Unit:      monitoring.UnitPercent,
		Timestamp: s.now(),
		Tags: map[string]any{
			"source":  SourceRuntime,
			"limit":   limitKind,
			"usedMB":  math.Round(float64(used) / bytesPerMB),
			"limitMB": math.Round(float64(limit) / bytesPerMB),
		},
		Metadata: map[string]any{
			"heapInuseBytes": used,
			"heapSysBytes":   ms.HeapSys,
			"limitBytes":     limit,
			"numGC":          ms.NumGC,
		},
	}}, nil
}
