package perf

import (
	"context"
	"errors"
	"math"
	"runtime"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

func TestHostMemorySource_Sample(t *testing.T) {
	src := &HostMemorySource{
		virtualMemory: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 8192 * bytesPerMB, Used: 7536 * bytesPerMB, UsedPercent: 92}, nil
		},
		now: func() time.Time { return t0 },
	}

	ms, err := src.Sample(context.Background())
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, monitoring.MetricMemoryUsage, ms[0].Name)
	assert.Equal(t, 92.0, ms[0].Value)
	assert.Equal(t, monitoring.UnitPercent, ms[0].Unit)
	assert.Equal(t, 8192.0, ms[0].Tags["totalMB"])
	assert.Equal(t, t0, ms[0].Timestamp)
}

func TestHostMemorySource_Error(t *testing.T) {
	src := &HostMemorySource{
		virtualMemory: func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, errors.New("нет /proc") },
		now:           time.Now,
	}
	_, err := src.Sample(context.Background())
	assert.ErrorContains(t, err, "нет /proc")
}

func TestRuntimeMemorySource_Sample(t *testing.T) {
	stats := func(ms *runtime.MemStats) { ms.HeapInuse = 300 * bytesPerMB }
	hostCalls := 0
	host := func(context.Context) (uint64, error) {
		hostCalls++
		return 1000 * bytesPerMB, nil
	}

	tests := []struct {
		name      string
		limit     int64
		want      float64
		wantLimit string
		hostCalls int
	}{
		{"задан GOMEMLIMIT", 600 * bytesPerMB, 50, "gomemlimit", 0},
		{"без предела берётся память хоста", math.MaxInt64, 30, "host", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hostCalls = 0
			src := &RuntimeMemorySource{
				readStats: stats,
				limit:     func() int64 { return tt.limit },
				hostTotal: host,
				now:       func() time.Time { return t0 },
			}
			ms, err := src.Sample(context.Background())
			require.NoError(t, err)
			require.Len(t, ms, 1)
			assert.InDelta(t, tt.want, ms[0].Value, 1e-9)
			assert.Equal(t, tt.wantLimit, ms[0].Tags["limit"])
			assert.Equal(t, tt.hostCalls, hostCalls)
		})
	}
}

func TestRuntimeMemorySource_RealProcess(t *testing.T) {
	src := NewRuntimeMemorySource()
	src.hostTotal = func(context.Context) (uint64, error) { return 16 << 30, nil }
	ms, err := src.Sample(context.Background())
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Greater(t, ms[0].Value, 0.0)
	assert.Less(t, ms[0].Value, 100.0)
}
