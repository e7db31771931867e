package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errwatch/internal/pkg/logging"
)

func newTestCollector(t *testing.T, pushURL string) *PrometheusCollector {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.PushgatewayURL = pushURL
	cfg.InstanceLabel = "test"
	c, err := NewPrometheusCollector(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func TestPrometheusCollector_Counters(t *testing.T) {
	c := newTestCollector(t, "")

	c.RecordEvent("javascript", "medium")
	c.RecordEvent("javascript", "medium")
	c.RecordAlert("error_spike", "high")
	c.RecordDelivery("slack", 120*time.Millisecond, false)
	c.SetTimeSeriesSize(42)
	c.SetActiveAlerts(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.events.WithLabelValues("javascript", "medium")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.alerts.WithLabelValues("error_spike", "high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.deliveries.WithLabelValues("slack", "error")))
	assert.Equal(t, 42.0, testutil.ToFloat64(c.timeSeriesSize))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.activeAlerts))
}

func TestPrometheusCollector_Handler(t *testing.T) {
	c := newTestCollector(t, "")
	c.RecordEvent("network", "high")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `errwatch_events_total{category="network",severity="high"} 1`)
}

func TestPrometheusCollector_Push(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestCollector(t, srv.URL)
	c.RecordAlert("memory_leak", "critical")

	require.NoError(t, c.Push(context.Background()))
	assert.Equal(t, http.MethodPut, method)
	assert.Contains(t, path, "/metrics/job/errwatch")
}

func TestPrometheusCollector_PushErrorIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestCollector(t, srv.URL)
	assert.NoError(t, c.Push(context.Background()))
}

func TestSanitizeLabel(t *testing.T) {
	assert.Equal(t, "a_b", sanitizeLabel("a\nb"))
	assert.Len(t, []rune(sanitizeLabel(strings.Repeat("я", 100))), maxLabelLength)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"выключено", Config{}, nil},
		{"без pushgateway", Config{Enabled: true, JobName: "errwatch"}, nil},
		{"без job", Config{Enabled: true}, ErrJobNameRequired},
		{"плохой url", Config{Enabled: true, JobName: "j", PushgatewayURL: "::"}, ErrPushgatewayURLInvalid},
		{"нулевой таймаут", Config{Enabled: true, JobName: "j", PushgatewayURL: "http://pg:9091", PushInterval: time.Second}, ErrInvalidTimeout},
		{"нулевой интервал", Config{Enabled: true, JobName: "j", PushgatewayURL: "http://pg:9091", Timeout: time.Second}, ErrInvalidPushInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNewCollector_DisabledReturnsNop(t *testing.T) {
	c, err := NewCollector(Config{}, logging.NewNopLogger())
	require.NoError(t, err)
	_, ok := c.(*NopCollector)
	assert.True(t, ok)
	assert.NoError(t, c.Push(context.Background()))
}
