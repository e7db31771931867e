package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

func TestRulesEngine_DefaultAllowAll(t *testing.T) {
	engine := NewRulesEngine(RulesConfig{})

	tests := []struct {
		name    string
		alert   monitoring.AlertEvent
		channel monitoring.ChannelType
	}{
		{"info алерт проходит", monitoring.AlertEvent{Severity: monitoring.SeverityInfo, Type: monitoring.AlertErrorSpike}, monitoring.ChannelEmail},
		{"high алерт проходит", monitoring.AlertEvent{Severity: monitoring.SeverityHigh, Type: monitoring.AlertMemoryLeak}, monitoring.ChannelSlack},
		{"critical алерт проходит", monitoring.AlertEvent{Severity: monitoring.SeverityCritical}, monitoring.ChannelWebhook},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, engine.Evaluate(tt.alert, tt.channel))
		})
	}
}

func TestRulesEngine_SeverityFilter(t *testing.T) {
	tests := []struct {
		name        string
		minSeverity string
		severity    monitoring.Severity
		want        bool
	}{
		{"info проходит при пустом пороге", "", monitoring.SeverityInfo, true},
		{"medium не проходит при high", "high", monitoring.SeverityMedium, false},
		{"high проходит при high", "high", monitoring.SeverityHigh, true},
		{"critical проходит при HIGH в верхнем регистре", "HIGH", monitoring.SeverityCritical, true},
		{"неизвестный порог пропускает всё", "urgent", monitoring.SeverityLow, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewRulesEngine(RulesConfig{MinSeverity: tt.minSeverity})
			got := engine.Evaluate(monitoring.AlertEvent{Severity: tt.severity}, monitoring.ChannelWebhook)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRulesEngine_TypeFilters(t *testing.T) {
	spike := monitoring.AlertEvent{Severity: monitoring.SeverityHigh, Type: monitoring.AlertErrorSpike}
	memory := monitoring.AlertEvent{Severity: monitoring.SeverityHigh, Type: monitoring.AlertMemoryLeak}

	t.Run("exclude", func(t *testing.T) {
		engine := NewRulesEngine(RulesConfig{ExcludeTypes: []string{"memory_leak"}})
		assert.True(t, engine.Evaluate(spike, monitoring.ChannelSlack))
		assert.False(t, engine.Evaluate(memory, monitoring.ChannelSlack))
	})

	t.Run("include имеет приоритет над exclude", func(t *testing.T) {
		engine := NewRulesEngine(RulesConfig{
			IncludeTypes: []string{"memory_leak"},
			ExcludeTypes: []string{"memory_leak"},
		})
		assert.True(t, engine.Evaluate(memory, monitoring.ChannelSlack))
		assert.False(t, engine.Evaluate(spike, monitoring.ChannelSlack))
	})
}

func TestRulesEngine_ChannelOverrideReplacesGlobal(t *testing.T) {
	engine := NewRulesEngine(RulesConfig{
		MinSeverity:  "critical",
		ExcludeTypes: []string{"error_spike"},
		Channels: map[string]ChannelRulesConfig{
			"dashboard": {MinSeverity: "info"},
		},
	})

	alert := monitoring.AlertEvent{Severity: monitoring.SeverityLow, Type: monitoring.AlertErrorSpike}

	assert.True(t, engine.Evaluate(alert, monitoring.ChannelDashboard), "правило канала заменяет глобальное")
	assert.False(t, engine.Evaluate(alert, monitoring.ChannelEmail))
}
