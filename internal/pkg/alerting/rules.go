package alerting

import (
	"strings"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

// RulesConfig — правила фильтрации алертов перед доставкой.
type RulesConfig struct {
	// MinSeverity — минимальный уровень серьёзности ("info" … "critical").
	MinSeverity string

	// ExcludeTypes — типы алертов, которые НЕ доставляются.
	ExcludeTypes []string

	// IncludeTypes — если задан, доставляются ТОЛЬКО эти типы.
	IncludeTypes []string

	// Channels — правила для конкретных каналов.
	// Правило канала полностью заменяет глобальное, а не дополняет его.
	Channels map[string]ChannelRulesConfig
}

// ChannelRulesConfig — правила для одного канала.
type ChannelRulesConfig struct {
	MinSeverity  string
	ExcludeTypes []string
	IncludeTypes []string
}

type ruleConfig struct {
	minSeverity  monitoring.Severity
	excludeTypes map[string]struct{}
	includeTypes map[string]struct{}
}

// RulesEngine решает, доставлять ли алерт в канал.
type RulesEngine struct {
	global   ruleConfig
	channels map[monitoring.ChannelType]ruleConfig
}

// NewRulesEngine создаёт RulesEngine из конфигурации.
func NewRulesEngine(config RulesConfig) *RulesEngine {
	engine := &RulesEngine{
		global:   buildRuleConfig(config.MinSeverity, config.ExcludeTypes, config.IncludeTypes),
		channels: make(map[monitoring.ChannelType]ruleConfig, len(config.Channels)),
	}
	for name, ch := range config.Channels {
		engine.channels[monitoring.ChannelType(name)] = buildRuleConfig(ch.MinSeverity, ch.ExcludeTypes, ch.IncludeTypes)
	}
	return engine
}

// Evaluate проверяет, должен ли алерт быть доставлен в канал.
func (e *RulesEngine) Evaluate(alert monitoring.AlertEvent, channel monitoring.ChannelType) bool {
	rule := e.global
	if channelRule, ok := e.channels[channel]; ok {
		rule = channelRule
	}
	return evaluateRule(rule, alert)
}

func evaluateRule(rule ruleConfig, alert monitoring.AlertEvent) bool {
	if !alert.Severity.AtLeast(rule.minSeverity) {
		return false
	}

	if len(rule.includeTypes) > 0 {
		if _, ok := rule.includeTypes[string(alert.Type)]; !ok {
			return false
		}
	} else if len(rule.excludeTypes) > 0 {
		if _, ok := rule.excludeTypes[string(alert.Type)]; ok {
			return false
		}
	}
	return true
}

// parseMinSeverity разбирает уровень; пустое или неизвестное значение пропускает всё.
func parseMinSeverity(s string) monitoring.Severity {
	if sev, ok := monitoring.ParseSeverity(strings.ToLower(s)); ok {
		return sev
	}
	return monitoring.SeverityInfo
}

func buildRuleConfig(minSeverity string, exclude, include []string) ruleConfig {
	return ruleConfig{
		minSeverity:  parseMinSeverity(minSeverity),
		excludeTypes: toSet(exclude),
		includeTypes: toSet(include),
	}
}

// toSet конвертирует slice строк в map для быстрого lookup.
func toSet(items []string) map[string]struct{} {
	if len(items) == 0 {
		return nil
	}
	s := make(map[string]struct{}, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}
