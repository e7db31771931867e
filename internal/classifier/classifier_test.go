package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    monitoring.Category
	}{
		{"TypeError", "TypeError: Cannot read properties of undefined", monitoring.CategoryJavaScript},
		{"ReferenceError", "ReferenceError: foo is not defined", monitoring.CategoryJavaScript},
		{"fetch", "Failed to fetch", monitoring.CategoryNetwork},
		{"cors", "blocked by CORS policy", monitoring.CategoryNetwork},
		{"timeout", "upstream timed out", monitoring.CategoryNetwork},
		{"5xx", "server responded 503", monitoring.CategoryAPI},
		{"4xx", "API Error: GET /contracts - 404", monitoring.CategoryAPI},
		{"число без границы слова не API", "line 14045 failed", monitoring.CategoryJavaScript},
		{"validation", "ValidationError: email", monitoring.CategoryValidation},
		{"required field", "Required field missing: name", monitoring.CategoryValidation},
		{"performance", "Slow operation detected", monitoring.CategoryPerformance},
		{"memory leak", "possible Memory leak in list", monitoring.CategoryPerformance},
		{"heap", "JavaScript heap out of memory", monitoring.CategoryMemory},
		{"auth раньше javascript", "TypeError: Unauthorized access token", monitoring.CategoryAuthentication},
		{"token expired", "Token has expired", monitoring.CategoryAuthentication},
		{"forbidden", "403 Forbidden", monitoring.CategoryAuthorization},
		{"chunk", "Loading chunk 7 failed", monitoring.CategoryNetwork},
		{"render", "Something broke during render", monitoring.CategoryJavaScript},
		{"по умолчанию", "something odd happened", monitoring.CategoryJavaScript},
		{"пустая строка", "", monitoring.CategoryJavaScript},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.message))
		})
	}
}

func TestDetermineSeverity(t *testing.T) {
	tests := []struct {
		name     string
		category monitoring.Category
		ctx      monitoring.ErrorContext
		want     monitoring.Severity
	}{
		{"authentication", monitoring.CategoryAuthentication, monitoring.ErrorContext{}, monitoring.SeverityCritical},
		{"authorization", monitoring.CategoryAuthorization, monitoring.ErrorContext{}, monitoring.SeverityCritical},
		{"memory", monitoring.CategoryMemory, monitoring.ErrorContext{}, monitoring.SeverityHigh},
		{"performance", monitoring.CategoryPerformance, monitoring.ErrorContext{}, monitoring.SeverityHigh},
		{"validation", monitoring.CategoryValidation, monitoring.ErrorContext{}, monitoring.SeverityMedium},
		{"user_input", monitoring.CategoryUserInput, monitoring.ErrorContext{UserAction: monitoring.UserActionCriticalOperation}, monitoring.SeverityMedium},
		{"critical_operation", monitoring.CategoryAPI, monitoring.ErrorContext{UserAction: monitoring.UserActionCriticalOperation}, monitoring.SeverityHigh},
		{"initialization", monitoring.CategoryJavaScript, monitoring.ErrorContext{Source: monitoring.SourceInitialization}, monitoring.SeverityHigh},
		{"по умолчанию", monitoring.CategoryNetwork, monitoring.ErrorContext{}, monitoring.SeverityMedium},
		{"неизвестная категория", monitoring.Category("???"), monitoring.ErrorContext{}, monitoring.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineSeverity(tt.category, tt.ctx))
		})
	}
}

func TestDetermineSeverity_IsTotal(t *testing.T) {
	contexts := []monitoring.ErrorContext{
		{},
		{Source: monitoring.SourceInitialization},
		{UserAction: monitoring.UserActionCriticalOperation},
		{Source: "anything", UserAction: "anything"},
	}
	categories := append(monitoring.AllCategories(), "", "garbage")
	for _, c := range categories {
		for _, ctx := range contexts {
			assert.True(t, DetermineSeverity(c, ctx).Valid(), "категория %q", c)
		}
	}
}

func TestClassify_IsIdempotent(t *testing.T) {
	messages := []string{"TypeError: x", "Failed to fetch", "503", "Forbidden", "whatever"}
	for _, m := range messages {
		c1, s1 := Classify(m, monitoring.ErrorContext{})
		c2, s2 := Classify(m, monitoring.ErrorContext{})
		assert.Equal(t, c1, c2, m)
		assert.Equal(t, s1, s2, m)
	}
}

func TestClassify_ContextOverrides(t *testing.T) {
	c, s := Classify("TypeError: boom", monitoring.ErrorContext{
		Category: monitoring.CategoryDatabase,
		Severity: monitoring.SeverityLow,
	})
	assert.Equal(t, monitoring.CategoryDatabase, c)
	assert.Equal(t, monitoring.SeverityLow, s)

	c, s = Classify("TypeError: boom", monitoring.ErrorContext{Category: "bogus", Severity: "fatal"})
	assert.Equal(t, monitoring.CategoryJavaScript, c)
	assert.Equal(t, monitoring.SeverityMedium, s)
}

func TestRules_OrderIsStable(t *testing.T) {
	got := make([]monitoring.Category, 0, len(rules))
	for _, r := range Rules() {
		got = append(got, r.Category)
	}
	assert.Equal(t, []monitoring.Category{
		monitoring.CategoryAuthentication,
		monitoring.CategoryAuthorization,
		monitoring.CategoryMemory,
		monitoring.CategoryJavaScript,
		monitoring.CategoryNetwork,
		monitoring.CategoryAPI,
		monitoring.CategoryValidation,
		monitoring.CategoryPerformance,
	}, got)
}
