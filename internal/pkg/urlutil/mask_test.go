package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://hooks.slack.com/services/T000/B000/XXXX", "https://hooks.slack.com/***"},
		{"https://outlook.office.com/webhook/abc?token=1", "https://outlook.office.com/***"},
		{"http://localhost:9000", "http://localhost:9000/***"},
		{"not a url", "***invalid-url***"},
		{"", "***invalid-url***"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskURL(tt.in), tt.in)
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Empty(t, MaskSecret(""))
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "su******", MaskSecret("supersecret"))
}
