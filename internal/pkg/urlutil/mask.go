// Package urlutil маскирует адреса и секреты перед выводом в лог или конфигурацию.
package urlutil

import (
	"net/url"
	"strings"
)

// MaskURL оставляет от адреса только схему и хост: путь входящих webhook Slack и Teams
// сам по себе является секретом.
func MaskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***invalid-url***"
	}
	return u.Scheme + "://" + u.Host + "/***"
}

// MaskSecret заменяет непустой секрет звёздочками, сохраняя первые два символа.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", 6)
}
